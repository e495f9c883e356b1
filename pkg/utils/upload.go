package utils

import (
	"errors"
	"io"
	"net/http"
)

// Upload 是从 multipart 表单读取的单个文件
type Upload struct {
	Data        []byte
	Filename    string
	ContentType string
}

// ReadUpload 读取 multipart 表单中的 field 文件。失败时已写入 4xx 响应并返回 false。
func ReadUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (Upload, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(w, http.StatusRequestEntityTooLarge, "audio file too large")
			return Upload{}, false
		}
		RespondError(w, http.StatusBadRequest, "No audio file provided")
		return Upload{}, false
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(field)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "No audio file provided")
		return Upload{}, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		RespondError(w, http.StatusBadRequest, "failed to read audio file")
		return Upload{}, false
	}
	if len(data) == 0 {
		RespondError(w, http.StatusBadRequest, "No audio file provided")
		return Upload{}, false
	}

	return Upload{
		Data:        data,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, true
}
