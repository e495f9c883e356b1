package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
)

// RespondJSON 发送JSON响应。编码失败写入全局 zap logger（由 main 替换）。
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("failed to encode response",
			zap.String("component", "http"),
			zap.Int("status", status),
			zap.Error(err))
	}
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}

// RespondFailure 按错误类型选择状态码。4xx 返回具体原因，5xx 只返回 serverMessage，
// 避免把上游服务的细节透给客户端。
func RespondFailure(w http.ResponseWriter, err error, serverMessage string) {
	status := failure.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		RespondError(w, status, serverMessage)
		return
	}
	RespondError(w, status, clientMessage(err))
}

func clientMessage(err error) string {
	msg := err.Error()
	for _, kind := range []error{failure.ErrValidation, failure.ErrNotFound} {
		if errors.Is(err, kind) {
			prefix := kind.Error() + ": "
			if strings.HasPrefix(msg, prefix) {
				return strings.TrimPrefix(msg, prefix)
			}
		}
	}
	return msg
}
