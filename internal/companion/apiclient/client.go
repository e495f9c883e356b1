// Package apiclient talks to the companion backend over HTTP.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

// Client is a thin JSON/multipart client for the /api routes.
type Client struct {
	baseURL string
	client  *http.Client
}

// New returns a client rooted at baseURL (scheme://host[:port]). A nil
// httpClient uses one with a two minute timeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(u.String(), "/"), client: httpClient}, nil
}

// Transcribe posts one recording to /api/transcribe.
func (c *Client) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	body, contentType, err := audioForm(audio, filename)
	if err != nil {
		return "", err
	}

	var out struct {
		Transcription string `json:"transcription"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/transcribe", contentType, body, &out); err != nil {
		return "", err
	}
	return out.Transcription, nil
}

// Reply posts a user message with its prior history to /api/chat.
func (c *Client) Reply(ctx context.Context, therapistID, message string, history []chat.Message) (string, error) {
	if history == nil {
		history = []chat.Message{}
	}
	payload, err := json.Marshal(map[string]any{
		"therapistId":         therapistID,
		"message":             message,
		"conversationHistory": history,
	})
	if err != nil {
		return "", err
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/chat", "application/json", bytes.NewReader(payload), &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

// Summary loads the public view of a therapist profile.
func (c *Client) Summary(ctx context.Context, therapistID string) (therapist.Summary, error) {
	var out therapist.Summary
	err := c.do(ctx, http.MethodGet, "/api/therapists/"+url.PathEscape(therapistID), "", nil, &out)
	return out, err
}

// CreateTherapist posts the wizard draft and returns the new id.
func (c *Client) CreateTherapist(ctx context.Context, draft therapist.Draft) (string, error) {
	payload, err := json.Marshal(draft)
	if err != nil {
		return "", err
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/therapists", "application/json", bytes.NewReader(payload), &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// UploadRecording stores one scenario recording on the profile.
func (c *Client) UploadRecording(ctx context.Context, therapistID string, scenario therapist.Scenario, audio []byte) (therapist.RecordingResult, error) {
	body, contentType, err := audioForm(audio, string(scenario)+".webm")
	if err != nil {
		return therapist.RecordingResult{}, err
	}

	path := fmt.Sprintf("/api/therapists/%s/recordings/%s", url.PathEscape(therapistID), url.PathEscape(string(scenario)))
	var out therapist.RecordingResult
	err = c.do(ctx, http.MethodPut, path, contentType, body, &out)
	return out, err
}

func audioForm(audio []byte, filename string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("audio", filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// do 发送请求并把非 2xx 响应映射回错误种类
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return failure.Upstream(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure.Upstream(err, "read %s response", path)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failure.FromStatus(resp.StatusCode, errorMessage(data, resp.Status))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return failure.Upstream(err, "decode %s response", path)
	}
	return nil
}

func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fallback
}
