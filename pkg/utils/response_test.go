package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body["error"]
}

func TestRespondFailureValidationKeepsDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondFailure(rec, failure.Validation("message is required"), "unused")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "message is required" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestRespondFailureUpstreamHidesCause(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondFailure(rec, failure.Upstream(errors.New("api key sk-123 rejected"), "completion"), "Failed to generate response")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != "Failed to generate response" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestRespondFailureNotFound(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondFailure(rec, failure.NotFound("therapist %q", "x"), "unused")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got != `therapist "x"` {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestRespondJSONLogsEncodeFailure(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	rec := httptest.NewRecorder()
	RespondJSON(rec, http.StatusOK, map[string]any{"bad": make(chan int)})

	entries := logs.FilterMessage("failed to encode response").All()
	if len(entries) != 1 {
		t.Fatalf("expected one encode failure entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["component"]; got != "http" {
		t.Fatalf("unexpected component %v", got)
	}
}
