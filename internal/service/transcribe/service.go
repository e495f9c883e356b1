// Package transcribe converts recorded audio to text with a Whisper-compatible
// speech-to-text endpoint.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/failure"
)

// Client is the slice of the OpenAI API used for transcription.
type Client interface {
	CreateTranscription(ctx context.Context, request openai.AudioRequest) (openai.AudioResponse, error)
}

// Service transcribes audio blobs.
type Service struct {
	client   Client
	model    string
	language string
	timeout  time.Duration
	log      *zap.Logger
}

// NewService builds a Service backed by the OpenAI client described by cfg.
func NewService(cfg config.TranscribeConfig, log *zap.Logger) *Service {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return NewServiceWithClient(openai.NewClientWithConfig(clientCfg), cfg, log)
}

// NewServiceWithClient builds a Service around an existing client.
func NewServiceWithClient(client Client, cfg config.TranscribeConfig, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}
	return &Service{
		client:   client,
		model:    model,
		language: cfg.Language,
		timeout:  cfg.Timeout,
		log:      log.With(zap.String("component", "transcribe")),
	}
}

// Transcribe returns the text spoken in audio. filename only hints the
// container format. Empty audio is a validation error; provider failures and
// blank results are upstream errors.
func (s *Service) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", failure.Validation("no audio file provided")
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	name := NormalizeFilename(filename)
	started := time.Now()
	resp, err := s.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.model,
		FilePath: name,
		Reader:   bytes.NewReader(audio),
		Language: s.language,
	})
	if err != nil {
		s.log.Warn("transcription failed", zap.String("file", name), zap.Int("bytes", len(audio)), zap.Error(err))
		return "", failure.Upstream(err, "transcription")
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", failure.Upstream(nil, "transcription returned no text")
	}

	s.log.Info("transcribed audio",
		zap.String("file", name),
		zap.Int("bytes", len(audio)),
		zap.Int("length", len(text)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return text, nil
}

// NormalizeFilename keeps the extension of a supported container and falls
// back to audio.webm, the format browsers and the companion recorder produce.
func NormalizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".mp3", ".wav", ".webm", ".m4a", ".mp4", ".mpeg", ".mpga", ".ogg", ".oga", ".flac":
		return fmt.Sprintf("audio%s", ext)
	default:
		return "audio.webm"
	}
}
