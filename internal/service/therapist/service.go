// Package therapist implements profile setup: creating a profile and
// attaching the six scenario recordings to it.
package therapist

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
	model "github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

// AssetStore persists recording blobs and returns their public URL.
type AssetStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Transcriber converts a recording to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Service coordinates the profile store, the asset bucket and transcription.
type Service struct {
	store       model.Store
	assets      AssetStore
	transcriber Transcriber
	now         func() time.Time
	log         *zap.Logger
}

// NewService wires setup dependencies. assets and transcriber may be nil:
// recordings are then kept without an audio URL or with a placeholder
// transcript.
func NewService(store model.Store, assets AssetStore, transcriber Transcriber, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:       store,
		assets:      assets,
		transcriber: transcriber,
		now:         time.Now,
		log:         log.With(zap.String("component", "therapist")),
	}
}

// Create validates draft and stores a new profile, returning its identifier.
func (s *Service) Create(ctx context.Context, draft model.Draft) (string, error) {
	draft.Normalize()
	if err := draft.Validate(); err != nil {
		return "", err
	}

	profile := model.NewProfile(uuid.NewString(), draft, s.now())
	if err := s.store.Create(ctx, profile); err != nil {
		return "", err
	}

	s.log.Info("therapist created", zap.String("therapist", profile.ID), zap.String("role", string(profile.Role)))
	return profile.ID, nil
}

// Summary returns the public view of a profile.
func (s *Service) Summary(ctx context.Context, id string) (model.Summary, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Summary{}, failure.Validation("therapist id is required")
	}
	profile, err := s.store.FindByID(ctx, id)
	if err != nil {
		return model.Summary{}, err
	}
	return profile.Summary(), nil
}

// AttachRecording uploads the recording for scenario, transcribes it and
// stores both on the profile. A transcription failure does not fail the call:
// the scenario placeholder is stored instead.
func (s *Service) AttachRecording(ctx context.Context, id string, scenario model.Scenario, audio []byte, filename, contentType string) (model.RecordingResult, error) {
	if !scenario.Valid() {
		return model.RecordingResult{}, failure.Validation("unknown scenario %q", scenario)
	}
	if len(audio) == 0 {
		return model.RecordingResult{}, failure.Validation("no audio file provided")
	}
	if _, err := s.store.FindByID(ctx, id); err != nil {
		return model.RecordingResult{}, err
	}

	result := model.RecordingResult{Scenario: scenario}

	if s.assets != nil {
		if contentType == "" {
			contentType = "audio/webm"
		}
		url, err := s.assets.Put(ctx, RecordingKey(id, scenario), audio, contentType)
		if err != nil {
			return model.RecordingResult{}, failure.Upstream(err, "upload recording")
		}
		result.AudioURL = url
	}

	result.Transcript, result.Placeholder = s.transcribe(ctx, id, scenario, audio, filename)

	if err := s.store.SetRecording(ctx, id, scenario, result.AudioURL, result.Transcript); err != nil {
		return model.RecordingResult{}, err
	}
	return result, nil
}

func (s *Service) transcribe(ctx context.Context, id string, scenario model.Scenario, audio []byte, filename string) (string, bool) {
	if s.transcriber == nil {
		return scenario.Placeholder(), true
	}
	text, err := s.transcriber.Transcribe(ctx, audio, filename)
	if err != nil || strings.TrimSpace(text) == "" {
		s.log.Warn("recording kept without transcript",
			zap.String("therapist", id),
			zap.String("scenario", string(scenario)),
			zap.Error(err),
		)
		return scenario.Placeholder(), true
	}
	return text, false
}

// RecordingKey is the object key of a scenario recording in the asset bucket.
func RecordingKey(id string, scenario model.Scenario) string {
	return fmt.Sprintf("%s/%s.webm", id, scenario)
}
