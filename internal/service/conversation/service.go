// Package conversation answers one client message in the voice of a stored
// therapist profile.
package conversation

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

// ProfileFinder loads a therapist profile.
type ProfileFinder interface {
	FindByID(ctx context.Context, id string) (therapist.Profile, error)
}

// Generator produces the assistant reply for a profile.
type Generator interface {
	GenerateResponse(ctx context.Context, profile *therapist.Profile, history []chat.Message, userMessage string) (string, error)
}

// Request is the body of POST /chat.
type Request struct {
	TherapistID string         `json:"therapistId"`
	Message     string         `json:"message"`
	History     []chat.Message `json:"conversationHistory"`
}

// Service validates a chat request, resolves its profile and asks the
// generator for a reply. It persists nothing.
type Service struct {
	profiles  ProfileFinder
	generator Generator
	log       *zap.Logger
}

// NewService wires the profile store and reply generator.
func NewService(profiles ProfileFinder, generator Generator, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		profiles:  profiles,
		generator: generator,
		log:       log.With(zap.String("component", "conversation")),
	}
}

// Reply returns a non-empty reply or an error of kind validation, not-found
// or upstream.
func (s *Service) Reply(ctx context.Context, req Request) (string, error) {
	therapistID := strings.TrimSpace(req.TherapistID)
	message := strings.TrimSpace(req.Message)
	if therapistID == "" || message == "" {
		return "", failure.Validation("Missing required fields")
	}
	if err := chat.ValidateHistory(req.History); err != nil {
		return "", err
	}

	profile, err := s.profiles.FindByID(ctx, therapistID)
	if err != nil {
		return "", err
	}

	reply, err := s.generator.GenerateResponse(ctx, &profile, req.History, message)
	if err != nil {
		s.log.Warn("reply failed", zap.String("therapist", therapistID), zap.Error(err))
		if !errors.Is(err, failure.ErrUpstream) {
			err = failure.Upstream(err, "completion")
		}
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", failure.Upstream(nil, "completion returned an empty reply")
	}
	return reply, nil
}
