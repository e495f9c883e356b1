package therapist

import (
	"context"
	"sync"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
)

// Store exposes therapist profile persistence for services and handlers.
type Store interface {
	FindByID(ctx context.Context, id string) (Profile, error)
	Create(ctx context.Context, profile Profile) error
	SetRecording(ctx context.Context, id string, scenario Scenario, audioURL, transcript string) error
}

// MemoryStore implements Store with an in-process map, used when no database
// is configured and in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Profile
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied profiles.
func NewMemoryStore(items ...Profile) *MemoryStore {
	s := &MemoryStore{items: make(map[string]Profile, len(items))}
	for _, item := range items {
		s.items[item.ID] = clone(item)
	}
	return s
}

// FindByID looks up a profile by identifier.
func (s *MemoryStore) FindByID(_ context.Context, id string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return Profile{}, failure.NotFound("therapist %q", id)
	}
	return clone(item), nil
}

// Create inserts a new profile.
func (s *MemoryStore) Create(_ context.Context, profile Profile) error {
	if profile.ID == "" {
		return failure.Validation("therapist id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[profile.ID]; exists {
		return failure.Validation("therapist %q already exists", profile.ID)
	}
	s.items[profile.ID] = clone(profile)
	return nil
}

// SetRecording stores the audio URL and transcript for one scenario.
func (s *MemoryStore) SetRecording(_ context.Context, id string, scenario Scenario, audioURL, transcript string) error {
	if !scenario.Valid() {
		return failure.Validation("unknown scenario %q", scenario)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return failure.NotFound("therapist %q", id)
	}
	item = clone(item)
	item.Transcripts[scenario] = transcript
	if audioURL != "" {
		item.AudioURLs[scenario] = audioURL
	}
	s.items[id] = item
	return nil
}

func clone(p Profile) Profile {
	p.Approaches = append([]string(nil), p.Approaches...)

	transcripts := make(map[Scenario]string, len(p.Transcripts))
	for k, v := range p.Transcripts {
		transcripts[k] = v
	}
	p.Transcripts = transcripts

	urls := make(map[Scenario]string, len(p.AudioURLs))
	for k, v := range p.AudioURLs {
		urls[k] = v
	}
	p.AudioURLs = urls
	return p
}
