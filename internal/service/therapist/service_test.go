package therapist

import (
	"context"
	"errors"
	"testing"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
	model "github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

type fakeAssets struct {
	keys []string
	err  error
}

func (f *fakeAssets) Put(_ context.Context, key string, _ []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://assets.example/therapist-audio/" + key, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

func TestCreateAssignsIDAndDefaults(t *testing.T) {
	store := model.NewMemoryStore()
	svc := NewService(store, nil, nil, nil)

	id, err := svc.Create(context.Background(), model.Draft{DisplayName: " Sam ", Approaches: []string{"CBT"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	profile, err := store.FindByID(context.Background(), id)
	if err != nil {
		t.Fatalf("profile not stored: %v", err)
	}
	if profile.DisplayName != "Sam" || profile.Role != model.RoleTherapist || profile.AdviceHandling != model.AdviceReflectAndAsk {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}

func TestCreateRejectsInvalidDraft(t *testing.T) {
	svc := NewService(model.NewMemoryStore(), nil, nil, nil)
	if _, err := svc.Create(context.Background(), model.Draft{}); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSummary(t *testing.T) {
	svc := NewService(model.NewMemoryStore(model.Seed()), nil, nil, nil)

	summary, err := svc.Summary(context.Background(), model.DemoID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.DisplayName != "Dr. Maya Chen" || summary.Credentials != "LMFT" {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if _, err := svc.Summary(context.Background(), "missing"); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAttachRecordingStoresTranscript(t *testing.T) {
	store := model.NewMemoryStore(model.Seed())
	assets := &fakeAssets{}
	svc := NewService(store, assets, fakeTranscriber{text: "Let's slow down."}, nil)

	result, err := svc.AttachRecording(context.Background(), model.DemoID, model.ScenarioEmotionalActivation, []byte("audio"), "blob.webm", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Placeholder || result.Transcript != "Let's slow down." {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(assets.keys) != 1 || assets.keys[0] != "demo/emotional_activation.webm" {
		t.Fatalf("unexpected upload keys: %v", assets.keys)
	}

	profile, _ := store.FindByID(context.Background(), model.DemoID)
	if profile.Transcript(model.ScenarioEmotionalActivation) != "Let's slow down." || profile.AudioURLs[model.ScenarioEmotionalActivation] != result.AudioURL {
		t.Fatalf("recording not persisted: %+v", profile)
	}
}

func TestAttachRecordingFallsBackToPlaceholder(t *testing.T) {
	store := model.NewMemoryStore(model.Seed())
	svc := NewService(store, nil, fakeTranscriber{err: failure.Upstream(nil, "quota")}, nil)

	result, err := svc.AttachRecording(context.Background(), model.DemoID, model.ScenarioInterpersonal, []byte("audio"), "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Placeholder || result.Transcript != model.ScenarioInterpersonal.Placeholder() {
		t.Fatalf("expected placeholder, got %+v", result)
	}
}

func TestAttachRecordingErrors(t *testing.T) {
	ctx := context.Background()
	store := model.NewMemoryStore(model.Seed())

	svc := NewService(store, nil, nil, nil)
	if _, err := svc.AttachRecording(ctx, model.DemoID, "small_talk", []byte("a"), "", ""); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error for scenario, got %v", err)
	}
	if _, err := svc.AttachRecording(ctx, model.DemoID, model.ScenarioMeaningMaking, nil, "", ""); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error for audio, got %v", err)
	}
	if _, err := svc.AttachRecording(ctx, "missing", model.ScenarioMeaningMaking, []byte("a"), "", ""); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	failing := NewService(store, &fakeAssets{err: errors.New("bucket gone")}, nil, nil)
	if _, err := failing.AttachRecording(ctx, model.DemoID, model.ScenarioMeaningMaking, []byte("a"), "", ""); !errors.Is(err, failure.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
