package therapist

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
)

func TestScenarioSetIsClosed(t *testing.T) {
	if len(Scenarios) != 6 {
		t.Fatalf("expected 6 scenarios, got %d", len(Scenarios))
	}
	for _, s := range Scenarios {
		if !s.Valid() || s.Title() == "" || s.RecordingPrompt() == "" {
			t.Fatalf("scenario %q missing catalog entry", s)
		}
	}
	if _, err := ParseScenario("small_talk"); err == nil {
		t.Fatal("expected unknown scenario to be rejected")
	}
}

func TestPlaceholderMentionsTitle(t *testing.T) {
	got := ScenarioMeaningMaking.Placeholder()
	if got != "[Audio recorded for Meaning Making/Perspective Situation. Transcription unavailable.]" {
		t.Fatalf("unexpected placeholder %q", got)
	}
}

func TestAdviceHandlingDescribeFallsBack(t *testing.T) {
	if AdviceHandling("unknown").Describe() != AdviceReflectAndAsk.Describe() {
		t.Fatal("unknown policy should describe as reflect-and-ask")
	}
}

func TestDraftNormalizeAndValidate(t *testing.T) {
	d := Draft{DisplayName: "  Sam  ", Approaches: []string{"CBT", " ", "ACT "}}
	d.Normalize()
	if err := d.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.DisplayName != "Sam" || d.Role != RoleTherapist || d.AdviceHandling != AdviceReflectAndAsk {
		t.Fatalf("defaults not applied: %+v", d)
	}
	if strings.Join(d.Approaches, ",") != "CBT,ACT" {
		t.Fatalf("unexpected approaches %v", d.Approaches)
	}

	bad := Draft{DisplayName: "x", Role: "guru"}
	bad.Normalize()
	if err := bad.Validate(); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	empty := Draft{}
	empty.Normalize()
	if err := empty.Validate(); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
}

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Seed())

	if _, err := store.FindByID(ctx, "missing"); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	profile := NewProfile("t-1", Draft{DisplayName: "Sam", Role: RoleCoach, AdviceHandling: AdviceOfferPerspective}, time.Now())
	if err := store.Create(ctx, profile); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := store.Create(ctx, profile); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected duplicate to fail, got %v", err)
	}

	if err := store.SetRecording(ctx, "t-1", ScenarioInterpersonal, "http://assets/t-1/interpersonal.webm", "hello"); err != nil {
		t.Fatalf("set recording: %v", err)
	}
	got, err := store.FindByID(ctx, "t-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Transcript(ScenarioInterpersonal) != "hello" || got.AudioURLs[ScenarioInterpersonal] == "" {
		t.Fatalf("recording not stored: %+v", got)
	}

	got.Transcripts[ScenarioInterpersonal] = "mutated"
	again, _ := store.FindByID(ctx, "t-1")
	if again.Transcript(ScenarioInterpersonal) != "hello" {
		t.Fatal("store leaked internal map")
	}

	if err := store.SetRecording(ctx, "missing", ScenarioInterpersonal, "", "x"); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
