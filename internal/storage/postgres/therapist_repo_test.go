package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

func TestSelectColumnsCoverEveryScenario(t *testing.T) {
	for _, s := range therapist.Scenarios {
		for _, prefix := range []string{"transcript_", "voice_"} {
			col := prefix + string(s)
			if !strings.Contains(selectColumns, col) {
				t.Errorf("select list missing %s", col)
			}
			if !strings.Contains(schema, col) {
				t.Errorf("schema missing %s", col)
			}
		}
	}
	if !strings.HasPrefix(selectColumns, "id, display_name") || !strings.HasSuffix(selectColumns, "created_at") {
		t.Fatalf("unexpected column order: %s", selectColumns)
	}
}

func TestSetRecordingQuery(t *testing.T) {
	q, err := setRecordingQuery(therapist.ScenarioAdviceSeeking)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(q, "transcript_advice_seeking = $2") || !strings.Contains(q, "voice_advice_seeking = COALESCE(NULLIF($3, ''), voice_advice_seeking)") {
		t.Fatalf("unexpected query: %s", q)
	}
	if _, err := setRecordingQuery("x; DROP TABLE therapists"); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// TestTherapistRepoRoundTrip runs against a real database when
// TEST_DATABASE_URL is set.
func TestTherapistRepoRoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := EnsureSchema(ctx, db); err != nil {
		t.Fatalf("schema: %v", err)
	}

	repo := NewTherapistRepo(db)
	id := uuid.NewString()
	profile := therapist.NewProfile(id, therapist.Draft{
		DisplayName:    "Sam",
		Role:           therapist.RoleCoach,
		AdviceHandling: therapist.AdviceOfferPerspective,
		Approaches:     []string{"CBT", "Narrative"},
	}, time.Now())
	defer db.ExecContext(context.Background(), `DELETE FROM therapists WHERE id = $1`, id)

	if err := repo.Create(ctx, profile); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, profile); !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected duplicate to fail, got %v", err)
	}
	if err := repo.SetRecording(ctx, id, therapist.ScenarioInterpersonal, "https://a/b.webm", "hello"); err != nil {
		t.Fatalf("set recording: %v", err)
	}
	if err := repo.SetRecording(ctx, id, therapist.ScenarioInterpersonal, "", "again"); err != nil {
		t.Fatalf("set recording: %v", err)
	}

	got, err := repo.FindByID(ctx, id)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.Role != therapist.RoleCoach || len(got.Approaches) != 2 {
		t.Fatalf("unexpected profile: %+v", got)
	}
	if got.Transcript(therapist.ScenarioInterpersonal) != "again" || got.AudioURLs[therapist.ScenarioInterpersonal] != "https://a/b.webm" {
		t.Fatalf("recording not stored: %+v", got)
	}

	if _, err := repo.FindByID(ctx, uuid.NewString()); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := repo.SetRecording(ctx, uuid.NewString(), therapist.ScenarioInterpersonal, "", "x"); !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
