package terminal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zhouzirui/z-companion/backend/internal/companion"
	"github.com/zhouzirui/z-companion/backend/internal/failure"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type take struct{ audio []byte }

func (t *take) Stop() ([]byte, error) { return t.audio, nil }
func (t *take) Abort() error          { return nil }

type stubRecorder struct{ err error }

func (r stubRecorder) Start(context.Context) (companion.Recording, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &take{audio: []byte("voice sample")}, nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(context.Context, []byte, string) (string, error) {
	return "I keep second guessing myself", nil
}

type stubResponder struct{ err error }

func (r stubResponder) Reply(_ context.Context, _, message string, _ []chat.Message) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "What would it mean to trust yourself here?", nil
}

type silentSpeaker struct{}

func (silentSpeaker) Speak(context.Context, string) error { return nil }

type slowSpeaker struct{ finished atomic.Bool }

func (s *slowSpeaker) Speak(ctx context.Context, _ string) error {
	select {
	case <-time.After(50 * time.Millisecond):
		s.finished.Store(true)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type recordingClient struct {
	draft   therapist.Draft
	uploads int
}

func (c *recordingClient) CreateTherapist(_ context.Context, d therapist.Draft) (string, error) {
	c.draft = d
	return "t-42", nil
}

func (c *recordingClient) UploadRecording(_ context.Context, _ string, s therapist.Scenario, _ []byte) (therapist.RecordingResult, error) {
	c.uploads++
	return therapist.RecordingResult{Scenario: s, Transcript: "text"}, nil
}

// steppingClock advances two seconds on every reading so each recording
// clears the minimum duration.
func steppingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(2 * time.Second)
		return now
	}
}

func newController(t *testing.T, responder companion.Responder) *companion.Controller {
	t.Helper()
	ctrl, err := companion.NewController(companion.Options{
		TherapistID: "demo",
		Recorder:    stubRecorder{},
		Transcriber: stubTranscriber{},
		Responder:   responder,
		Speaker:     silentSpeaker{},
		Now:         steppingClock(),
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	t.Cleanup(ctrl.Close)
	return ctrl
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&companion.TurnError{Stage: companion.StageCapture, Err: failure.Permission(errors.New("denied"))}, "Microphone unavailable"},
		{&companion.TurnError{Stage: companion.StageCapture, Err: errors.Join(failure.ErrDuration, errors.New("x"))}, "Recording too short"},
		{&companion.TurnError{Stage: companion.StageTranscription, Err: failure.Upstream(nil, "quota")}, "Could not transcribe"},
		{&companion.TurnError{Stage: companion.StageCompletion, Err: failure.Upstream(nil, "timeout")}, "Could not get a response"},
		{failure.NotFound("therapist x"), "Therapist not found"},
		{failure.Validation("displayName is required"), "displayName is required"},
	}
	for _, tc := range cases {
		if got := Describe(tc.err); !strings.Contains(got, tc.want) {
			t.Fatalf("Describe(%v) = %q, expected to contain %q", tc.err, got, tc.want)
		}
	}
}

func TestTalkRunsTurns(t *testing.T) {
	out := &syncBuffer{}
	term := New(strings.NewReader("\n\nr\nq\n"), out, DefaultTheme)
	ctrl := newController(t, stubResponder{})

	if err := term.Talk(context.Background(), ctrl, "Dr. Maya Chen"); err != nil {
		t.Fatalf("talk: %v", err)
	}

	got := out.String()
	for _, want := range []string{"You: I keep second guessing myself", "Dr. Maya Chen: What would it mean"} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, got)
		}
	}
	if n := len(ctrl.Messages()); n != 2 {
		t.Fatalf("expected 2 messages, got %d", n)
	}
}

func TestTalkLetsLastReplyFinish(t *testing.T) {
	speaker := &slowSpeaker{}
	ctrl, err := companion.NewController(companion.Options{
		TherapistID: "demo",
		Recorder:    stubRecorder{},
		Transcriber: stubTranscriber{},
		Responder:   stubResponder{},
		Speaker:     speaker,
		Now:         steppingClock(),
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	t.Cleanup(ctrl.Close)

	term := New(strings.NewReader("\n\nq\n"), &syncBuffer{}, DefaultTheme)
	if err := term.Talk(context.Background(), ctrl, "Coach"); err != nil {
		t.Fatalf("talk: %v", err)
	}
	if !speaker.finished.Load() {
		t.Fatal("expected quitting to wait for the reply to finish playing")
	}
}

func TestTalkShowsUserMessageWhenReplyFails(t *testing.T) {
	out := &syncBuffer{}
	term := New(strings.NewReader("\n\n"), out, DefaultTheme)
	ctrl := newController(t, stubResponder{err: failure.Upstream(nil, "overloaded")})

	if err := term.Talk(context.Background(), ctrl, "Coach"); err != nil {
		t.Fatalf("talk: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "You: I keep second guessing myself") || !strings.Contains(got, "Could not get a response") {
		t.Fatalf("unexpected output:\n%s", got)
	}
}

func TestManualTextDeclinedOnEmptyLine(t *testing.T) {
	term := New(strings.NewReader("\nI typed it\n"), &syncBuffer{}, DefaultTheme)

	if _, ok := term.ManualText(context.Background(), nil); ok {
		t.Fatal("expected empty line to decline")
	}
	text, ok := term.ManualText(context.Background(), nil)
	if !ok || text != "I typed it" {
		t.Fatalf("unexpected manual text %q ok=%v", text, ok)
	}
}

func TestReadLineHonoursContext(t *testing.T) {
	term := New(blockingReader{}, &syncBuffer{}, DefaultTheme)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := term.ReadLine(ctx, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}

type blockingReader struct{}

func (blockingReader) Read([]byte) (int, error) { select {} }

func TestSetupWalksWizard(t *testing.T) {
	var script strings.Builder
	script.WriteString("Dr. Lee\ncoach\nPCC\n")
	for range therapist.Scenarios {
		// record, stop, next
		script.WriteString("\n\nn\n")
	}
	script.WriteString("2\nACT, Somatic\nlet's notice\nshould\n\n")

	out := &syncBuffer{}
	term := New(strings.NewReader(script.String()), out, DefaultTheme)
	client := &recordingClient{}

	res, err := term.Setup(context.Background(), companion.NewWizard(), stubRecorder{}, client)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}

	if res.TherapistID != "t-42" || client.uploads != len(therapist.Scenarios) {
		t.Fatalf("unexpected result %+v uploads=%d", res, client.uploads)
	}
	if client.draft.Role != therapist.RoleCoach || client.draft.AdviceHandling != therapist.AdviceOfferPerspective {
		t.Fatalf("unexpected draft %+v", client.draft)
	}
	if len(client.draft.Approaches) != 2 || client.draft.Approaches[1] != "Somatic" {
		t.Fatalf("unexpected approaches %q", client.draft.Approaches)
	}
	if !strings.Contains(out.String(), "Therapist id: t-42") {
		t.Fatalf("expected completion box, got:\n%s", out.String())
	}
}

func TestSetupStopsWhenInputEnds(t *testing.T) {
	term := New(strings.NewReader("Dr. Lee\n"), &syncBuffer{}, DefaultTheme)

	_, err := term.Setup(context.Background(), companion.NewWizard(), stubRecorder{}, &recordingClient{})
	if err == nil {
		t.Fatal("expected error when input ends mid-wizard")
	}
}
