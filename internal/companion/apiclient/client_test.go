package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/zhouzirui/z-companion/backend/internal/config"
	"github.com/zhouzirui/z-companion/backend/internal/failure"
	"github.com/zhouzirui/z-companion/backend/internal/handler"
	"github.com/zhouzirui/z-companion/backend/internal/model/chat"
	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
	"github.com/zhouzirui/z-companion/backend/internal/service/conversation"
	"github.com/zhouzirui/z-companion/backend/internal/service/session"
	therapistservice "github.com/zhouzirui/z-companion/backend/internal/service/therapist"
)

type countingGenerator struct{}

func (countingGenerator) GenerateResponse(_ context.Context, p *therapist.Profile, history []chat.Message, msg string) (string, error) {
	return fmt.Sprintf("%s heard %q after %d messages", p.DisplayName, msg, len(history)), nil
}

type stubTranscriber struct{}

func (stubTranscriber) Transcribe(_ context.Context, audio []byte, filename string) (string, error) {
	return fmt.Sprintf("%d bytes from %s", len(audio), filename), nil
}

func newTestClient(t *testing.T) *Client {
	t.Helper()

	store := therapist.NewMemoryStore(therapist.Seed())
	router := handler.NewRouter(config.ServerConfig{MaxUploadBytes: 1 << 20}, handler.Deps{
		Profiles:    store,
		Therapists:  therapistservice.NewService(store, nil, nil, nil),
		Transcriber: stubTranscriber{},
		Replier:     conversation.NewService(store, countingGenerator{}, nil),
		Sessions:    session.NewService(),
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	client, err := New(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestClientSummary(t *testing.T) {
	client := newTestClient(t)

	summary, err := client.Summary(context.Background(), therapist.DemoID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.DisplayName != "Dr. Maya Chen" {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	_, err = client.Summary(context.Background(), "missing")
	if !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClientReply(t *testing.T) {
	client := newTestClient(t)
	history := []chat.Message{chat.UserMessage("hi"), chat.AssistantMessage("hello")}

	reply, err := client.Reply(context.Background(), therapist.DemoID, "I feel stuck", history)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	want := `Dr. Maya Chen heard "I feel stuck" after 2 messages`
	if reply != want {
		t.Fatalf("expected %q, got %q", want, reply)
	}
}

func TestClientReplyMapsErrors(t *testing.T) {
	client := newTestClient(t)

	_, err := client.Reply(context.Background(), therapist.DemoID, "  ", nil)
	if !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = client.Reply(context.Background(), "nobody", "hello", nil)
	if !errors.Is(err, failure.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClientTranscribe(t *testing.T) {
	client := newTestClient(t)

	text, err := client.Transcribe(context.Background(), []byte("abcd"), "turn.webm")
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "4 bytes from turn.webm" {
		t.Fatalf("unexpected transcription %q", text)
	}
}

func TestClientSetupFlow(t *testing.T) {
	client := newTestClient(t)

	id, err := client.CreateTherapist(context.Background(), therapist.Draft{DisplayName: "Sam Rivera", Role: therapist.RoleCoach})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// 服务端未配置转写，录音保存为占位文本
	res, err := client.UploadRecording(context.Background(), id, therapist.ScenarioInterpersonal, []byte("audio"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !res.Placeholder || res.Transcript != therapist.ScenarioInterpersonal.Placeholder() {
		t.Fatalf("expected placeholder transcript, got %+v", res)
	}

	_, err = client.CreateTherapist(context.Background(), therapist.Draft{})
	if !errors.Is(err, failure.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New("localhost:8080", nil); err == nil {
		t.Fatal("expected error for url without scheme")
	}
}
