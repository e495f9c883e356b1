package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "AI_PROVIDER", "AI_MAX_TOKENS", "AI_TIMEOUT", "TRANSCRIBE_TIMEOUT", "RATE_LIMIT_PER_MINUTE", "MAX_UPLOAD_MB", "S3_USE_SSL", "S3_BUCKET", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected addr %q", cfg.Server.Addr)
	}
	if cfg.Server.RateLimitPerMinute != 30 || cfg.Server.MaxUploadBytes != 32<<20 {
		t.Fatalf("unexpected server limits: %+v", cfg.Server)
	}
	if cfg.AI.Provider != ProviderArk || cfg.AI.MaxTokens != 300 || cfg.AI.Timeout != time.Minute {
		t.Fatalf("unexpected ai config: %+v", cfg.AI)
	}
	if cfg.Transcribe.Model != "whisper-1" {
		t.Fatalf("unexpected transcribe model %q", cfg.Transcribe.Model)
	}
	if cfg.Assets.Bucket != "therapist-audio" || !cfg.Assets.UseSSL {
		t.Fatalf("unexpected assets config: %+v", cfg.Assets)
	}
	if len(cfg.Server.AllowedOrigins) != 1 || cfg.Server.AllowedOrigins[0] != "*" {
		t.Fatalf("unexpected origins %v", cfg.Server.AllowedOrigins)
	}
}

func TestLoadServerConfigAcceptsHostPort(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	server, err := loadServerConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr %q", server.Addr)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":               "80 80",
		"AI_PROVIDER":        "claude",
		"AI_MAX_TOKENS":      "many",
		"TRANSCRIBE_TIMEOUT": "0",
		"S3_USE_SSL":         "maybe",
		"MAX_UPLOAD_MB":      "-1",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("expected %s=%q to be rejected", key, value)
			}
		})
	}
}

func TestAIConfigEnabledPerProvider(t *testing.T) {
	ark := AIConfig{Provider: ProviderArk, Model: "ep-1", APIKey: "k"}
	if !ark.Enabled() {
		t.Fatal("expected ark to be enabled")
	}
	openai := AIConfig{Provider: ProviderOpenAI, Model: "ep-1", APIKey: "k", OpenAIModel: "gpt-4o-mini"}
	if openai.Enabled() {
		t.Fatal("openai provider must not borrow ark credentials")
	}
	openai.OpenAIKey = "sk"
	if !openai.Enabled() {
		t.Fatal("expected openai to be enabled")
	}
}

func TestLoadClientMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadClient(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ServerURL != DefaultClient().ServerURL || !cfg.ManualFallback() {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadClientOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companion.yaml")
	body := "server_url: https://companion.example\ntherapist_id: t-42\nmin_recording: 1500ms\nmanual_fallback: false\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadClient(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TherapistID != "t-42" || cfg.ServerURL != "https://companion.example" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	min, _ := cfg.MinRecordingDuration()
	if min != 1500*time.Millisecond {
		t.Fatalf("unexpected min recording %v", min)
	}
	if cfg.ManualFallback() {
		t.Fatal("expected manual fallback disabled")
	}
	if cfg.Speaker != DefaultClient().Speaker {
		t.Fatal("unset keys should keep defaults")
	}
}

func TestClientConfigRoundTripFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "companion.yaml")
	cfg := DefaultClient()
	cfg.TherapistID = "demo"
	if err := SaveClient(path, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := LoadClient(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.TherapistID != "demo" {
		t.Fatalf("unexpected therapist id %q", loaded.TherapistID)
	}
}

func TestClientConfigRejectsBadDuration(t *testing.T) {
	cfg := DefaultClient()
	cfg.StageTimeout = "soon"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected invalid duration to be rejected")
	}
}
