package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func TestNewEngine_MissingCredential(t *testing.T) {
	t.Setenv(EnvAPIKey, "")

	cfg := testConfig("", "")
	cfg.APIKey = ""
	_, err := NewEngine(cfg, zerolog.Nop())

	var configErr *ConfigError
	if !errors.As(err, &configErr) {
		t.Fatalf("Expected ConfigError, got %v", err)
	}
}

func TestNewEngine_EnvCredentialFallback(t *testing.T) {
	t.Setenv(EnvAPIKey, "env-key")

	cfg := testConfig("", "")
	cfg.APIKey = ""
	engine, err := NewEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if engine.Config().APIKey != "env-key" {
		t.Errorf("Expected credential from environment, got %q", engine.Config().APIKey)
	}
}

func TestNewEngine_Defaults(t *testing.T) {
	engine, err := NewEngine(SynthesisConfig{APIKey: "k"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}

	cfg := engine.Config()
	if cfg.Voice != DefaultVoice {
		t.Errorf("Expected default voice %q, got %q", DefaultVoice, cfg.Voice)
	}
	if cfg.Model != DefaultModel {
		t.Errorf("Expected default model %q, got %q", DefaultModel, cfg.Model)
	}
	if cfg.SampleRate != DefaultSampleRate {
		t.Errorf("Expected default sample rate %d, got %d", DefaultSampleRate, cfg.SampleRate)
	}
	if cfg.Channels != 1 {
		t.Errorf("Expected 1 channel, got %d", cfg.Channels)
	}
}

func TestEngine_UpdateOptionsAffectsFutureSessions(t *testing.T) {
	voices := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req synthesizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		voices <- req.VoiceID
	}))
	defer srv.Close()

	engine := newTestEngine(t, srv.URL, "")

	first, err := engine.NewChunkedSession(context.Background(), "one")
	if err != nil {
		t.Fatalf("NewChunkedSession failed: %v", err)
	}
	drain(t, first)

	engine.UpdateOptions(SynthesisOptions{Voice: "Marcus", SpeakingRate: 1.5})

	second, err := engine.NewChunkedSession(context.Background(), "two")
	if err != nil {
		t.Fatalf("NewChunkedSession failed: %v", err)
	}
	drain(t, second)

	if v := <-voices; v != DefaultVoice {
		t.Errorf("First session used voice %q, want %q", v, DefaultVoice)
	}
	if v := <-voices; v != "Marcus" {
		t.Errorf("Second session used voice %q, want %q", v, "Marcus")
	}
	if rate := engine.Config().SpeakingRate; rate != 1.5 {
		t.Errorf("Expected speaking rate 1.5, got %v", rate)
	}
}

func TestEngine_UpdateOptionsZeroValuesKeepCurrent(t *testing.T) {
	engine := newTestEngine(t, "", "")
	engine.UpdateOptions(SynthesisOptions{Voice: "Marcus"})
	engine.UpdateOptions(SynthesisOptions{Temperature: 0.5})

	cfg := engine.Config()
	if cfg.Voice != "Marcus" {
		t.Errorf("Zero voice overwrote previous setting: %q", cfg.Voice)
	}
	if cfg.Temperature != 0.5 {
		t.Errorf("Expected temperature 0.5, got %v", cfg.Temperature)
	}
	if cfg.Model != DefaultModel {
		t.Errorf("Zero model overwrote default: %q", cfg.Model)
	}
}

func TestEngine_CloseAll(t *testing.T) {
	_, wsURL := newWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	engine := newTestEngine(t, "", wsURL)
	var sessions []*StreamSession
	for i := 0; i < 3; i++ {
		s, err := engine.NewStreamSession(context.Background())
		if err != nil {
			t.Fatalf("NewStreamSession failed: %v", err)
		}
		sessions = append(sessions, s)
	}
	if n := engine.SessionCount(); n != 3 {
		t.Fatalf("Expected 3 live sessions, got %d", n)
	}

	if err := engine.CloseAll(); err != nil {
		t.Fatalf("CloseAll failed: %v", err)
	}
	if n := engine.SessionCount(); n != 0 {
		t.Errorf("Expected 0 live sessions after CloseAll, got %d", n)
	}

	for i, s := range sessions {
		select {
		case _, ok := <-s.Events():
			if ok {
				t.Errorf("Session %d emitted an event after CloseAll", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("Session %d events not closed after CloseAll", i)
		}
	}

	// The engine refuses new sessions once shut down.
	if _, err := engine.NewStreamSession(context.Background()); err == nil {
		t.Error("Expected error creating a session on a closed engine")
	}
	if _, err := engine.NewChunkedSession(context.Background(), "late"); err == nil {
		t.Error("Expected error creating a session on a closed engine")
	}
}

func TestEngine_SessionUnregistersOnCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	engine := newTestEngine(t, srv.URL, "")
	session, err := engine.NewChunkedSession(context.Background(), "hello")
	if err != nil {
		t.Fatalf("NewChunkedSession failed: %v", err)
	}
	drain(t, session)

	// The session removes itself once its run loop finishes.
	deadline := time.Now().Add(time.Second)
	for engine.SessionCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("Session still registered after completion: %d", engine.SessionCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}
