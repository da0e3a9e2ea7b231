package config

import (
	"os"
	"testing"
	"time"

	"github.com/synthara-ai/tts-gateway/internal/tts"
)

func TestLoad(t *testing.T) {
	os.Setenv("TTS_API_KEY", "test-tts-key")
	defer os.Unsetenv("TTS_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.TTSAPIKey != "test-tts-key" {
		t.Errorf("Expected TTSAPIKey 'test-tts-key', got '%s'", cfg.TTSAPIKey)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("TTS_API_KEY")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when TTS_API_KEY is missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("TTS_API_KEY", "test-tts-key")
	defer os.Unsetenv("TTS_API_KEY")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.SampleRate != 48000 {
		t.Errorf("Expected default sample rate 48000, got %d", cfg.SampleRate)
	}
	if cfg.Encoding != "PCM16" {
		t.Errorf("Expected default encoding PCM16, got %s", cfg.Encoding)
	}
	if cfg.SpeakingRate != 1.0 {
		t.Errorf("Expected default speaking rate 1.0, got %f", cfg.SpeakingRate)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected default log level info, got %s", cfg.LogLevel)
	}
}

func TestLoad_InvalidEncoding(t *testing.T) {
	os.Setenv("TTS_API_KEY", "test-tts-key")
	os.Setenv("TTS_ENCODING", "AIFF")
	defer os.Unsetenv("TTS_API_KEY")
	defer os.Unsetenv("TTS_ENCODING")

	_, err := Load()
	if err == nil {
		t.Error("Expected error for unknown encoding")
	}
}

func TestSynthesis_Mapping(t *testing.T) {
	os.Setenv("TTS_API_KEY", "test-tts-key")
	os.Setenv("TTS_ENCODING", "MULAW")
	os.Setenv("TTS_SAMPLE_RATE", "8000")
	os.Setenv("TTS_MAX_BUFFER_DELAY_MS", "250")
	defer os.Unsetenv("TTS_API_KEY")
	defer os.Unsetenv("TTS_ENCODING")
	defer os.Unsetenv("TTS_SAMPLE_RATE")
	defer os.Unsetenv("TTS_MAX_BUFFER_DELAY_MS")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	syn := cfg.Synthesis()
	if syn.Encoding != tts.EncodingMuLaw {
		t.Errorf("Expected MULAW encoding, got %s", syn.Encoding)
	}
	if syn.SampleRate != 8000 {
		t.Errorf("Expected sample rate 8000, got %d", syn.SampleRate)
	}
	if syn.Channels != 1 {
		t.Errorf("Expected mono, got %d channels", syn.Channels)
	}
	if syn.MaxBufferDelay != 250*time.Millisecond {
		t.Errorf("Expected 250ms buffer delay, got %v", syn.MaxBufferDelay)
	}
}
