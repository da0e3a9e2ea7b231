package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/synthara-ai/tts-gateway/internal/tts"
)

// Config holds all configuration for the TTS gateway service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Synthesis service credential and endpoints
	TTSAPIKey   string `envconfig:"TTS_API_KEY" required:"true"`
	HTTPBaseURL string `envconfig:"TTS_HTTP_BASE_URL" default:"https://api.inworld.ai"`
	WSBaseURL   string `envconfig:"TTS_WS_BASE_URL" default:"wss://api.inworld.ai"`

	// Voice parameters
	Voice        string  `envconfig:"TTS_VOICE" default:"Ashley"`
	Model        string  `envconfig:"TTS_MODEL" default:"inworld-tts-1"`
	SampleRate   int     `envconfig:"TTS_SAMPLE_RATE" default:"48000"` // Hz
	Encoding     string  `envconfig:"TTS_ENCODING" default:"PCM16"`    // PCM16, MP3, OGG_OPUS, ALAW, MULAW, FLAC
	BitRate      int     `envconfig:"TTS_BITRATE" default:"128000"`    // bps, compressed encodings only
	Temperature  float64 `envconfig:"TTS_TEMPERATURE" default:"0.8"`   // synthesis randomness
	SpeakingRate float64 `envconfig:"TTS_SPEAKING_RATE" default:"1.0"` // speed multiplier

	// Flow-control hints for the bidirectional path
	BufferCharThreshold int `envconfig:"TTS_BUFFER_CHAR_THRESHOLD" default:"12"` // characters buffered before the service synthesizes
	MaxBufferDelayMs    int `envconfig:"TTS_MAX_BUFFER_DELAY_MS" default:"3000"` // max buffering delay in milliseconds

	// Gateway resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.TTSAPIKey == "" {
		return nil, fmt.Errorf("TTS_API_KEY is required")
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("TTS_SAMPLE_RATE must be positive, got %d", cfg.SampleRate)
	}
	if _, err := parseEncoding(cfg.Encoding); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Synthesis maps the environment-driven settings onto the engine's
// explicit configuration struct.
func (c *Config) Synthesis() tts.SynthesisConfig {
	enc, _ := parseEncoding(c.Encoding)
	return tts.SynthesisConfig{
		APIKey:              c.TTSAPIKey,
		Voice:               c.Voice,
		Model:               c.Model,
		SampleRate:          c.SampleRate,
		Channels:            1,
		Encoding:            enc,
		BitRate:             c.BitRate,
		Temperature:         c.Temperature,
		SpeakingRate:        c.SpeakingRate,
		HTTPBaseURL:         c.HTTPBaseURL,
		WSBaseURL:           c.WSBaseURL,
		BufferCharThreshold: c.BufferCharThreshold,
		MaxBufferDelay:      time.Duration(c.MaxBufferDelayMs) * time.Millisecond,
	}
}

func parseEncoding(name string) (tts.AudioEncoding, error) {
	switch name {
	case "PCM16", "LINEAR16":
		return tts.EncodingPCM16, nil
	case "MP3":
		return tts.EncodingMP3, nil
	case "OGG_OPUS":
		return tts.EncodingOGGOpus, nil
	case "ALAW":
		return tts.EncodingALaw, nil
	case "MULAW":
		return tts.EncodingMuLaw, nil
	case "FLAC":
		return tts.EncodingFLAC, nil
	default:
		return 0, fmt.Errorf("unknown TTS_ENCODING %q", name)
	}
}
