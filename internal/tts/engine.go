package tts

import (
	"context"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// EnvAPIKey is the process environment fallback for the credential
// when the config does not carry one explicitly.
const EnvAPIKey = "TTS_API_KEY"

// Engine is the single construction point for synthesis sessions. It
// owns the configuration and tracks live sessions so CloseAll can
// guarantee none of them outlive it.
type Engine struct {
	mu       sync.RWMutex
	cfg      SynthesisConfig
	sessions map[Session]struct{}
	closed   bool

	logger zerolog.Logger
}

// SynthesisOptions are the mutable voice parameters. Zero values keep
// the current setting. Updates affect only future sessions; sessions
// already running keep the config they started with.
type SynthesisOptions struct {
	Voice        string
	Model        string
	Temperature  float64
	SpeakingRate float64
}

// NewEngine creates an engine from the given configuration, applying
// defaults for unset fields. It fails fast if no credential is
// available from the config or the process environment.
func NewEngine(cfg SynthesisConfig, logger zerolog.Logger) (*Engine, error) {
	cfg = cfg.withDefaults()

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.APIKey == "" {
		return nil, &ConfigError{Reason: "no API key in config or " + EnvAPIKey}
	}

	return &Engine{
		cfg:      cfg,
		sessions: make(map[Session]struct{}),
		logger:   logger.With().Str("component", "tts_engine").Logger(),
	}, nil
}

// Config returns a snapshot of the engine's current configuration.
func (e *Engine) Config() SynthesisConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cfg
}

// UpdateOptions mutates the voice parameters used by sessions created
// after this call.
func (e *Engine) UpdateOptions(opts SynthesisOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if opts.Voice != "" {
		e.cfg.Voice = opts.Voice
	}
	if opts.Model != "" {
		e.cfg.Model = opts.Model
	}
	if opts.Temperature != 0 {
		e.cfg.Temperature = opts.Temperature
	}
	if opts.SpeakingRate != 0 {
		e.cfg.SpeakingRate = opts.SpeakingRate
	}
}

// NewChunkedSession starts a one-shot synthesis of the full text. The
// request runs in the background; consume Events until it closes, then
// check Err.
func (e *Engine) NewChunkedSession(ctx context.Context, text string) (*ChunkedSession, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, &ConfigError{Reason: "engine is closed"}
	}
	cfg := e.cfg
	e.mu.Unlock()

	return newChunkedSession(ctx, cfg, text, e, e.logger), nil
}

// NewStreamSession opens a bidirectional synthesis context. Text is
// pushed incrementally with SendText; EndInput starts the shutdown
// handshake.
func (e *Engine) NewStreamSession(ctx context.Context) (*StreamSession, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, &ConfigError{Reason: "engine is closed"}
	}
	cfg := e.cfg
	e.mu.Unlock()

	return newStreamSession(ctx, cfg, e, e.logger)
}

// CloseAll shuts down every registered session and clears the
// registry. It is safe to call more than once.
func (e *Engine) CloseAll() error {
	e.mu.Lock()
	e.closed = true
	live := make([]Session, 0, len(e.sessions))
	for s := range e.sessions {
		live = append(live, s)
	}
	e.sessions = make(map[Session]struct{})
	e.mu.Unlock()

	for _, s := range live {
		if err := s.Close(); err != nil {
			e.logger.Warn().Err(err).Msg("Error closing session during shutdown")
		}
	}

	e.logger.Info().Int("sessions", len(live)).Msg("All synthesis sessions closed")
	return nil
}

func (e *Engine) register(s Session) {
	e.mu.Lock()
	e.sessions[s] = struct{}{}
	e.mu.Unlock()
}

// unregister is the self-removal hook sessions call from their own
// close path.
func (e *Engine) unregister(s Session) {
	e.mu.Lock()
	delete(e.sessions, s)
	e.mu.Unlock()
}

// SessionCount reports live sessions, for the readiness probe.
func (e *Engine) SessionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.sessions)
}
