package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/synthara-ai/tts-gateway/internal/audio"
	"github.com/synthara-ai/tts-gateway/internal/observability"
)

// chunkedSegmentID tags every event of a chunked session; the whole
// text is one logical segment.
const chunkedSegmentID = 0

// ChunkedSession is a one-shot synthesis exchange: the full text goes
// out in a single request and audio frames come back from a streamed
// newline-delimited JSON response.
type ChunkedSession struct {
	cfg       SynthesisConfig
	text      string
	requestID string
	engine    *Engine
	logger    zerolog.Logger

	client *http.Client
	framer *audio.Framer

	events chan SynthesisEvent
	done   chan struct{}
	cancel context.CancelFunc

	closeOnce sync.Once
	errMu     sync.Mutex
	err       error

	started time.Time
}

func newChunkedSession(ctx context.Context, cfg SynthesisConfig, text string, engine *Engine, logger zerolog.Logger) *ChunkedSession {
	runCtx, cancel := context.WithCancel(ctx)

	s := &ChunkedSession{
		cfg:       cfg,
		text:      text,
		requestID: requestIDFromText(text),
		engine:    engine,
		client:    &http.Client{},
		framer:    audio.NewFramer(cfg.frameSize()),
		events:    make(chan SynthesisEvent, 32),
		done:      make(chan struct{}),
		cancel:    cancel,
		started:   time.Now(),
	}
	s.logger = logger.With().
		Str("component", "chunked_session").
		Str("request_id", s.requestID).
		Logger()

	if engine != nil {
		engine.register(s)
	}
	observability.RecordSessionStart("chunked")
	go s.run(runCtx)
	return s
}

// Events returns the ordered event sequence: zero or more non-final
// frames followed by exactly one final event on success. The channel
// closes after the final event or after a fatal error; check Err once
// it is drained.
func (s *ChunkedSession) Events() <-chan SynthesisEvent {
	return s.events
}

// Err returns the terminal error, if any. Valid after Events closes.
func (s *ChunkedSession) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close aborts the session. Frames already emitted remain valid. Safe
// to call at any time, including after completion.
func (s *ChunkedSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.cancel()
		if s.engine != nil {
			s.engine.unregister(s)
		}
	})
	return nil
}

func (s *ChunkedSession) run(ctx context.Context) {
	success := false
	defer func() {
		close(s.events)
		observability.RecordSessionEnd("chunked", success, time.Since(s.started))
		s.Close()
	}()

	body, err := json.Marshal(synthesizeRequest{
		Text:        s.text,
		VoiceID:     s.cfg.Voice,
		ModelID:     s.cfg.Model,
		AudioConfig: s.cfg.audioConfig(),
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		s.fail(&TransportError{Op: "encode request", Err: err})
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.HTTPBaseURL+chunkedSynthesisPath, bytes.NewReader(body))
	if err != nil {
		s.fail(&TransportError{Op: "build request", Err: err})
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		s.fail(&TransportError{Op: "request", Err: err})
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.fail(&TransportError{
			Op:  "request",
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)),
		})
		return
	}

	// Lines are decoded incrementally; ReadBytes only hands back a
	// partial trailing line together with its read error, so a line is
	// never parsed before it is complete.
	reader := bufio.NewReader(resp.Body)
	for {
		line, readErr := reader.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if !s.handleLine(ctx, trimmed) {
				return
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			s.fail(&TransportError{Op: "read stream", Err: readErr})
			return
		}
	}

	// End of stream: whatever is still buffered goes out as the final
	// frame, and the final event closes the sequence.
	rest := s.framer.Flush()
	if !s.emit(ctx, SynthesisEvent{
		RequestID: s.requestID,
		SegmentID: chunkedSegmentID,
		Frame:     s.frame(rest),
		Final:     true,
	}) {
		return
	}
	success = true
	s.logger.Debug().Msg("Chunked synthesis completed")
}

// handleLine processes one complete response line. Returns false when
// the session is over (fatal error or caller close).
func (s *ChunkedSession) handleLine(ctx context.Context, line []byte) bool {
	var rec chunkedRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		// Protocol noise is tolerated: skip the line, keep streaming.
		s.logger.Warn().Err(err).Int("len", len(line)).Msg("Skipping malformed response line")
		observability.RecordError("malformed_line", "chunked_session")
		return true
	}

	switch {
	case rec.Error != nil:
		s.fail(&ProtocolError{Code: rec.Error.Code, Message: rec.Error.Message})
		return false

	case rec.Result != nil && rec.Result.AudioContent != "":
		data, err := base64.StdEncoding.DecodeString(rec.Result.AudioContent)
		if err != nil {
			s.logger.Warn().Err(err).Msg("Skipping undecodable audio content")
			observability.RecordError("malformed_line", "chunked_session")
			return true
		}
		for _, frame := range s.framer.Write(data) {
			if !s.emit(ctx, SynthesisEvent{
				RequestID: s.requestID,
				SegmentID: chunkedSegmentID,
				Frame:     s.frame(frame),
			}) {
				return false
			}
		}
		return true

	default:
		s.logger.Warn().Msg("Skipping response line with no result or error")
		return true
	}
}

func (s *ChunkedSession) emit(ctx context.Context, ev SynthesisEvent) bool {
	select {
	case s.events <- ev:
		observability.RecordFrame("chunked", len(ev.Frame.Data))
		return true
	case <-s.done:
		return false
	case <-ctx.Done():
		return false
	}
}

func (s *ChunkedSession) frame(data []byte) *AudioFrame {
	return &AudioFrame{
		Data:       data,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
	}
}

// fail records the terminal error unless the caller already closed the
// session deliberately.
func (s *ChunkedSession) fail(err error) {
	select {
	case <-s.done:
		return
	default:
	}

	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()

	s.logger.Error().Err(err).Msg("Chunked synthesis failed")
	observability.RecordError("session_failure", "chunked_session")
}

// requestIDFromText derives a stable, log-friendly id from the leading
// bytes of the input text.
func requestIDFromText(text string) string {
	prefix := text
	if len(prefix) > 12 {
		prefix = prefix[:12]
	}
	return fmt.Sprintf("req-%x", []byte(prefix))
}
