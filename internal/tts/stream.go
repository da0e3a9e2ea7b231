package tts

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/synthara-ai/tts-gateway/internal/audio"
	"github.com/synthara-ai/tts-gateway/internal/observability"
)

// ErrInputEnded is returned by SendText and Flush after EndInput.
var ErrInputEnded = errors.New("tts stream: input already ended")

// ErrSessionClosed is returned when pushing into a torn-down session.
var ErrSessionClosed = errors.New("tts stream: session closed")

// streamState is the per-context lifecycle. Transitions are strictly
// sequential; failed absorbs from every non-terminal state.
type streamState int

const (
	stateIdle streamState = iota
	stateCreating
	stateActive
	stateFlushing
	stateClosing
	stateClosed
	stateFailed
)

func (st streamState) String() string {
	switch st {
	case stateIdle:
		return "idle"
	case stateCreating:
		return "creating"
	case stateActive:
		return "active"
	case stateFlushing:
		return "flushing"
	case stateClosing:
		return "closing"
	case stateClosed:
		return "closed"
	case stateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StreamSession is a long-lived bidirectional synthesis exchange. The
// caller pushes text incrementally with SendText, may force generation
// with Flush, and signals normal end with EndInput; audio frames
// arrive on Events as the service produces them.
//
// Two goroutines drive the session: a writer draining the outbound
// queue and a reader consuming socket messages. They share only the
// context id and the framer.
type StreamSession struct {
	cfg       SynthesisConfig
	engine    *Engine
	logger    zerolog.Logger
	conn      *websocket.Conn
	contextID string
	framer    *audio.Framer

	events   chan SynthesisEvent
	outbound chan outboundMessage
	done     chan struct{}

	stateMu    sync.Mutex
	state      streamState
	inputEnded bool

	errMu sync.Mutex
	err   error

	closeOnce  sync.Once
	eventsOnce sync.Once
	endOnce    sync.Once

	started time.Time
}

func newStreamSession(ctx context.Context, cfg SynthesisConfig, engine *Engine, logger zerolog.Logger) (*StreamSession, error) {
	header := http.Header{}
	header.Set("Authorization", "Basic "+cfg.APIKey)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, cfg.WSBaseURL+streamSynthesisPath, header)
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, &TransportError{Op: "dial", Err: err}
	}

	s := &StreamSession{
		cfg:       cfg,
		engine:    engine,
		conn:      conn,
		contextID: newContextID(),
		framer:    audio.NewFramer(cfg.frameSize()),
		events:    make(chan SynthesisEvent, 32),
		outbound:  make(chan outboundMessage, 64),
		done:      make(chan struct{}),
		state:     stateCreating,
		started:   time.Now(),
	}
	s.logger = logger.With().
		Str("component", "stream_session").
		Str("context_id", s.contextID).
		Logger()

	// The create message is queued before the loops start, so it is
	// always the first thing on the wire for this context.
	s.outbound <- outboundMessage{
		Create: &createPayload{
			VoiceID:             cfg.Voice,
			ModelID:             cfg.Model,
			AudioConfig:         cfg.audioConfig(),
			Temperature:         cfg.Temperature,
			BufferCharThreshold: cfg.BufferCharThreshold,
			MaxBufferDelayMs:    int(cfg.MaxBufferDelay.Milliseconds()),
		},
		ContextID: s.contextID,
	}

	if engine != nil {
		engine.register(s)
	}
	observability.RecordSessionStart("stream")

	go s.writeLoop()
	go s.readLoop()

	s.logger.Debug().Msg("Streaming synthesis context opened")
	return s, nil
}

// ContextID returns the client-generated context identifier.
func (s *StreamSession) ContextID() string {
	return s.contextID
}

// SendText forwards a text fragment to the synthesis context. Text is
// accepted as soon as the session exists; it queues at the transport
// until the service acknowledges the context.
func (s *StreamSession) SendText(text string) error {
	if err := s.checkPushable(); err != nil {
		return err
	}
	return s.enqueue(outboundMessage{
		SendText:  &sendTextPayload{Text: text},
		ContextID: s.contextID,
	})
}

// Flush asks the service to synthesize whatever text it has buffered.
func (s *StreamSession) Flush() error {
	if err := s.checkPushable(); err != nil {
		return err
	}
	return s.enqueue(outboundMessage{
		FlushContext: &emptyPayload{},
		ContextID:    s.contextID,
	})
}

// EndInput marks the caller's input as complete: one final
// flush_context followed by close_context, in that order, after all
// previously queued text. The session finishes when the service
// acknowledges the context close.
func (s *StreamSession) EndInput() error {
	var err error
	s.endOnce.Do(func() {
		s.stateMu.Lock()
		if s.state == stateFailed || s.state == stateClosed {
			s.stateMu.Unlock()
			err = ErrSessionClosed
			return
		}
		s.inputEnded = true
		s.state = stateFlushing
		s.stateMu.Unlock()

		if err = s.enqueue(outboundMessage{FlushContext: &emptyPayload{}, ContextID: s.contextID}); err != nil {
			return
		}
		if err = s.enqueue(outboundMessage{CloseContext: &emptyPayload{}, ContextID: s.contextID}); err != nil {
			return
		}

		s.stateMu.Lock()
		if s.state == stateFlushing {
			s.state = stateClosing
		}
		s.stateMu.Unlock()
	})
	return err
}

// Events returns the ordered event sequence. A final event is emitted
// if and only if the service acknowledged the context close.
func (s *StreamSession) Events() <-chan SynthesisEvent {
	return s.events
}

// Err returns the terminal error, if any. Valid after Events closes.
func (s *StreamSession) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Close tears down the transport immediately, unblocking both loops.
// Idempotent, and safe to call from the session's own completion path.
func (s *StreamSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
		if s.engine != nil {
			s.engine.unregister(s)
		}

		s.stateMu.Lock()
		success := s.state == stateClosed
		s.stateMu.Unlock()
		observability.RecordSessionEnd("stream", success, time.Since(s.started))
	})
	return nil
}

func (s *StreamSession) checkPushable() error {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()

	if s.inputEnded {
		return ErrInputEnded
	}
	switch s.state {
	case stateFailed, stateClosed:
		return ErrSessionClosed
	}
	return nil
}

func (s *StreamSession) enqueue(msg outboundMessage) error {
	select {
	case s.outbound <- msg:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// writeLoop is the only writer on the socket. It preserves the order
// text was pushed by the caller; nothing is ever reordered.
func (s *StreamSession) writeLoop() {
	for {
		select {
		case msg := <-s.outbound:
			if err := s.conn.WriteJSON(msg); err != nil {
				s.fail(&TransportError{Op: "write", Err: err})
				// Unblock the reader; it performs the teardown.
				s.conn.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

// readLoop consumes inbound socket messages, feeds the framer and
// drives the state machine. It owns the events channel.
func (s *StreamSession) readLoop() {
	defer s.eventsOnce.Do(func() { close(s.events) })

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.handleDisconnect(err)
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn().Err(err).Msg("Skipping malformed socket message")
			observability.RecordError("malformed_message", "stream_session")
			continue
		}
		if msg.Result == nil {
			s.logger.Warn().Msg("Skipping socket message with no result")
			observability.RecordError("malformed_message", "stream_session")
			continue
		}
		res := msg.Result

		// A non-success status aborts regardless of the message tag.
		if res.Status != nil && res.Status.Code != 0 {
			s.fail(&ProtocolError{Code: res.Status.Code, Message: res.Status.Message})
			s.setState(stateFailed)
			s.Close()
			return
		}

		switch {
		case res.ContextCreated != nil:
			s.stateMu.Lock()
			if s.state == stateCreating {
				s.state = stateActive
			}
			s.stateMu.Unlock()
			s.logger.Debug().Msg("Synthesis context acknowledged")

		case res.AudioChunk != nil:
			chunk, err := base64.StdEncoding.DecodeString(res.AudioChunk.AudioContent)
			if err != nil {
				s.logger.Warn().Err(err).Msg("Skipping undecodable audio chunk")
				observability.RecordError("malformed_message", "stream_session")
				continue
			}
			for _, frame := range s.framer.Write(chunk) {
				if !s.emit(SynthesisEvent{
					RequestID: s.contextID,
					Frame:     s.frame(frame),
				}) {
					return
				}
			}

		case res.ContextClosed != nil:
			// The only path that legitimately completes the session.
			rest := s.framer.Flush()
			if !s.emit(SynthesisEvent{
				RequestID: s.contextID,
				Frame:     s.frame(rest),
				Final:     true,
			}) {
				return
			}
			s.setState(stateClosed)
			s.logger.Debug().Msg("Streaming synthesis completed")
			s.Close()
			return

		case res.Status != nil:
			// Success status with no payload: a plain ack.

		default:
			s.logger.Warn().Msg("Skipping socket message with unrecognized tag")
			observability.RecordError("malformed_message", "stream_session")
		}
	}
}

// handleDisconnect classifies a transport-level close: before the
// caller ended input it is an unexpected termination, afterwards it is
// still an error because only contextClosed completes the session.
func (s *StreamSession) handleDisconnect(err error) {
	s.stateMu.Lock()
	ended := s.inputEnded
	s.stateMu.Unlock()

	if ended {
		s.fail(&TransportError{Op: "read", Err: err})
	} else {
		s.fail(&UnexpectedCloseError{Err: err})
	}
	s.setState(stateFailed)
	s.Close()
}

func (s *StreamSession) emit(ev SynthesisEvent) bool {
	select {
	case s.events <- ev:
		observability.RecordFrame("stream", len(ev.Frame.Data))
		return true
	case <-s.done:
		return false
	}
}

func (s *StreamSession) frame(data []byte) *AudioFrame {
	return &AudioFrame{
		Data:       data,
		SampleRate: s.cfg.SampleRate,
		Channels:   s.cfg.Channels,
	}
}

func (s *StreamSession) setState(st streamState) {
	s.stateMu.Lock()
	// Terminal states never transition away.
	if s.state != stateClosed && s.state != stateFailed {
		s.state = st
	}
	s.stateMu.Unlock()
}

// fail records the terminal error unless the caller already tore the
// session down deliberately.
func (s *StreamSession) fail(err error) {
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

	s.logger.Error().Err(err).Msg("Streaming synthesis failed")
	observability.RecordError("session_failure", "stream_session")
}

// newContextID generates an id unique across sessions in this process.
func newContextID() string {
	return fmt.Sprintf("ctx-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
