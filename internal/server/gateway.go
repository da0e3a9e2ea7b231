package server

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/synthara-ai/tts-gateway/internal/config"
	"github.com/synthara-ai/tts-gateway/internal/observability"
	"github.com/synthara-ai/tts-gateway/internal/resilience"
	"github.com/synthara-ai/tts-gateway/internal/tts"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate origin against known clients.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// ClientMessage is what a websocket client sends to drive synthesis.
type ClientMessage struct {
	Type string `json:"type"` // "text", "flush" or "end"
	Text string `json:"text,omitempty"`
}

// ServerMessage carries synthesized audio or an error back.
type ServerMessage struct {
	Type       string `json:"type"` // "audio" or "error"
	Payload    string `json:"payload,omitempty"` // base64 audio frame
	SampleRate int    `json:"sampleRate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
	Final      bool   `json:"final,omitempty"`
	Message    string `json:"message,omitempty"`
}

// SynthesizeRequest is the body of the one-shot HTTP endpoint.
type SynthesizeRequest struct {
	Text string `json:"text"`
}

// Gateway exposes the synthesis engine over websocket and HTTP. It is
// the host collaborator: it drains each session's event sequence and
// owns any retry or protection policy, which the engine itself never
// applies.
type Gateway struct {
	engine  *tts.Engine
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewGateway creates a gateway around the engine.
func NewGateway(engine *tts.Engine, cfg *config.Config) *Gateway {
	return &Gateway{
		engine: engine,
		breaker: resilience.NewCircuitBreaker(
			"synthesis",
			cfg.CircuitBreakerMaxFailures,
			time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second,
		),
		logger: observability.GetLogger().With().Str("component", "gateway").Logger(),
	}
}

// HandleSynthesisWS bridges a client websocket to a streaming
// synthesis session: inbound client messages push text, outbound
// messages carry audio frames as they arrive.
func (g *Gateway) HandleSynthesisWS() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			g.logger.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
			return
		}
		defer conn.Close()

		correlationID := observability.NewCorrelationID()
		logger := observability.WithCorrelationID(correlationID)

		var session *tts.StreamSession
		err = g.breaker.Call(func() error {
			var dialErr error
			session, dialErr = g.engine.NewStreamSession(r.Context())
			return dialErr
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to open synthesis session")
			conn.WriteJSON(ServerMessage{Type: "error", Message: err.Error()})
			return
		}
		defer session.Close()

		logger = logger.With().Str("context_id", session.ContextID()).Logger()
		logger.Info().Msg("Synthesis stream connected")

		// Forward audio events to the client until the session ends.
		forwarded := make(chan struct{})
		go func() {
			defer close(forwarded)
			for ev := range session.Events() {
				msg := ServerMessage{
					Type:       "audio",
					Payload:    base64.StdEncoding.EncodeToString(ev.Frame.Data),
					SampleRate: ev.Frame.SampleRate,
					Channels:   ev.Frame.Channels,
					Final:      ev.Final,
				}
				if err := conn.WriteJSON(msg); err != nil {
					logger.Warn().Err(err).Msg("Failed to write audio to client")
					session.Close()
					return
				}
			}
			if err := session.Err(); err != nil {
				conn.WriteJSON(ServerMessage{Type: "error", Message: err.Error()})
				observability.RecordError("session_failure", "gateway")
			}
		}()

		// Drive the session from client messages.
		for {
			var msg ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn().Err(err).Msg("Client WebSocket read error")
				}
				session.Close()
				break
			}

			switch msg.Type {
			case "text":
				if err := session.SendText(msg.Text); err != nil {
					logger.Warn().Err(err).Msg("Rejected text push")
				}
			case "flush":
				if err := session.Flush(); err != nil {
					logger.Warn().Err(err).Msg("Rejected flush")
				}
			case "end":
				if err := session.EndInput(); err != nil {
					logger.Warn().Err(err).Msg("Rejected end of input")
				}
			default:
				logger.Warn().Str("type", msg.Type).Msg("Unknown client message type")
			}
		}

		<-forwarded
		logger.Info().Msg("Synthesis stream closed")
	}
}

// HandleSynthesize serves the one-shot path: a full text in, a raw
// audio byte stream out.
func (g *Gateway) HandleSynthesize() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req SynthesizeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		session, err := g.engine.NewChunkedSession(r.Context(), req.Text)
		if err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		defer session.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		flusher, _ := w.(http.Flusher)

		written := false
		for ev := range session.Events() {
			if len(ev.Frame.Data) > 0 {
				if _, err := w.Write(ev.Frame.Data); err != nil {
					g.logger.Warn().Err(err).Msg("Client dropped synthesis response")
					session.Close()
					break
				}
				written = true
				if flusher != nil {
					flusher.Flush()
				}
			}
		}

		// Session outcome feeds the breaker so repeated service
		// failures shed load at the gateway edge.
		sessErr := session.Err()
		g.breaker.RecordResult(sessErr == nil)

		if sessErr != nil {
			g.logger.Error().Err(sessErr).Msg("Chunked synthesis failed")
			if !written {
				http.Error(w, sessErr.Error(), http.StatusBadGateway)
			}
		}
	}
}
