package tts

import "time"

// AudioEncoding identifies the wire encoding of synthesized audio.
type AudioEncoding int

const (
	EncodingPCM16 AudioEncoding = iota
	EncodingMP3
	EncodingOGGOpus
	EncodingALaw
	EncodingMuLaw
	EncodingFLAC
)

// String returns the encoding name as the synthesis service expects it.
func (e AudioEncoding) String() string {
	switch e {
	case EncodingPCM16:
		return "PCM16"
	case EncodingMP3:
		return "MP3"
	case EncodingOGGOpus:
		return "OGG_OPUS"
	case EncodingALaw:
		return "ALAW"
	case EncodingMuLaw:
		return "MULAW"
	case EncodingFLAC:
		return "FLAC"
	default:
		return "UNKNOWN"
	}
}

// BytesPerSample returns the per-sample width used to size frames.
// Compressed encodings have no fixed sample width; the PCM width is
// used there so frame sizing stays stable.
func (e AudioEncoding) BytesPerSample() int {
	switch e {
	case EncodingALaw, EncodingMuLaw:
		return 1
	default:
		return 2
	}
}

// Compressed reports whether the bit rate setting applies.
func (e AudioEncoding) Compressed() bool {
	switch e {
	case EncodingMP3, EncodingOGGOpus, EncodingFLAC:
		return true
	}
	return false
}

// AudioFrame is a fixed-size slice of encoded audio, delivered in the
// encoding that was requested, unmodified.
type AudioFrame struct {
	Data       []byte
	SampleRate int
	Channels   int
}

// SynthesisEvent is one element of a session's ordered event sequence.
// Final marks the authoritative end of the utterance; consumers must
// key off Final, not channel closure.
type SynthesisEvent struct {
	RequestID string
	SegmentID int
	Frame     *AudioFrame
	Final     bool
}

// Session is the surface shared by both synthesis session kinds.
// Events is drained until closed; Err reports the terminal error, if
// any, once the channel has closed. Close is idempotent.
type Session interface {
	Events() <-chan SynthesisEvent
	Err() error
	Close() error
}

// frameDuration is the target duration of one emitted frame.
const frameDuration = 20 * time.Millisecond

// SynthesisConfig is the immutable parameter bundle shared by both
// session kinds. Mutations through Engine.UpdateOptions only affect
// sessions created afterward.
type SynthesisConfig struct {
	// APIKey is the opaque service credential, carried as a Basic
	// authorization value on both transports.
	APIKey string

	Voice string
	Model string

	SampleRate int
	Channels   int
	Encoding   AudioEncoding
	// BitRate applies to compressed encodings only.
	BitRate int

	Temperature  float64
	SpeakingRate float64

	HTTPBaseURL string
	WSBaseURL   string

	// Flow-control hints sent on context creation so the service can
	// batch small text pushes.
	BufferCharThreshold int
	MaxBufferDelay      time.Duration
}

// Defaults applied by NewEngine for unset fields.
const (
	DefaultVoice               = "Ashley"
	DefaultModel               = "inworld-tts-1"
	DefaultSampleRate          = 48000
	DefaultBitRate             = 128000
	DefaultTemperature         = 0.8
	DefaultSpeakingRate        = 1.0
	DefaultHTTPBaseURL         = "https://api.inworld.ai"
	DefaultWSBaseURL           = "wss://api.inworld.ai"
	DefaultBufferCharThreshold = 12
	DefaultMaxBufferDelay      = 3 * time.Second
)

func (c SynthesisConfig) withDefaults() SynthesisConfig {
	if c.Voice == "" {
		c.Voice = DefaultVoice
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.Channels <= 0 {
		c.Channels = 1
	}
	if c.BitRate <= 0 {
		c.BitRate = DefaultBitRate
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.SpeakingRate == 0 {
		c.SpeakingRate = DefaultSpeakingRate
	}
	if c.HTTPBaseURL == "" {
		c.HTTPBaseURL = DefaultHTTPBaseURL
	}
	if c.WSBaseURL == "" {
		c.WSBaseURL = DefaultWSBaseURL
	}
	if c.BufferCharThreshold <= 0 {
		c.BufferCharThreshold = DefaultBufferCharThreshold
	}
	if c.MaxBufferDelay <= 0 {
		c.MaxBufferDelay = DefaultMaxBufferDelay
	}
	return c
}

// frameSize returns the byte length of one frame of frameDuration
// audio in this configuration.
func (c SynthesisConfig) frameSize() int {
	samplesPerFrame := c.SampleRate * int(frameDuration.Milliseconds()) / 1000
	return samplesPerFrame * c.Channels * c.Encoding.BytesPerSample()
}
