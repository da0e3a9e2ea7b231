package tts

// Wire payloads for the two synthesis transports. The chunked path is
// a POST with a newline-delimited JSON response; the streaming path is
// a websocket exchanging the tagged messages below.

const (
	chunkedSynthesisPath = "/tts/v1/voice:stream"
	streamSynthesisPath  = "/tts/v1/voice:stream_bidirectional"
)

// audioConfigPayload is the audio sub-object shared by both transports.
type audioConfigPayload struct {
	AudioEncoding   string  `json:"audioEncoding"`
	Bitrate         int     `json:"bitrate,omitempty"`
	SampleRateHertz int     `json:"sampleRateHertz"`
	SpeakingRate    float64 `json:"speakingRate"`
}

func (c SynthesisConfig) audioConfig() audioConfigPayload {
	p := audioConfigPayload{
		AudioEncoding:   c.Encoding.String(),
		SampleRateHertz: c.SampleRate,
		SpeakingRate:    c.SpeakingRate,
	}
	if c.Encoding.Compressed() {
		p.Bitrate = c.BitRate
	}
	return p
}

// synthesizeRequest is the chunked request body.
type synthesizeRequest struct {
	Text        string             `json:"text"`
	VoiceID     string             `json:"voiceId"`
	ModelID     string             `json:"modelId"`
	AudioConfig audioConfigPayload `json:"audioConfig"`
	Temperature float64            `json:"temperature"`
}

// chunkedRecord is one newline-delimited record of the chunked
// response stream: either a result or a service error.
type chunkedRecord struct {
	Result *audioContentPayload `json:"result,omitempty"`
	Error  *serviceStatus       `json:"error,omitempty"`
}

type audioContentPayload struct {
	AudioContent string `json:"audioContent"`
}

type serviceStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// outboundMessage is a client-to-service socket message. Exactly one
// of the operation fields is set.
type outboundMessage struct {
	Create       *createPayload   `json:"create,omitempty"`
	SendText     *sendTextPayload `json:"send_text,omitempty"`
	FlushContext *emptyPayload    `json:"flush_context,omitempty"`
	CloseContext *emptyPayload    `json:"close_context,omitempty"`
	ContextID    string           `json:"contextId"`
}

type createPayload struct {
	VoiceID             string             `json:"voiceId"`
	ModelID             string             `json:"modelId"`
	AudioConfig         audioConfigPayload `json:"audioConfig"`
	Temperature         float64            `json:"temperature"`
	BufferCharThreshold int                `json:"bufferCharThreshold"`
	MaxBufferDelayMs    int                `json:"maxBufferDelayMs"`
}

type sendTextPayload struct {
	Text string `json:"text"`
}

type emptyPayload struct{}

// inboundMessage is a service-to-client socket message: a tagged
// union discriminated by whichever result field is present.
type inboundMessage struct {
	Result *inboundResult `json:"result"`
}

type inboundResult struct {
	Status         *serviceStatus       `json:"status,omitempty"`
	ContextCreated *emptyPayload        `json:"contextCreated,omitempty"`
	ContextClosed  *emptyPayload        `json:"contextClosed,omitempty"`
	AudioChunk     *audioContentPayload `json:"audioChunk,omitempty"`
}
