package live

// Wire shapes for the realtime coaching endpoint. Every client message
// is a single-key envelope; the server answers with one of the
// serverMessage fields set.

// setupEnvelope opens a session.
type setupEnvelope struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model             string `json:"model"`
	SystemInstruction string `json:"systemInstruction,omitempty"`
}

// realtimeEnvelope carries media chunks sampled from the capture
// sources.
type realtimeEnvelope struct {
	RealtimeInput realtimeInput `json:"realtimeInput"`
}

type realtimeInput struct {
	MediaChunks []mediaChunk `json:"mediaChunks"`
}

type mediaChunk struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

// contentEnvelope carries a complete user text turn.
type contentEnvelope struct {
	ClientContent clientContent `json:"clientContent"`
}

type clientContent struct {
	Turns        []contentTurn `json:"turns"`
	TurnComplete bool          `json:"turnComplete"`
}

type contentTurn struct {
	Role  string        `json:"role"`
	Parts []contentPart `json:"parts"`
}

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *mediaChunk `json:"inlineData,omitempty"`
}

// serverMessage is anything the endpoint sends back.
type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`
	Control       *controlUpdate `json:"control,omitempty"`
	Error         *serverError   `json:"error,omitempty"`
}

type serverContent struct {
	ModelTurn    *contentTurn `json:"modelTurn,omitempty"`
	TurnComplete bool         `json:"turnComplete,omitempty"`
	Interrupted  bool         `json:"interrupted,omitempty"`
}

// controlUpdate lets the paired dashboard flip agent-side switches.
type controlUpdate struct {
	Muted *bool `json:"muted,omitempty"`
}

type serverError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}
