package intervention

// Event types carried as JSON text frames on the intervention channel.
// A transcription event, when present, always precedes the terminal
// ai_response or error event.
const (
	EventTranscription = "transcription"
	EventAIResponse    = "ai_response"
	EventError         = "error"
)

// Event is the discriminated union sent downstream, one JSON object per frame.
type Event struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript,omitempty"`
	Response   string `json:"response,omitempty"`
	// AudioData carries the synthesized reply as base64 when synthesis
	// succeeded; absent on text-only fallback.
	AudioData string `json:"audioData,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Terminal reports whether the event ends the exchange.
func (e Event) Terminal() bool {
	return e.Type == EventAIResponse || e.Type == EventError
}
