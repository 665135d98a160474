package intervention

import (
	"context"
	"encoding/base64"
	"log"

	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/ai"
)

// Processor runs the server side of one intervention: clip -> transcript ->
// co-host reply -> synthesized speech. Events are emitted strictly in order
// and exactly one terminal event is produced per run.
type Processor struct {
	transcriber ai.Transcriber
	responder   ai.Responder
	synthesizer ai.Synthesizer
}

func NewProcessor(t ai.Transcriber, r ai.Responder, s ai.Synthesizer) *Processor {
	return &Processor{transcriber: t, responder: r, synthesizer: s}
}

// Process handles a single audio clip. moduleName scopes the reply to the
// lesson the learner interrupted. emit is called once per event, on the
// calling goroutine.
func (p *Processor) Process(ctx context.Context, clip []byte, moduleName string, emit func(Event)) {
	if len(clip) == 0 {
		emit(Event{Type: EventError, Message: "Expected binary audio data"})
		return
	}

	transcript, err := p.transcriber.Transcribe(ctx, clip)
	if err != nil {
		log.Printf("intervention: transcription failed: %v", err)
		emit(Event{Type: EventError, Message: "Error processing audio"})
		return
	}
	emit(Event{Type: EventTranscription, Transcript: transcript})

	reply, err := p.responder.Respond(ctx, transcript, moduleName)
	if err != nil {
		log.Printf("intervention: responder failed: %v", err)
		emit(Event{Type: EventError, Message: "Error processing audio"})
		return
	}

	audio, err := p.synthesizer.Synthesize(ctx, reply)
	if err != nil {
		// Speech synthesis is best-effort; the learner still gets the text.
		log.Printf("intervention: synthesis failed, falling back to text: %v", err)
		emit(Event{Type: EventAIResponse, Response: reply})
		return
	}
	emit(Event{
		Type:      EventAIResponse,
		Response:  reply,
		AudioData: base64.StdEncoding.EncodeToString(audio),
	})
}
