package ai

import "context"

// Transcriber turns a recorded audio clip into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip []byte) (string, error)
}

// Responder generates the co-host reply for a learner question, and composes
// full lesson transcripts from a bare topic.
type Responder interface {
	Respond(ctx context.Context, transcript, moduleName string) (string, error)
	ComposeLesson(ctx context.Context, topic string) (string, error)
}

// Synthesizer turns reply text into playable audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}
