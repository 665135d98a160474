// Package lesson generates podcast-style lesson content from a bare topic:
// a two-host transcript plus, when synthesis succeeds, a stored audio file.
package lesson

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/ai"
)

// Lesson is the terminal outcome of one generation call. AudioURL is nil when
// synthesis or storage failed; Error then explains why. A transcript with no
// audio is still a valid lesson.
type Lesson struct {
	Title      string  `json:"title"`
	Transcript string  `json:"transcript"`
	AudioURL   *string `json:"audioUrl"`
	Error      string  `json:"error,omitempty"`
}

type Generator struct {
	responder   ai.Responder
	synthesizer ai.Synthesizer
	files       FileStore
}

func NewGenerator(r ai.Responder, s ai.Synthesizer, files FileStore) *Generator {
	return &Generator{responder: r, synthesizer: s, files: files}
}

// Generate composes and voices a lesson for the topic. A failure to compose
// the transcript is a hard error; audio failures degrade to a text-only
// lesson.
func (g *Generator) Generate(ctx context.Context, topic string) (*Lesson, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("topic is required")
	}
	log.Printf("lesson: generating for topic %q", topic)

	transcript, err := g.responder.ComposeLesson(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("compose lesson: %w", err)
	}

	out := &Lesson{Title: topic, Transcript: transcript}

	audio, err := g.synthesizer.Synthesize(ctx, transcript)
	if err != nil {
		log.Printf("lesson: synthesis failed, returning text-only lesson: %v", err)
		out.Error = "Failed to generate audio for the lesson"
		return out, nil
	}

	name := fmt.Sprintf("lesson_%s.mp3", uuid.NewString())
	url, err := g.files.Save(name, "audio/mpeg", audio)
	if err != nil {
		log.Printf("lesson: saving audio failed, returning text-only lesson: %v", err)
		out.Error = "Failed to store lesson audio"
		return out, nil
	}
	out.AudioURL = &url
	return out, nil
}
