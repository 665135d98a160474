package intervention

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
)

type fakeTranscriber struct {
	text string
	err  error
}

func (f fakeTranscriber) Transcribe(ctx context.Context, clip []byte) (string, error) {
	return f.text, f.err
}

type fakeResponder struct {
	reply string
	err   error
}

func (f fakeResponder) Respond(ctx context.Context, transcript, moduleName string) (string, error) {
	return f.reply, f.err
}
func (f fakeResponder) ComposeLesson(ctx context.Context, topic string) (string, error) {
	return f.reply, f.err
}

type fakeSynthesizer struct {
	audio []byte
	err   error
}

func (f fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	return f.audio, f.err
}

func collect(p *Processor, clip []byte) []Event {
	var events []Event
	p.Process(context.Background(), clip, "Neural Networks and Deep Learning", func(e Event) {
		events = append(events, e)
	})
	return events
}

func TestProcess_HappyPathEmitsOrderedEvents(t *testing.T) {
	p := NewProcessor(
		fakeTranscriber{text: "What is backpropagation?"},
		fakeResponder{reply: "Host A: Gradients. Host B: Blame arithmetic!"},
		fakeSynthesizer{audio: []byte("audio-bytes")},
	)
	events := collect(p, []byte{1, 2, 3})
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Type != EventTranscription || events[0].Transcript != "What is backpropagation?" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Type != EventAIResponse {
		t.Fatalf("unexpected terminal event: %+v", events[1])
	}
	decoded, err := base64.StdEncoding.DecodeString(events[1].AudioData)
	if err != nil || string(decoded) != "audio-bytes" {
		t.Fatalf("audioData mismatch: %q err=%v", events[1].AudioData, err)
	}
	if !events[1].Terminal() {
		t.Fatalf("ai_response must be terminal")
	}
}

func TestProcess_EmptyClipIsErrorEventWithoutCalls(t *testing.T) {
	p := NewProcessor(
		fakeTranscriber{err: errors.New("must not be called")},
		fakeResponder{},
		fakeSynthesizer{},
	)
	events := collect(p, nil)
	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("expected single error event, got %+v", events)
	}
}

func TestProcess_TranscriptionFailure(t *testing.T) {
	p := NewProcessor(
		fakeTranscriber{err: errors.New("whisper down")},
		fakeResponder{reply: "unused"},
		fakeSynthesizer{},
	)
	events := collect(p, []byte{1})
	if len(events) != 1 || events[0].Type != EventError {
		t.Fatalf("expected single error event, got %+v", events)
	}
	if events[0].Message != "Error processing audio" {
		t.Fatalf("unexpected message: %q", events[0].Message)
	}
}

func TestProcess_ResponderFailureAfterTranscription(t *testing.T) {
	p := NewProcessor(
		fakeTranscriber{text: "hi"},
		fakeResponder{err: errors.New("llm down")},
		fakeSynthesizer{},
	)
	events := collect(p, []byte{1})
	if len(events) != 2 {
		t.Fatalf("expected transcription then error, got %+v", events)
	}
	if events[0].Type != EventTranscription || events[1].Type != EventError {
		t.Fatalf("unexpected event order: %+v", events)
	}
}

func TestProcess_SynthesisFailureFallsBackToText(t *testing.T) {
	p := NewProcessor(
		fakeTranscriber{text: "hi"},
		fakeResponder{reply: "Host A: text only."},
		fakeSynthesizer{err: errors.New("tts down")},
	)
	events := collect(p, []byte{1})
	last := events[len(events)-1]
	if last.Type != EventAIResponse {
		t.Fatalf("expected ai_response fallback, got %+v", last)
	}
	if last.AudioData != "" {
		t.Fatalf("expected no audioData on fallback")
	}
	if last.Response != "Host A: text only." {
		t.Fatalf("reply text lost in fallback: %q", last.Response)
	}
}

func TestProcess_ExactlyOneTerminalEvent(t *testing.T) {
	cases := []struct {
		name string
		p    *Processor
	}{
		{"happy", NewProcessor(fakeTranscriber{text: "q"}, fakeResponder{reply: "r"}, fakeSynthesizer{audio: []byte{1}})},
		{"stt_fail", NewProcessor(fakeTranscriber{err: errors.New("x")}, fakeResponder{}, fakeSynthesizer{})},
		{"llm_fail", NewProcessor(fakeTranscriber{text: "q"}, fakeResponder{err: errors.New("x")}, fakeSynthesizer{})},
		{"tts_fail", NewProcessor(fakeTranscriber{text: "q"}, fakeResponder{reply: "r"}, fakeSynthesizer{err: errors.New("x")})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events := collect(tc.p, []byte{1})
			terminals := 0
			for _, e := range events {
				if e.Terminal() {
					terminals++
				}
			}
			if terminals != 1 {
				t.Fatalf("expected exactly one terminal event, got %d in %+v", terminals, events)
			}
			if !events[len(events)-1].Terminal() {
				t.Fatalf("terminal event must be last")
			}
		})
	}
}
