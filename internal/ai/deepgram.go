package ai

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/pkg/api/speak/v1/websocket/interfaces"
	clientinterfaces "github.com/deepgram/deepgram-go-sdk/pkg/client/interfaces/v1"
	"github.com/deepgram/deepgram-go-sdk/pkg/client/speak"
)

// pcmCollector accumulates audio frames from the SDK's receive goroutine.
// The mutex covers both the buffer and the arrival bookkeeping so the waiter
// never reads bytes a straggler frame is still appending.
type pcmCollector struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	lastRecv time.Time
	seen     bool
}

func (c *pcmCollector) append(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Write(data)
	c.lastRecv = time.Now()
	c.seen = true
}

// idleFor reports whether audio has arrived and the stream has then been
// quiet for at least window.
func (c *pcmCollector) idleFor(window time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seen && time.Since(c.lastRecv) > window
}

func (c *pcmCollector) snapshot() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, c.buf.Len())
	copy(out, c.buf.Bytes())
	return out
}

// DeepgramSynthesizer is an alternative Synthesizer using Deepgram Aura over
// the streaming speak WebSocket. PCM frames are collected into a single WAV
// payload so downstream handling matches the MP3 path.
type DeepgramSynthesizer struct {
	apiKey     string
	model      string
	sampleRate int
	encoding   string
}

func NewDeepgramSynthesizer(apiKey, model string) *DeepgramSynthesizer {
	if model == "" {
		model = "aura-2-thalia-en"
	}
	return &DeepgramSynthesizer{apiKey: apiKey, model: model, sampleRate: 48000, encoding: "linear16"}
}

func (d *DeepgramSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("deepgram: API key missing")
	}
	if text == "" {
		return nil, fmt.Errorf("deepgram: empty text")
	}

	options := &clientinterfaces.WSSpeakOptions{
		Model:      d.model,
		Encoding:   d.encoding,
		SampleRate: d.sampleRate,
	}

	pcm := &pcmCollector{}

	cb := &speakCallback{onBinary: func(data []byte) error {
		if len(data) == 0 {
			return nil
		}
		pcm.append(data)
		return nil
	}}

	dg, err := speak.NewWSUsingCallback(ctx, d.apiKey, &clientinterfaces.ClientOptions{}, options, cb)
	if err != nil {
		return nil, fmt.Errorf("deepgram: create ws client: %w", err)
	}
	defer dg.Stop()

	if ok := dg.Connect(); !ok {
		return nil, fmt.Errorf("deepgram: connect failed")
	}
	if err := dg.SpeakWithText(text); err != nil {
		return nil, fmt.Errorf("deepgram: speak text: %w", err)
	}
	if err := dg.Flush(); err != nil {
		return nil, fmt.Errorf("deepgram: flush: %w", err)
	}

	// The speak WS has no explicit end-of-stream marker for a single
	// utterance; treat an idle window after first audio as completion.
	idleWindow := 400 * time.Millisecond
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(12 * time.Second)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			if pcm.idleFor(idleWindow) {
				return encodeWAV(pcm.snapshot(), d.sampleRate), nil
			}
			if time.Now().After(deadline) {
				audio := pcm.snapshot()
				if len(audio) == 0 {
					return nil, fmt.Errorf("deepgram: no audio received before deadline")
				}
				return encodeWAV(audio, d.sampleRate), nil
			}
		}
	}
}

type speakCallback struct{ onBinary func([]byte) error }

func (s *speakCallback) Open(*msginterfaces.OpenResponse) error         { return nil }
func (s *speakCallback) Metadata(*msginterfaces.MetadataResponse) error { return nil }
func (s *speakCallback) Flush(*msginterfaces.FlushedResponse) error     { return nil }
func (s *speakCallback) Clear(*msginterfaces.ClearedResponse) error     { return nil }
func (s *speakCallback) Close(*msginterfaces.CloseResponse) error       { return nil }
func (s *speakCallback) Warning(*msginterfaces.WarningResponse) error   { return nil }
func (s *speakCallback) Error(*msginterfaces.ErrorResponse) error       { return nil }
func (s *speakCallback) UnhandledEvent([]byte) error                    { return nil }
func (s *speakCallback) Binary(byMsg []byte) error {
	if s.onBinary != nil {
		return s.onBinary(byMsg)
	}
	return nil
}
