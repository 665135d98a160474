// Package pipeline orchestrates an audio intervention end to end: pause the
// lesson, record a question, ship it to the server, play the spoken answer,
// resume the lesson. It owns the state machine and the failure handling in
// between.
package pipeline

import (
	"context"
	"encoding/base64"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/intervention"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/player"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/recorder"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/transport"
)

// State of the intervention flow.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateSending
	StatePlayingResponse
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateSending:
		return "sending"
	case StatePlayingResponse:
		return "playing_response"
	default:
		return "unknown"
	}
}

// Channel is the transport surface the pipeline needs; *transport.Channel
// satisfies it once connected.
type Channel interface {
	Send(clip []byte) error
	Events() <-chan intervention.Event
	Close() error
}

// DialFunc establishes a connected Channel to the given URL.
type DialFunc func(ctx context.Context, url string) (Channel, error)

// DialWebSocket is the production DialFunc.
func DialWebSocket(ctx context.Context, url string) (Channel, error) {
	ch := transport.NewChannel(url)
	if err := ch.Connect(ctx); err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}

// Callbacks deliver user-visible output. All are optional.
type Callbacks struct {
	// OnTranscript receives the recognized question text.
	OnTranscript func(transcript string)
	// OnReply receives the AI answer text, with or without audio.
	OnReply func(reply string)
	// OnNotice receives a failure category and a message to show the user.
	OnNotice func(kind error, message string)
}

type Config struct {
	ServerURL string
	// ResponseTimeout bounds the wait for each server event. Defaults to 2s.
	ResponseTimeout time.Duration
	// MaxRecording caps clip length. Defaults to recorder.DefaultMaxDuration.
	MaxRecording time.Duration
}

// Pipeline drives one intervention at a time. A new one cannot start while a
// previous one is recording, in flight, or playing its response.
type Pipeline struct {
	cfg    Config
	cb     Callbacks
	dial   DialFunc
	player *player.Controller
	rec    *recorder.Recorder

	mu         sync.Mutex
	state      State
	attempt    string
	cancelSend context.CancelFunc
}

func New(cfg Config, device recorder.Device, ctrl *player.Controller, dial DialFunc, cb Callbacks) *Pipeline {
	if cfg.ResponseTimeout <= 0 {
		cfg.ResponseTimeout = 2 * time.Second
	}
	if dial == nil {
		dial = DialWebSocket
	}
	p := &Pipeline{cfg: cfg, cb: cb, dial: dial, player: ctrl}
	p.rec = recorder.New(device, cfg.MaxRecording, p.handleClip)
	return p
}

func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// BeginIntervention acquires the microphone, pauses the lesson and starts
// recording. If microphone access fails the lesson keeps playing untouched.
func (p *Pipeline) BeginIntervention(ctx context.Context) error {
	p.mu.Lock()
	if p.state != StateIdle {
		p.mu.Unlock()
		p.notice(ErrBusy, "Please wait for the current question to finish")
		return ErrBusy
	}
	p.state = StateRecording
	p.attempt = uuid.New().String()
	p.mu.Unlock()

	if err := p.rec.Start(ctx); err != nil {
		p.mu.Lock()
		p.state = StateIdle
		p.attempt = ""
		p.mu.Unlock()
		p.notice(ErrPermissionDenied, "Microphone access is required to ask a question")
		return ErrPermissionDenied
	}

	p.player.PauseForIntervention()
	return nil
}

// StopRecording finalizes the clip and hands it to the send path. No-op
// outside of recording.
func (p *Pipeline) StopRecording() {
	p.rec.Stop()
}

// CancelRecording discards the clip and resumes the lesson.
func (p *Pipeline) CancelRecording() {
	p.mu.Lock()
	if p.state != StateRecording {
		p.mu.Unlock()
		return
	}
	p.state = StateIdle
	p.attempt = ""
	p.mu.Unlock()

	p.rec.Cancel()
	p.player.ResumeAfterIntervention()
}

// Abort tears down whatever is in progress: recording, an in-flight request
// or response playback. Late server events are ignored afterwards.
func (p *Pipeline) Abort() {
	p.mu.Lock()
	p.state = StateIdle
	p.attempt = ""
	cancel := p.cancelSend
	p.cancelSend = nil
	p.mu.Unlock()

	p.rec.Cancel()
	if cancel != nil {
		cancel()
	}
	p.player.StopResponse()
	p.player.ResumeAfterIntervention()
}

// handleClip runs when the recorder finalizes, whether by StopRecording or by
// the duration cap.
func (p *Pipeline) handleClip(clip []byte) {
	p.rec.Reset()

	p.mu.Lock()
	if p.state != StateRecording {
		p.mu.Unlock()
		return
	}
	attempt := p.attempt
	if len(clip) == 0 {
		p.mu.Unlock()
		p.resolve(attempt, ErrEmptyRecording, "No audio was captured, please try again")
		return
	}
	p.state = StateSending
	ctx, cancel := context.WithCancel(context.Background())
	p.cancelSend = cancel
	p.mu.Unlock()

	go p.send(ctx, attempt, clip)
}

func (p *Pipeline) send(ctx context.Context, attempt string, clip []byte) {
	ch, err := p.dial(ctx, p.cfg.ServerURL)
	if err != nil {
		log.Printf("pipeline: dial failed: %v", err)
		p.resolve(attempt, ErrTransportFailure, "Could not reach the tutor, please try again")
		return
	}
	defer ch.Close()

	if err := ch.Send(clip); err != nil {
		log.Printf("pipeline: send failed: %v", err)
		p.resolve(attempt, ErrTransportFailure, "Could not reach the tutor, please try again")
		return
	}

	timer := time.NewTimer(p.cfg.ResponseTimeout)
	defer timer.Stop()

	for {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				p.resolve(attempt, ErrTransportFailure, "Connection lost before a response arrived")
				return
			}
			if p.handleEvent(ctx, attempt, ev) {
				return
			}
			// Progress arrived, extend the wait for the next event.
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(p.cfg.ResponseTimeout)
		case <-timer.C:
			p.resolve(attempt, ErrTransportFailure, "Timed out waiting for a response")
			return
		case <-ctx.Done():
			return
		}
	}
}

// handleEvent applies one server event. It returns true when the attempt has
// reached a terminal outcome.
func (p *Pipeline) handleEvent(ctx context.Context, attempt string, ev intervention.Event) bool {
	if !p.current(attempt) {
		return true
	}
	switch ev.Type {
	case intervention.EventTranscription:
		if p.cb.OnTranscript != nil {
			p.cb.OnTranscript(ev.Transcript)
		}
		return false
	case intervention.EventError:
		p.resolve(attempt, ErrRemoteError, ev.Message)
		return true
	case intervention.EventAIResponse:
		p.playResponse(ctx, attempt, ev)
		return true
	default:
		log.Printf("pipeline: ignoring event type %q", ev.Type)
		return false
	}
}

func (p *Pipeline) playResponse(ctx context.Context, attempt string, ev intervention.Event) {
	if p.cb.OnReply != nil {
		p.cb.OnReply(ev.Response)
	}

	if ev.AudioData == "" {
		p.resolve(attempt, ErrSynthesisFailure, "Audio is unavailable, showing the answer as text")
		return
	}

	audio, err := base64.StdEncoding.DecodeString(ev.AudioData)
	if err != nil {
		log.Printf("pipeline: bad response audio encoding: %v", err)
		p.resolve(attempt, ErrSynthesisFailure, "Audio is unavailable, showing the answer as text")
		return
	}

	p.mu.Lock()
	if p.attempt != attempt {
		p.mu.Unlock()
		return
	}
	p.state = StatePlayingResponse
	p.mu.Unlock()

	finished, err := p.player.PlayResponse(ctx, audio)
	if err != nil {
		log.Printf("pipeline: response playback failed: %v", err)
		p.resolve(attempt, ErrSynthesisFailure, "Audio is unavailable, showing the answer as text")
		return
	}
	<-finished
	p.resolve(attempt, nil, "")
}

// resolve finishes the attempt: resumes the lesson, returns to idle and
// reports the outcome. Stale attempts are dropped silently.
func (p *Pipeline) resolve(attempt string, kind error, message string) {
	p.mu.Lock()
	if p.attempt != attempt {
		p.mu.Unlock()
		return
	}
	p.attempt = ""
	p.state = StateIdle
	p.cancelSend = nil
	p.mu.Unlock()

	p.player.ResumeAfterIntervention()
	if kind != nil {
		p.notice(kind, message)
	}
}

func (p *Pipeline) current(attempt string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt == attempt
}

func (p *Pipeline) notice(kind error, message string) {
	if p.cb.OnNotice != nil {
		p.cb.OnNotice(kind, message)
	}
}
