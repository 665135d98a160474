// Package recorder captures a single bounded-duration audio clip from a
// microphone device.
package recorder

import (
	"bytes"
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// DefaultMaxDuration bounds a clip both for user experience and upstream
// payload size.
const DefaultMaxDuration = 8 * time.Second

var (
	// ErrPermissionDenied is returned by a Device when microphone access is
	// declined or no capture device exists.
	ErrPermissionDenied = errors.New("microphone permission denied")
	// ErrAlreadyRecording rejects a second Start while a session is active.
	ErrAlreadyRecording = errors.New("recording already in progress")
)

// Device abstracts the microphone. Open acquires the device and returns a
// stream of audio chunks plus a release function; release must stop the
// stream (the chunk channel closes) and free the device synchronously.
type Device interface {
	Open(ctx context.Context) (<-chan []byte, func(), error)
}

// State of the recording session.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Recorder owns at most one active recording session. When the session ends
// by Stop or by hitting the duration cap, onStop receives the finalized clip;
// both paths behave identically. Cancel discards the session without a clip.
type Recorder struct {
	device      Device
	maxDuration time.Duration
	onStop      func(clip []byte)

	mu        sync.Mutex
	state     State
	starting  bool
	buf       bytes.Buffer
	release   func()
	capTimer  *time.Timer
	startedAt time.Time
}

func New(device Device, maxDuration time.Duration, onStop func(clip []byte)) *Recorder {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxDuration
	}
	return &Recorder{device: device, maxDuration: maxDuration, onStop: onStop}
}

// Start acquires the microphone and begins buffering. Device errors are
// returned unchanged so the caller can surface permission problems.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state == StateRecording || r.starting {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	// Claim the session before releasing the lock so a concurrent Start
	// cannot open a second device while this one is still acquiring.
	r.starting = true
	r.mu.Unlock()

	chunks, release, err := r.device.Open(ctx)

	r.mu.Lock()
	r.starting = false
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.state = StateRecording
	r.buf.Reset()
	r.release = release
	r.startedAt = time.Now()
	r.capTimer = time.AfterFunc(r.maxDuration, func() {
		log.Printf("recorder: duration cap reached, auto-stopping")
		r.Stop()
	})
	r.mu.Unlock()

	go r.collect(chunks)
	return nil
}

func (r *Recorder) collect(chunks <-chan []byte) {
	for chunk := range chunks {
		r.mu.Lock()
		if r.state == StateRecording {
			r.buf.Write(chunk)
		}
		r.mu.Unlock()
	}
}

// Stop finalizes the clip, releases the device and invokes onStop. Calling
// Stop when not recording is a no-op.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return
	}
	r.state = StateStopped
	if r.capTimer != nil {
		r.capTimer.Stop()
		r.capTimer = nil
	}
	release := r.release
	r.release = nil
	clip := make([]byte, r.buf.Len())
	copy(clip, r.buf.Bytes())
	onStop := r.onStop
	r.mu.Unlock()

	if release != nil {
		release()
	}
	if onStop != nil {
		onStop(clip)
	}
}

// Cancel discards buffered data and releases the device without producing a
// clip. The release is synchronous so no device handle outlives the call.
func (r *Recorder) Cancel() {
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		return
	}
	r.state = StateIdle
	if r.capTimer != nil {
		r.capTimer.Stop()
		r.capTimer = nil
	}
	release := r.release
	r.release = nil
	r.buf.Reset()
	r.mu.Unlock()

	if release != nil {
		release()
	}
}

// Reset returns a stopped recorder to idle so it can record again.
func (r *Recorder) Reset() {
	r.mu.Lock()
	if r.state == StateStopped {
		r.state = StateIdle
		r.buf.Reset()
	}
	r.mu.Unlock()
}

func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed reports how long the active session has been recording.
func (r *Recorder) Elapsed() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return 0
	}
	return time.Since(r.startedAt)
}
