// Package player coordinates lesson playback with interruption audio. Lesson
// audio and response audio never play at the same time; the controller pauses
// the lesson for an intervention and resumes it afterwards.
package player

import (
	"context"
	"fmt"
	"sync"
)

// Output plays a decoded audio clip. Play returns a channel that closes when
// playback completes naturally and a stop function that ends it early. An
// undecodable clip is reported as an error before playback begins.
type Output interface {
	Play(ctx context.Context, clip []byte) (done <-chan struct{}, stop func(), err error)
}

// LessonState is the observable state of the lesson track.
type LessonState struct {
	Playing  bool
	Position float64
	Duration float64
}

// Controller owns the lesson track state and enforces mutual exclusion
// between the lesson and response audio.
type Controller struct {
	out Output

	mu           sync.Mutex
	lesson       LessonState
	wasPlaying   bool
	interrupted  bool
	responseStop func()
	responseGen  int
}

func New(out Output) *Controller {
	return &Controller{out: out}
}

// Load sets the lesson duration and rewinds to the start, paused.
func (c *Controller) Load(duration float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lesson = LessonState{Duration: duration}
}

// Play starts the lesson track, stopping any response audio first.
func (c *Controller) Play() {
	c.mu.Lock()
	stop := c.responseStop
	c.responseStop = nil
	c.lesson.Playing = true
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lesson.Playing = false
}

// Seek moves the lesson position, clamped to [0, duration].
func (c *Controller) Seek(position float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if position < 0 {
		position = 0
	}
	if c.lesson.Duration > 0 && position > c.lesson.Duration {
		position = c.lesson.Duration
	}
	c.lesson.Position = position
}

func (c *Controller) Lesson() LessonState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lesson
}

// PauseForIntervention pauses the lesson and remembers whether it was playing
// so ResumeAfterIntervention can restore it. Calling it twice without a
// resume keeps the first snapshot.
func (c *Controller) PauseForIntervention() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.interrupted {
		c.wasPlaying = c.lesson.Playing
		c.interrupted = true
	}
	c.lesson.Playing = false
}

// ResumeAfterIntervention stops any response audio and restores the lesson to
// its pre-intervention playing state.
func (c *Controller) ResumeAfterIntervention() {
	c.mu.Lock()
	stop := c.responseStop
	c.responseStop = nil
	if c.interrupted {
		c.lesson.Playing = c.wasPlaying
		c.interrupted = false
	}
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// PlayResponse plays a response clip through the output. The lesson is paused
// for the duration; the returned channel closes when the clip finishes or is
// stopped. A decode failure leaves the controller ready to resume.
func (c *Controller) PlayResponse(ctx context.Context, clip []byte) (<-chan struct{}, error) {
	c.mu.Lock()
	if c.responseStop != nil {
		prev := c.responseStop
		c.responseStop = nil
		c.mu.Unlock()
		prev()
		c.mu.Lock()
	}
	if !c.interrupted {
		c.wasPlaying = c.lesson.Playing
		c.interrupted = true
	}
	c.lesson.Playing = false
	c.mu.Unlock()

	done, stop, err := c.out.Play(ctx, clip)
	if err != nil {
		return nil, fmt.Errorf("playing response audio: %w", err)
	}

	c.mu.Lock()
	c.responseStop = stop
	c.responseGen++
	gen := c.responseGen
	c.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		select {
		case <-done:
		case <-ctx.Done():
			stop()
		}
		c.mu.Lock()
		if c.responseGen == gen {
			c.responseStop = nil
		}
		c.mu.Unlock()
	}()
	return finished, nil
}

// StopResponse ends response playback early, if any is active.
func (c *Controller) StopResponse() {
	c.mu.Lock()
	stop := c.responseStop
	c.responseStop = nil
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// ResponseActive reports whether response audio is currently playing.
func (c *Controller) ResponseActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responseStop != nil
}
