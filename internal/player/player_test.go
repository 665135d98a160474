package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeOutput lets a test end playback on demand and reject clips it cannot
// decode.
type fakeOutput struct {
	decodeErr error

	mu      sync.Mutex
	playing int
	end     func()
	clips   [][]byte
}

func (o *fakeOutput) Play(ctx context.Context, clip []byte) (<-chan struct{}, func(), error) {
	if o.decodeErr != nil {
		return nil, nil, o.decodeErr
	}
	done := make(chan struct{})
	var once sync.Once
	end := func() {
		once.Do(func() {
			o.mu.Lock()
			o.playing--
			o.mu.Unlock()
			close(done)
		})
	}
	o.mu.Lock()
	o.playing++
	o.end = end
	o.clips = append(o.clips, clip)
	o.mu.Unlock()
	return done, end, nil
}

// finish simulates the clip reaching its natural end.
func (o *fakeOutput) finish() {
	o.mu.Lock()
	end := o.end
	o.mu.Unlock()
	end()
}

func (o *fakeOutput) activeCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.playing
}

func TestPauseForInterventionAndResume(t *testing.T) {
	c := New(&fakeOutput{})
	c.Load(300)
	c.Play()
	c.Seek(42)

	c.PauseForIntervention()
	if st := c.Lesson(); st.Playing {
		t.Fatal("lesson still playing during intervention")
	}

	c.ResumeAfterIntervention()
	st := c.Lesson()
	if !st.Playing {
		t.Fatal("lesson did not resume after intervention")
	}
	if st.Position != 42 {
		t.Fatalf("position = %v, want 42", st.Position)
	}
}

func TestResumeRestoresPausedState(t *testing.T) {
	c := New(&fakeOutput{})
	c.Load(300)
	// Lesson was already paused before the intervention.
	c.PauseForIntervention()
	c.ResumeAfterIntervention()
	if c.Lesson().Playing {
		t.Fatal("resume started a lesson that was paused beforehand")
	}
}

func TestResponsePausesLesson(t *testing.T) {
	out := &fakeOutput{}
	c := New(out)
	c.Load(300)
	c.Play()

	finished, err := c.PlayResponse(context.Background(), []byte("mp3"))
	if err != nil {
		t.Fatalf("PlayResponse: %v", err)
	}
	if c.Lesson().Playing {
		t.Fatal("lesson audible while response playing")
	}
	if !c.ResponseActive() {
		t.Fatal("response not active")
	}

	out.finish()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("finished channel never closed")
	}
	c.ResumeAfterIntervention()
	if !c.Lesson().Playing {
		t.Fatal("lesson did not resume after response completed")
	}
}

func TestLessonPlayStopsResponse(t *testing.T) {
	out := &fakeOutput{}
	c := New(out)
	c.Load(300)

	if _, err := c.PlayResponse(context.Background(), []byte("mp3")); err != nil {
		t.Fatalf("PlayResponse: %v", err)
	}
	c.Play()
	if got := out.activeCount(); got != 0 {
		t.Fatalf("active outputs = %d, want 0 after lesson Play", got)
	}
}

func TestDecodeErrorReported(t *testing.T) {
	decodeErr := errors.New("bad mp3 frame")
	c := New(&fakeOutput{decodeErr: decodeErr})
	c.Load(300)
	c.Play()
	c.PauseForIntervention()

	if _, err := c.PlayResponse(context.Background(), []byte("garbage")); !errors.Is(err, decodeErr) {
		t.Fatalf("PlayResponse err = %v, want decode error", err)
	}
	c.ResumeAfterIntervention()
	if !c.Lesson().Playing {
		t.Fatal("lesson did not resume after decode failure")
	}
}

func TestSeekClamps(t *testing.T) {
	c := New(&fakeOutput{})
	c.Load(100)
	c.Seek(-5)
	if got := c.Lesson().Position; got != 0 {
		t.Fatalf("position = %v, want 0", got)
	}
	c.Seek(500)
	if got := c.Lesson().Position; got != 100 {
		t.Fatalf("position = %v, want 100", got)
	}
}

func TestContextCancelStopsResponse(t *testing.T) {
	out := &fakeOutput{}
	c := New(out)
	ctx, cancel := context.WithCancel(context.Background())

	finished, err := c.PlayResponse(ctx, []byte("mp3"))
	if err != nil {
		t.Fatalf("PlayResponse: %v", err)
	}
	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("finished channel never closed after cancel")
	}
	if got := out.activeCount(); got != 0 {
		t.Fatalf("active outputs = %d, want 0 after cancel", got)
	}
}
