package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/intervention"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/player"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/recorder"
)

// fakeDevice yields one fixed clip.
type fakeDevice struct {
	clip    []byte
	openErr error
}

func (d *fakeDevice) Open(ctx context.Context) (<-chan []byte, func(), error) {
	if d.openErr != nil {
		return nil, nil, d.openErr
	}
	stream := make(chan []byte, 1)
	if len(d.clip) > 0 {
		stream <- d.clip
	}
	var once sync.Once
	release := func() { once.Do(func() { close(stream) }) }
	return stream, release, nil
}

// instantOutput completes every clip immediately and records what it played.
type instantOutput struct {
	mu     sync.Mutex
	played [][]byte
}

func (o *instantOutput) Play(ctx context.Context, clip []byte) (<-chan struct{}, func(), error) {
	o.mu.Lock()
	o.played = append(o.played, clip)
	o.mu.Unlock()
	done := make(chan struct{})
	close(done)
	return done, func() {}, nil
}

func (o *instantOutput) playedCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.played)
}

// scriptedChannel replays a fixed event sequence after the clip arrives.
type scriptedChannel struct {
	events  []intervention.Event
	delay   time.Duration
	sendErr error

	mu     sync.Mutex
	clip   []byte
	out    chan intervention.Event
	closed bool
}

func newScriptedChannel(events []intervention.Event) *scriptedChannel {
	return &scriptedChannel{events: events, out: make(chan intervention.Event, 8)}
}

func (c *scriptedChannel) Send(clip []byte) error {
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	c.clip = clip
	c.mu.Unlock()
	go func() {
		if c.delay > 0 {
			time.Sleep(c.delay)
		}
		for _, ev := range c.events {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if closed {
				return
			}
			c.out <- ev
		}
		c.mu.Lock()
		if !c.closed {
			c.closed = true
			close(c.out)
		}
		c.mu.Unlock()
	}()
	return nil
}

func (c *scriptedChannel) Events() <-chan intervention.Event { return c.out }

func (c *scriptedChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptedChannel) sentClip() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clip
}

type harness struct {
	p      *Pipeline
	ctrl   *player.Controller
	out    *instantOutput
	mu     sync.Mutex
	trans  []string
	reply  []string
	notice []error
}

func newHarness(t *testing.T, device recorder.Device, dial DialFunc, timeout time.Duration) *harness {
	t.Helper()
	h := &harness{out: &instantOutput{}}
	h.ctrl = player.New(h.out)
	h.ctrl.Load(300)
	h.ctrl.Play()
	h.p = New(Config{ServerURL: "ws://example/ws/audio", ResponseTimeout: timeout}, device, h.ctrl, dial, Callbacks{
		OnTranscript: func(s string) { h.mu.Lock(); h.trans = append(h.trans, s); h.mu.Unlock() },
		OnReply:      func(s string) { h.mu.Lock(); h.reply = append(h.reply, s); h.mu.Unlock() },
		OnNotice:     func(kind error, _ string) { h.mu.Lock(); h.notice = append(h.notice, kind); h.mu.Unlock() },
	})
	return h
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.p.State() == StateIdle {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("pipeline stuck in state %v", h.p.State())
}

func (h *harness) notices() []error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]error(nil), h.notice...)
}

func (h *harness) transcripts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.trans...)
}

func (h *harness) replies() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.reply...)
}

func audioB64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestFullRoundTrip(t *testing.T) {
	ch := newScriptedChannel([]intervention.Event{
		{Type: intervention.EventTranscription, Transcript: "What is backpropagation?"},
		{Type: intervention.EventAIResponse, Response: "Host A: Great question! Host B: It is how networks learn.", AudioData: audioB64("mp3-bytes")},
	})
	h := newHarness(t, &fakeDevice{clip: []byte("question-audio")}, func(context.Context, string) (Channel, error) {
		return ch, nil
	}, time.Second)

	if err := h.p.BeginIntervention(context.Background()); err != nil {
		t.Fatalf("BeginIntervention: %v", err)
	}
	if h.ctrl.Lesson().Playing {
		t.Fatal("lesson still playing while recording")
	}
	time.Sleep(20 * time.Millisecond)
	h.p.StopRecording()
	h.waitIdle(t)

	if got := string(ch.sentClip()); got != "question-audio" {
		t.Fatalf("clip sent = %q", got)
	}
	if tr := h.transcripts(); len(tr) != 1 || tr[0] != "What is backpropagation?" {
		t.Fatalf("transcripts = %v", tr)
	}
	if r := h.replies(); len(r) != 1 || r[0] != "Host A: Great question! Host B: It is how networks learn." {
		t.Fatalf("replies = %v", r)
	}
	if h.out.playedCount() != 1 {
		t.Fatalf("response audio played %d times, want 1", h.out.playedCount())
	}
	if !h.ctrl.Lesson().Playing {
		t.Fatal("lesson did not resume after the response")
	}
	if n := h.notices(); len(n) != 0 {
		t.Fatalf("unexpected notices: %v", n)
	}
}

func TestPermissionDeniedLeavesPlaybackAlone(t *testing.T) {
	h := newHarness(t, &fakeDevice{openErr: recorder.ErrPermissionDenied}, nil, time.Second)

	err := h.p.BeginIntervention(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if !h.ctrl.Lesson().Playing {
		t.Fatal("lesson was paused despite the denied microphone")
	}
	if n := h.notices(); len(n) != 1 || !errors.Is(n[0], ErrPermissionDenied) {
		t.Fatalf("notices = %v", n)
	}
	if h.p.State() != StateIdle {
		t.Fatalf("state = %v, want idle", h.p.State())
	}
}

func TestEmptyRecordingNeverDials(t *testing.T) {
	dialed := false
	h := newHarness(t, &fakeDevice{}, func(context.Context, string) (Channel, error) {
		dialed = true
		return nil, errors.New("should not dial")
	}, time.Second)

	if err := h.p.BeginIntervention(context.Background()); err != nil {
		t.Fatalf("BeginIntervention: %v", err)
	}
	h.p.StopRecording()
	h.waitIdle(t)

	if dialed {
		t.Fatal("dialed the server for an empty clip")
	}
	if n := h.notices(); len(n) != 1 || !errors.Is(n[0], ErrEmptyRecording) {
		t.Fatalf("notices = %v", n)
	}
	if !h.ctrl.Lesson().Playing {
		t.Fatal("lesson did not resume after the empty recording")
	}
}

func TestBusyRejected(t *testing.T) {
	ch := newScriptedChannel([]intervention.Event{
		{Type: intervention.EventAIResponse, Response: "answer", AudioData: audioB64("a")},
	})
	ch.delay = 100 * time.Millisecond
	h := newHarness(t, &fakeDevice{clip: []byte("clip")}, func(context.Context, string) (Channel, error) {
		return ch, nil
	}, time.Second)

	if err := h.p.BeginIntervention(context.Background()); err != nil {
		t.Fatalf("BeginIntervention: %v", err)
	}
	if err := h.p.BeginIntervention(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("second begin err = %v, want ErrBusy", err)
	}
	time.Sleep(20 * time.Millisecond)
	h.p.StopRecording()
	// Still in flight: reject here too.
	if err := h.p.BeginIntervention(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("in-flight begin err = %v, want ErrBusy", err)
	}
	h.waitIdle(t)
}

func TestRemoteErrorResumes(t *testing.T) {
	ch := newScriptedChannel([]intervention.Event{
		{Type: intervention.EventError, Message: "Error processing audio"},
	})
	h := newHarness(t, &fakeDevice{clip: []byte("clip")}, func(context.Context, string) (Channel, error) {
		return ch, nil
	}, time.Second)

	if err := h.p.BeginIntervention(context.Background()); err != nil {
		t.Fatalf("BeginIntervention: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	h.p.StopRecording()
	h.waitIdle(t)

	if n := h.notices(); len(n) != 1 || !errors.Is(n[0], ErrRemoteError) {
		t.Fatalf("notices = %v", n)
	}
	if !h.ctrl.Lesson().Playing {
		t.Fatal("lesson did not resume after the server error")
	}
	if h.out.playedCount() != 0 {
		t.Fatal("audio played despite the server error")
	}
}

func TestTextFallbackWhenNoAudio(t *testing.T) {
	ch := newScriptedChannel([]intervention.Event{
		{Type: intervention.EventTranscription, Transcript: "q"},
		{Type: intervention.EventAIResponse, Response: "text only answer"},
	})
	h := newHarness(t, &fakeDevice{clip: []byte("clip")}, func(context.Context, string) (Channel, error) {
		return ch, nil
	}, time.Second)

	if err := h.p.BeginIntervention(context.Background()); err != nil {
		t.Fatalf("BeginIntervention: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	h.p.StopRecording()
	h.waitIdle(t)

	if r := h.replies(); len(r) != 1 || r[0] != "text only answer" {
		t.Fatalf("replies = %v", r)
	}
	if h.out.playedCount() != 0 {
		t.Fatal("audio played for a text-only response")
	}
	if n := h.notices(); len(n) != 1 || !errors.Is(n[0], ErrSynthesisFailure) {
		t.Fatalf("notices = %v", n)
	}
	if !h.ctrl.Lesson().Playing {
		t.Fatal("lesson did not resume after the text fallback")
	}
}

func TestServerClosesWithoutResponse(t *testing.T) {
	ch := newScriptedChannel(nil) // closes the stream right after the clip
	h := newHarness(t, &fakeDevice{clip: []byte("clip")}, func(context.Context, string) (Channel, error) {
		return ch, nil
	}, time.Second)

	if err := h.p.BeginIntervention(context.Background()); err != nil {
		t.Fatalf("BeginIntervention: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	h.p.StopRecording()
	h.waitIdle(t)

	if n := h.notices(); len(n) != 1 || !errors.Is(n[0], ErrTransportFailure) {
		t.Fatalf("notices = %v", n)
	}
	if !h.ctrl.Lesson().Playing {
		t.Fatal("lesson did not resume after the silent close")
	}
}

func TestTimeoutDropsLateResponse(t *testing.T) {
	ch := newScriptedChannel([]intervention.Event{
		{Type: intervention.EventAIResponse, Response: "too late", AudioData: audioB64("a")},
	})
	ch.delay = 200 * time.Millisecond
	h := newHarness(t, &fakeDevice{clip: []byte("clip")}, func(context.Context, string) (Channel, error) {
		return ch, nil
	}, 50*time.Millisecond)

	if err := h.p.BeginIntervention(context.Background()); err != nil {
		t.Fatalf("BeginIntervention: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	h.p.StopRecording()
	h.waitIdle(t)

	if n := h.notices(); len(n) != 1 || !errors.Is(n[0], ErrTransportFailure) {
		t.Fatalf("notices = %v", n)
	}
	// Give the late event time to arrive; it must not play or re-pause.
	time.Sleep(300 * time.Millisecond)
	if h.out.playedCount() != 0 {
		t.Fatal("late response audio was played")
	}
	if !h.ctrl.Lesson().Playing {
		t.Fatal("late response disturbed the resumed lesson")
	}
}

func TestDialFailure(t *testing.T) {
	h := newHarness(t, &fakeDevice{clip: []byte("clip")}, func(context.Context, string) (Channel, error) {
		return nil, errors.New("connection refused")
	}, time.Second)

	if err := h.p.BeginIntervention(context.Background()); err != nil {
		t.Fatalf("BeginIntervention: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	h.p.StopRecording()
	h.waitIdle(t)

	if n := h.notices(); len(n) != 1 || !errors.Is(n[0], ErrTransportFailure) {
		t.Fatalf("notices = %v", n)
	}
	if !h.ctrl.Lesson().Playing {
		t.Fatal("lesson did not resume after the failed dial")
	}
}

func TestCancelRecordingResumes(t *testing.T) {
	h := newHarness(t, &fakeDevice{clip: []byte("clip")}, func(context.Context, string) (Channel, error) {
		t.Error("dialed after cancel")
		return nil, errors.New("no")
	}, time.Second)

	if err := h.p.BeginIntervention(context.Background()); err != nil {
		t.Fatalf("BeginIntervention: %v", err)
	}
	h.p.CancelRecording()
	if h.p.State() != StateIdle {
		t.Fatalf("state = %v, want idle", h.p.State())
	}
	if !h.ctrl.Lesson().Playing {
		t.Fatal("lesson did not resume after cancel")
	}
	// StopRecording afterwards must do nothing.
	h.p.StopRecording()
	time.Sleep(50 * time.Millisecond)
	if n := h.notices(); len(n) != 0 {
		t.Fatalf("unexpected notices: %v", n)
	}
}
