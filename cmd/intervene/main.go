// Command intervene exercises the audio intervention flow from the command
// line: it feeds a recorded question file through the pipeline against a
// running server and writes the spoken answer to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/pipeline"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/player"
)

// fileDevice plays back a pre-recorded question file as if it were a live
// microphone.
type fileDevice struct {
	path string
}

func (d *fileDevice) Open(ctx context.Context) (<-chan []byte, func(), error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading question audio: %w", err)
	}
	stream := make(chan []byte, 1)
	stream <- data
	var once sync.Once
	release := func() { once.Do(func() { close(stream) }) }
	return stream, release, nil
}

// fileOutput writes response audio to a file instead of a speaker.
type fileOutput struct {
	path string
}

func (o *fileOutput) Play(ctx context.Context, clip []byte) (<-chan struct{}, func(), error) {
	if err := os.WriteFile(o.path, clip, 0o644); err != nil {
		return nil, nil, fmt.Errorf("writing response audio: %w", err)
	}
	log.Printf("wrote %d bytes of response audio to %s", len(clip), o.path)
	done := make(chan struct{})
	close(done)
	return done, func() {}, nil
}

// buildServerURL appends the module name as a properly escaped query
// parameter; module names contain spaces.
func buildServerURL(base, module string) (string, error) {
	if module == "" {
		return base, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("module", module)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	serverURL := flag.String("server", "ws://localhost:8080/ws/audio", "audio intervention WebSocket URL")
	in := flag.String("in", "question.webm", "audio file with the spoken question")
	out := flag.String("out", "answer.mp3", "file to write the spoken answer to")
	module := flag.String("module", "", "module name for context")
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait for the answer")
	flag.Parse()

	wsURL, err := buildServerURL(*serverURL, *module)
	if err != nil {
		log.Fatalf("bad server URL %q: %v", *serverURL, err)
	}

	ctrl := player.New(&fileOutput{path: *out})
	ctrl.Load(0)

	resolved := make(chan error, 1)
	p := pipeline.New(pipeline.Config{ServerURL: wsURL, ResponseTimeout: *timeout},
		&fileDevice{path: *in}, ctrl, nil, pipeline.Callbacks{
			OnTranscript: func(t string) { fmt.Printf("You asked: %s\n", t) },
			OnReply:      func(r string) { fmt.Printf("Tutor: %s\n", r) },
			OnNotice: func(kind error, message string) {
				select {
				case resolved <- fmt.Errorf("%w: %s", kind, message):
				default:
				}
			},
		})

	if err := p.BeginIntervention(context.Background()); err != nil {
		log.Fatalf("starting intervention: %v", err)
	}
	// Let the file drain into the clip buffer, then finalize it.
	time.Sleep(200 * time.Millisecond)
	p.StopRecording()

	deadline := time.Now().Add(*timeout + 5*time.Second)
	for time.Now().Before(deadline) {
		select {
		case err := <-resolved:
			log.Fatalf("intervention failed: %v", err)
		default:
		}
		if p.State() == pipeline.StateIdle {
			select {
			case err := <-resolved:
				log.Fatalf("intervention failed: %v", err)
			default:
			}
			log.Println("intervention complete")
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	log.Fatal("timed out waiting for the intervention to finish")
}
