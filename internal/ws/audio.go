package ws

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/intervention"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  65536,
	WriteBufferSize: 65536,
	CheckOrigin: func(r *http.Request) bool {
		// Allow any origin for demo use; restrict in production
		return true
	},
}

// processTimeout bounds one full transcribe/respond/synthesize run.
const processTimeout = 90 * time.Second

// AudioHandler serves the per-intervention channel. Each connection carries
// exactly one binary clip upstream and a short ordered sequence of JSON
// events downstream.
type AudioHandler struct {
	processor         *intervention.Processor
	defaultModuleName string
}

func NewAudioHandler(p *intervention.Processor, defaultModuleName string) *AudioHandler {
	return &AudioHandler{processor: p, defaultModuleName: defaultModuleName}
}

func (h *AudioHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws/audio upgrade error: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()
	log.Printf("ws/audio connection established")

	moduleName := r.URL.Query().Get("module")
	if moduleName == "" {
		moduleName = h.defaultModuleName
	}

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			log.Printf("ws/audio connection closed: %v", err)
			return
		}
		if mt != websocket.BinaryMessage {
			log.Printf("ws/audio received non-binary message: %s", message)
			if werr := conn.WriteJSON(intervention.Event{
				Type:    intervention.EventError,
				Message: "Expected binary audio data",
			}); werr != nil {
				return
			}
			continue
		}

		log.Printf("ws/audio received clip: %d bytes", len(message))
		ctx, cancel := context.WithTimeout(r.Context(), processTimeout)
		h.processor.Process(ctx, message, moduleName, func(e intervention.Event) {
			if werr := conn.WriteJSON(e); werr != nil {
				log.Printf("ws/audio write error: %v", werr)
			}
		})
		cancel()
	}
}
