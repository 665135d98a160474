package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/ai"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/config"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/httpserver"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/intervention"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/lesson"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/store"
	"github.com/Hvlim-techbro/learnmatrix-prototype/internal/ws"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg := config.Load()

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}
	defer repo.Close()

	if err := store.Seed(context.Background(), repo); err != nil {
		log.Fatalf("seeding database: %v", err)
	}

	openai := ai.NewOpenAIClient(cfg.OpenAIKey, cfg.TTSOpenAIKey,
		cfg.ChatModelID, cfg.WhisperModel, cfg.TTSModelID, cfg.TTSVoice)

	var synth ai.Synthesizer = openai
	if cfg.TTSProvider == "deepgram" {
		synth = ai.NewDeepgramSynthesizer(cfg.DeepgramKey, cfg.DeepgramModel)
		log.Printf("using Deepgram speech synthesis (model %s)", cfg.DeepgramModel)
	}

	var files lesson.FileStore
	if cfg.SupabaseURL != "" && cfg.SupabaseKey != "" {
		files, err = lesson.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseBucket)
		if err != nil {
			log.Fatalf("connecting to Supabase storage: %v", err)
		}
		log.Printf("storing lesson audio in Supabase bucket %q", cfg.SupabaseBucket)
	} else {
		files = lesson.NewLocalStore(cfg.PublicDir)
		log.Printf("storing lesson audio in %s", cfg.PublicDir)
	}

	processor := intervention.NewProcessor(openai, openai, synth)
	audioWS := ws.NewAudioHandler(processor, cfg.DefaultModuleName)
	hubWS := ws.NewHub()
	lessons := lesson.NewGenerator(openai, synth, files)

	srv := httpserver.New(repo, lessons, audioWS, hubWS, cfg.PublicDir)

	httpServer := &http.Server{
		Addr:    cfg.HTTPAddress,
		Handler: srv.Handler(),
	}

	go func() {
		log.Printf("listening on %s", cfg.HTTPAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
