package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	OpenAIKey    string
	TTSOpenAIKey string
	ChatModelID  string
	WhisperModel string
	TTSModelID   string
	TTSVoice     string

	// TTSProvider selects the synthesizer backend: "openai" or "deepgram".
	TTSProvider   string
	DeepgramKey   string
	DeepgramModel string

	DBPath    string
	PublicDir string

	SupabaseURL    string
	SupabaseKey    string
	SupabaseBucket string

	// DefaultModuleName is the lesson context used when an intervention
	// connection does not name its module.
	DefaultModuleName string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set - transcription and chat will not work")
	}
	// A dedicated key may be used for TTS quota isolation; fall back to the main key.
	ttsKey := os.Getenv("TTS_OPENAI_API_KEY")
	if ttsKey == "" {
		ttsKey = openAIKey
	}

	chatModel := os.Getenv("CHAT_MODEL_ID")
	if chatModel == "" {
		chatModel = "gpt-4o"
	}
	whisperModel := os.Getenv("WHISPER_MODEL_ID")
	if whisperModel == "" {
		whisperModel = "whisper-1"
	}
	ttsModel := os.Getenv("TTS_MODEL_ID")
	if ttsModel == "" {
		ttsModel = "tts-1"
	}
	ttsVoice := os.Getenv("TTS_VOICE")
	if ttsVoice == "" {
		ttsVoice = "alloy"
	}

	provider := os.Getenv("TTS_PROVIDER")
	if provider == "" {
		provider = "openai"
	}
	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if provider == "deepgram" && deepgramKey == "" {
		log.Println("Warning: TTS_PROVIDER=deepgram but DEEPGRAM_API_KEY not set - TTS will not work")
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "data/learnmatrix.db"
	}
	publicDir := os.Getenv("PUBLIC_DIR")
	if publicDir == "" {
		publicDir = "public"
	}

	moduleName := os.Getenv("DEFAULT_MODULE_NAME")
	if moduleName == "" {
		moduleName = "Neural Networks and Deep Learning"
	}

	log.Printf("config: HTTP_ADDRESS=%s TTS_PROVIDER=%s DB_PATH=%s", addr, provider, dbPath)
	return Config{
		HTTPAddress:       addr,
		OpenAIKey:         openAIKey,
		TTSOpenAIKey:      ttsKey,
		ChatModelID:       chatModel,
		WhisperModel:      whisperModel,
		TTSModelID:        ttsModel,
		TTSVoice:          ttsVoice,
		TTSProvider:       provider,
		DeepgramKey:       deepgramKey,
		DeepgramModel:     os.Getenv("DEEPGRAM_MODEL_ID"),
		DBPath:            dbPath,
		PublicDir:         publicDir,
		SupabaseURL:       os.Getenv("SUPABASE_URL"),
		SupabaseKey:       os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:    os.Getenv("SUPABASE_BUCKET"),
		DefaultModuleName: moduleName,
	}
}
