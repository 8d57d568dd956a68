package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// DefaultInstructions is the system prompt sent to the realtime voice service
// when VOICE_INSTRUCTIONS is not set.
const DefaultInstructions = "You are a supportive mental health companion performing a daily check-in. " +
	"Talk to the user like a friend, ask about their prescribed activities one at a time, " +
	"and be a warm, attentive listener. Keep replies short and conversational."

// Config holds application configuration.
type Config struct {
	HTTPAddress string

	// Upstream realtime voice service.
	OpenAIKey         string
	RealtimeURL       string
	Voice             string
	Instructions      string
	MaxResponseTokens int

	// Voice session orchestration.
	VoiceSessionMode string // "utterance" or "continuous"
	SilenceThreshold float64
	DrainInterval    time.Duration

	// Annotation service.
	GeminiKey   string
	GeminiModel string

	// Document store.
	MongoURI      string
	MongoDatabase string

	// Object storage for recordings and prescription files.
	SupabaseURL            string
	SupabaseServiceRoleKey string
	SupabaseBucket         string

	// Emergency hotline dial-out.
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// Load reads environment variables and returns Config with sane defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using process environment")
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set - voice sessions and transcription will not work")
	}

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		log.Println("Warning: GEMINI_API_KEY not set - timeline annotations will be omitted")
	}

	mode := os.Getenv("VOICE_SESSION_MODE")
	switch mode {
	case "utterance", "continuous":
	case "":
		mode = "utterance"
	default:
		log.Printf("Warning: unknown VOICE_SESSION_MODE %q - falling back to utterance mode", mode)
		mode = "utterance"
	}

	cfg := Config{
		HTTPAddress:       getEnv("HTTP_ADDRESS", ":8080"),
		OpenAIKey:         openAIKey,
		RealtimeURL:       getEnv("REALTIME_URL", "wss://api.openai.com/v1/realtime?model=gpt-4o-realtime-preview-2024-10-01"),
		Voice:             getEnv("REALTIME_VOICE", "alloy"),
		Instructions:      getEnv("VOICE_INSTRUCTIONS", DefaultInstructions),
		MaxResponseTokens: getEnvInt("MAX_RESPONSE_TOKENS", 300),
		VoiceSessionMode:  mode,
		SilenceThreshold:  getEnvFloat("SILENCE_THRESHOLD", 30),
		DrainInterval:     time.Duration(getEnvInt("DRAIN_INTERVAL_MS", 100)) * time.Millisecond,

		GeminiKey:   geminiKey,
		GeminiModel: getEnv("GEMINI_MODEL", "gemini-1.5-flash"),

		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "main_db"),

		SupabaseURL:            os.Getenv("SUPABASE_URL"),
		SupabaseServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:         getEnv("SUPABASE_BUCKET", "voice-recordings"),

		TwilioAccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: os.Getenv("TWILIO_FROM_NUMBER"),
	}

	log.Printf("config: HTTP_ADDRESS=%s VOICE_SESSION_MODE=%s SILENCE_THRESHOLD=%.0f DRAIN_INTERVAL=%s",
		cfg.HTTPAddress, cfg.VoiceSessionMode, cfg.SilenceThreshold, cfg.DrainInterval)
	return cfg
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: %s=%q is not an integer, using %d", key, v, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("Warning: %s=%q is not a number, using %g", key, v, defaultValue)
		return defaultValue
	}
	return f
}
