package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Settings holds the application configuration read from the environment.
type Settings struct {
	Port string

	LLMProvider    string // gemini|vertex
	GeminiAPIKey   string
	GeminiModel    string
	VertexProject  string
	VertexLocation string

	// Credential material for the speech clients; empty means application default credentials.
	GoogleCredentialsFile string

	SpeechLanguage string
	TTSVoice       string
	TTSGender      string

	AudioInput       string // recorder|websocket
	RecorderCmd      []string
	PlayerCmd        []string
	ListenRetryDelay time.Duration
	AutoListen       bool

	SearchBaseURL  string
	SearchAPIKey   string
	SearchCacheTTL time.Duration

	TurnJournalTTL time.Duration
	TitleWorkers   int

	APIJWTSecret string
}

const (
	defaultRecorderCmd = "rec -q -t raw -r 16000 -b 16 -c 1 -e signed-integer - silence 1 0.1 1% 1 2.5 1%"
	defaultPlayerCmd   = "ffplay -nodisp -autoexit -loglevel quiet"
)

func LoadSettings() Settings {
	return Settings{
		Port: getEnv("PORT", "8080"),

		LLMProvider:    strings.ToLower(getEnv("LLM_PROVIDER", "gemini")),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-1.5-flash-latest"),
		VertexProject:  os.Getenv("VERTEX_PROJECT"),
		VertexLocation: getEnv("VERTEX_LOCATION", "us-central1"),

		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),

		SpeechLanguage: getEnv("SPEECH_LANGUAGE", "en-US"),
		TTSVoice:       os.Getenv("TTS_VOICE"),
		TTSGender:      strings.ToUpper(getEnv("TTS_GENDER", "NEUTRAL")),

		AudioInput:       strings.ToLower(getEnv("AUDIO_INPUT", "recorder")),
		RecorderCmd:      strings.Fields(getEnv("RECORDER_CMD", defaultRecorderCmd)),
		PlayerCmd:        strings.Fields(getEnv("PLAYER_CMD", defaultPlayerCmd)),
		ListenRetryDelay: getDuration("LISTEN_RETRY_DELAY", 500*time.Millisecond),
		AutoListen:       getBool("AUTO_LISTEN", true),

		SearchBaseURL:  getEnv("SEARCH_BASE_URL", "https://api.duckduckgo.com/"),
		SearchAPIKey:   os.Getenv("SEARCH_API_KEY"),
		SearchCacheTTL: getDuration("SEARCH_CACHE_TTL", time.Hour),

		TurnJournalTTL: getDuration("TURN_JOURNAL_TTL", 7*24*time.Hour),
		TitleWorkers:   getInt("TITLE_WORKERS", 2),

		APIJWTSecret: os.Getenv("API_JWT_SECRET"),
	}
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return def
	}
	return d
}

func getInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
