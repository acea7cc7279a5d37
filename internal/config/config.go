package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerAddress string
	JWTSecret     string
	JWTExpiration time.Duration

	MongoURI string
	MongoDB  string
	MongoTLS bool
	// DataDir backs the JSON file profile store when MONGO_URI is not set.
	DataDir string

	GoogleClientID     string
	GoogleClientSecret string
	BackendURL         string
	FrontendURL        string

	LLMAPIKey  string
	LLMBaseURL string
	LLMModel   string

	TestMode       bool
	AllowedOrigins []string
}

// Load reads an optional .env file and then the process environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("[config] .env not loaded: %v", err)
	}

	backend := strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:3000"), "/")
	frontend := strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:5173"), "/")

	return &Config{
		ServerAddress:      getEnv("SERVER_ADDRESS", ":3000"),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTExpiration:      getDuration("JWT_EXPIRATION", 30*24*time.Hour),
		MongoURI:           getEnv("MONGO_URI", ""),
		MongoDB:            getEnv("MONGO_DB", "quickapply"),
		MongoTLS:           getBool("MONGO_TLS", false),
		DataDir:            getEnv("DATA_DIR", "./data"),
		GoogleClientID:     getEnv("CLIENT_ID", ""),
		GoogleClientSecret: getEnv("CLIENT_SECRET", ""),
		BackendURL:         backend,
		FrontendURL:        frontend,
		LLMAPIKey:          getEnv("GROQ_API_KEY", ""),
		LLMBaseURL:         getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMModel:           getEnv("LLM_MODEL", "llama-3.3-70b-versatile"),
		TestMode:           getBool("TEST_MODE", false),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "")),
	}
}

// OAuthRedirectURL is the callback Google redirects to after consent.
func (c *Config) OAuthRedirectURL() string {
	return c.BackendURL + "/oauth/callback"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Printf("[config] invalid bool %s=%q, using %v", key, v, defaultValue)
		return defaultValue
	}
	return b
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil || d <= 0 {
		log.Printf("[config] invalid duration %s=%q, using %v", key, v, defaultValue)
		return defaultValue
	}
	return d
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimRight(strings.TrimSpace(part), "/")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
