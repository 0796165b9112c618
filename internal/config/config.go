package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	LLM      LLMConfig
	Research ResearchConfig
	Gateway  GatewayConfig
	Debate   DebateConfig
	Log      LogConfig
}

type ServerConfig struct {
	Host         string
	Port         string
	Mode         string // "debug" or "release"
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type ResearchConfig struct {
	Attempts       int
	AttemptTimeout time.Duration
}

type GatewayConfig struct {
	MaxAttempts int
	BufferSize  int
}

type DebateConfig struct {
	Genders      []string
	MaxAutoTurns int
	FemaleVoices []string
	MaleVoices   []string
}

type LogConfig struct {
	Level  string
	Format string // "text" or "json"
}

// Load builds the configuration from environment variables with defaults.
// Call godotenv.Load first if a .env file should be honored.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("PORT", "7080"),
			Mode:         getEnv("GIN_MODE", "release"),
			ReadTimeout:  getDurationEnv("READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("WRITE_TIMEOUT", 30*time.Second),
		},
		LLM: LLMConfig{
			APIKey:  getEnv("XAI_API_KEY", ""),
			BaseURL: getEnv("XAI_BASE_URL", "https://api.x.ai/v1"),
			Model:   getEnv("XAI_MODEL", "grok-4-1-fast-non-reasoning"),
			Timeout: getDurationEnv("LLM_TIMEOUT", 60*time.Second),
		},
		Research: ResearchConfig{
			Attempts:       getIntEnv("RESEARCH_ATTEMPTS", 3),
			AttemptTimeout: getDurationEnv("RESEARCH_ATTEMPT_TIMEOUT", 2*time.Minute),
		},
		Gateway: GatewayConfig{
			MaxAttempts: getIntEnv("GATEWAY_MAX_ATTEMPTS", 3),
			BufferSize:  getIntEnv("GATEWAY_BUFFER_SIZE", 64),
		},
		Debate: DebateConfig{
			Genders:      getEnvSlice("DEBATE_GENDERS", []string{"male", "female"}),
			MaxAutoTurns: getIntEnv("DEBATE_MAX_AUTO_TURNS", 8),
			FemaleVoices: getEnvSlice("DEBATE_VOICES_FEMALE", nil),
			MaleVoices:   getEnvSlice("DEBATE_VOICES_MALE", nil),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
