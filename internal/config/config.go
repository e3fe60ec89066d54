package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	TwitterBearerToken string
	YouTubeAPIKey      string

	PollInterval     time.Duration
	Bucket           time.Duration
	RequestTimeout   time.Duration
	TwitterResults   int
	YouTubeResults   int
	CommentsPerVideo int
	SeenRetention    time.Duration

	KeywordsFile string
	ServerPort   string
	LogLevel     string

	TelegramToken  string
	TelegramChatID int64
	SpikeThreshold int

	OpenAIAPIKey    string
	SentimentSample int
}

// Load reads configuration from the environment, loading a local .env file
// first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		TwitterBearerToken: getEnv("TWITTER_BEARER_TOKEN", ""),
		YouTubeAPIKey:      getEnv("YOUTUBE_API_KEY", ""),
		PollInterval:       getEnvAsDuration("POLL_INTERVAL", 15*time.Minute),
		RequestTimeout:     getEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		TwitterResults:     getEnvAsInt("TWITTER_MAX_RESULTS", 100),
		YouTubeResults:     getEnvAsInt("YOUTUBE_MAX_RESULTS", 50),
		CommentsPerVideo:   getEnvAsInt("COMMENTS_PER_VIDEO", 20),
		SeenRetention:      getEnvAsDuration("SEEN_RETENTION", 24*time.Hour),
		KeywordsFile:       getEnv("KEYWORDS_FILE", ""),
		ServerPort:         getEnv("SERVER_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		TelegramToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:     getEnvAsInt64("TELEGRAM_CHAT_ID", 0),
		SpikeThreshold:     getEnvAsInt("SPIKE_THRESHOLD", 25),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		SentimentSample:    getEnvAsInt("SENTIMENT_SAMPLE", 20),
	}

	bucket, err := parseBucket(getEnv("BUCKET", "hour"))
	if err != nil {
		return nil, err
	}
	cfg.Bucket = bucket

	if cfg.TwitterBearerToken == "" && cfg.YouTubeAPIKey == "" {
		return nil, fmt.Errorf("config: at least one of TWITTER_BEARER_TOKEN or YOUTUBE_API_KEY must be set")
	}

	return cfg, nil
}

// parseBucket maps the BUCKET setting onto a bucket width.
func parseBucket(value string) (time.Duration, error) {
	switch value {
	case "hour":
		return time.Hour, nil
	case "day":
		return 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("config: invalid BUCKET %q (want hour or day)", value)
	}
}

// ParseLogLevel maps LOG_LEVEL onto a logrus level, defaulting to info.
func ParseLogLevel(value string) logrus.Level {
	switch value {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
