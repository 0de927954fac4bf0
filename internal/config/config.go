package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mediscan-iq/mediscan-iq/internal/phi"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Ingestion constraints
	MaxChars            int
	AcceptedReportTypes []string

	// Anonymizer
	AnonymizeStrategy   string
	MaskChar            string
	MaskFixedWidth      int
	HashSalt            string
	KeepDates           bool
	ReduceWhitespace    bool
	MinIdentifierDigits int

	// Risk scoring
	RiskThresholdHigh     float64
	RiskThresholdModerate float64
	RiskModelWeight       float64
	RiskLexiconPath       string

	// Model inference
	BedrockModelID           string
	GeminiAPIKey             string
	GeminiModelID            string
	ModelTimeout             time.Duration
	SummarizerMaxOutputToken int
	SummarizerPromptStyle    string

	// Score cache
	RedisAddr     string
	RedisPassword string
	ScoreCacheTTL time.Duration

	// HTTP surface
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int

	// AWS
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		MaxChars:            getEnvAsInt("MAX_CHARS", 20000),
		AcceptedReportTypes: getEnvAsList("ACCEPTED_REPORT_TYPES", []string{"radiology", "pathology", "discharge", "ecg", "echo", "others"}),

		AnonymizeStrategy:   strings.ToLower(strings.TrimSpace(getEnv("ANONYMIZE_STRATEGY", "hash"))),
		MaskChar:            getEnv("MASK_CHAR", "█"),
		MaskFixedWidth:      getEnvAsInt("MASK_FIXED_WIDTH", 0),
		HashSalt:            getEnv("HASH_SALT", "mediscan"),
		KeepDates:           getEnvAsBool("KEEP_DATES", false),
		ReduceWhitespace:    getEnvAsBool("REDUCE_WHITESPACE", true),
		MinIdentifierDigits: getEnvAsInt("MIN_IDENTIFIER_DIGITS", 7),

		RiskThresholdHigh:     getEnvAsFloat("RISK_THRESHOLD_HIGH", 0.64),
		RiskThresholdModerate: getEnvAsFloat("RISK_THRESHOLD_MODERATE", 0.42),
		RiskModelWeight:       getEnvAsFloat("RISK_MODEL_WEIGHT", 0.7),
		RiskLexiconPath:       getEnv("RISK_LEXICON_PATH", ""),

		BedrockModelID:           getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:             getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:            getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		ModelTimeout:             getEnvAsDuration("MODEL_TIMEOUT", 20*time.Second),
		SummarizerMaxOutputToken: getEnvAsInt("SUMMARIZER_MAX_OUTPUT_TOKENS", 128),
		SummarizerPromptStyle:    getEnv("SUMMARIZER_PROMPT_STYLE", "radiology_brief"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		ScoreCacheTTL: getEnvAsDuration("SCORE_CACHE_TTL", 15*time.Minute),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", nil),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 10),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
	}
}

// Validate rejects inconsistent configuration before any request is processed.
func (c *Config) Validate() error {
	if c.MaxChars <= 0 {
		return fmt.Errorf("config: MAX_CHARS must be positive, got %d", c.MaxChars)
	}
	if len(c.AcceptedReportTypes) == 0 {
		return fmt.Errorf("config: ACCEPTED_REPORT_TYPES must not be empty")
	}
	switch c.AnonymizeStrategy {
	case "mask", "hash":
	default:
		return fmt.Errorf("config: unknown anonymize strategy %q (want mask or hash)", c.AnonymizeStrategy)
	}
	if utf8.RuneCountInString(c.MaskChar) != 1 {
		return fmt.Errorf("config: MASK_CHAR must be a single character, got %q", c.MaskChar)
	}
	if !phi.SafeMaskChar([]rune(c.MaskChar)[0]) {
		return fmt.Errorf("config: MASK_CHAR %q is part of the detection alphabet and would re-trigger detection; use a symbol such as █", c.MaskChar)
	}
	if c.MaskFixedWidth < 0 {
		return fmt.Errorf("config: MASK_FIXED_WIDTH must not be negative, got %d", c.MaskFixedWidth)
	}
	if c.RiskThresholdHigh < 0 || c.RiskThresholdHigh > 1 {
		return fmt.Errorf("config: RISK_THRESHOLD_HIGH must be in [0,1], got %g", c.RiskThresholdHigh)
	}
	if c.RiskThresholdModerate < 0 || c.RiskThresholdModerate > 1 {
		return fmt.Errorf("config: RISK_THRESHOLD_MODERATE must be in [0,1], got %g", c.RiskThresholdModerate)
	}
	if c.RiskThresholdModerate >= c.RiskThresholdHigh {
		return fmt.Errorf("config: RISK_THRESHOLD_MODERATE (%g) must be below RISK_THRESHOLD_HIGH (%g)",
			c.RiskThresholdModerate, c.RiskThresholdHigh)
	}
	if c.RiskModelWeight < 0 || c.RiskModelWeight > 1 {
		return fmt.Errorf("config: RISK_MODEL_WEIGHT must be in [0,1], got %g", c.RiskModelWeight)
	}
	if c.MinIdentifierDigits < 1 {
		return fmt.Errorf("config: MIN_IDENTIFIER_DIGITS must be at least 1, got %d", c.MinIdentifierDigits)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsFloat retrieves an environment variable as a float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma-separated environment variable into trimmed entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
