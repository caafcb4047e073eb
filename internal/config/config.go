package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBFile         string
	AdminAddr      string
	APIAddr        string
	BaseURL        string
	APIPrefix      string
	RealtimePath   string
	StaticDir      string
	AuthSecret     string
	AuthIssuer     string
	TokenExpiry    time.Duration
	AllowedOrigins []string
	SendRate       int // send_message events per minute per connection
	TypingRate     int // typing events per minute per connection; stop_typing is not limited
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load(cliMode bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("failed to load .env file: %v", err)
	}

	tokenExpiry, err := time.ParseDuration(getEnv("TOKEN_EXPIRY", "24h"))
	if err != nil {
		return nil, fmt.Errorf("TOKEN_EXPIRY: %w", err)
	}
	sendRate, err := strconv.Atoi(getEnv("SEND_RATE", "30"))
	if err != nil {
		return nil, fmt.Errorf("SEND_RATE: %w", err)
	}
	typingRate, err := strconv.Atoi(getEnv("TYPING_RATE", "20"))
	if err != nil {
		return nil, fmt.Errorf("TYPING_RATE: %w", err)
	}

	cfg := &Config{
		DBFile:         getEnv("SOCIALMART_DB", "socialmart.db"),
		AdminAddr:      getEnv("ADMIN_ADDR", "localhost:8081"),
		APIAddr:        getEnv("API_ADDR", ":8080"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		APIPrefix:      strings.TrimRight(getEnv("API_PREFIX", "/api"), "/"),
		RealtimePath:   getEnv("REALTIME_PATH", "/api/realtime"),
		StaticDir:      os.Getenv("STATIC_DIR"),
		AuthSecret:     os.Getenv("AUTH_SECRET"),
		AuthIssuer:     os.Getenv("AUTH_ISSUER"),
		TokenExpiry:    tokenExpiry,
		AllowedOrigins: splitList(os.Getenv("ALLOWED_ORIGINS")),
		SendRate:       sendRate,
		TypingRate:     typingRate,
	}

	if err := cfg.Validate(cliMode); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate(cliMode bool) error {
	if c.AuthSecret == "" && !cliMode {
		return fmt.Errorf("AUTH_SECRET is required")
	}

	if c.TokenExpiry <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY must be greater than 0")
	}

	if c.SendRate <= 0 || c.TypingRate <= 0 {
		return fmt.Errorf("SEND_RATE and TYPING_RATE must be greater than 0")
	}

	if !strings.HasPrefix(c.RealtimePath, "/") {
		return fmt.Errorf("REALTIME_PATH must start with /")
	}

	if c.APIPrefix != "" && !strings.HasPrefix(c.APIPrefix, "/") {
		return fmt.Errorf("API_PREFIX must start with /")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
