package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robalobadob/guess-sentence/internal/game"
)

const devJWTSecret = "dev-secret-change-me"

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port         string
	DatabaseURL  string
	JWTSecret    string
	JWTTTL       time.Duration
	CookieName   string
	ClientOrigin string
	Production   bool
	LogLevel     string

	AnonCoins     game.Coins
	SentencesFile string

	RetentionTTL      time.Duration
	RetentionInterval time.Duration
}

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:          fallback(os.Getenv("PORT"), "5175"),
		DatabaseURL:   fallback(os.Getenv("DATABASE_URL"), "./data/game.db"),
		JWTSecret:     fallback(os.Getenv("JWT_SECRET"), devJWTSecret),
		CookieName:    fallback(os.Getenv("COOKIE_NAME"), "guess_token"),
		ClientOrigin:  fallback(os.Getenv("CLIENT_ORIGIN"), "http://localhost:5173"),
		Production:    strings.EqualFold(strings.TrimSpace(os.Getenv("APP_ENV")), "production"),
		LogLevel:      fallback(os.Getenv("LOG_LEVEL"), "info"),
		SentencesFile: strings.TrimSpace(os.Getenv("SENTENCES_FILE")),
	}

	days := fallback(os.Getenv("JWT_EXPIRES_DAYS"), "14")
	if n, err := strconv.Atoi(days); err == nil && n > 0 {
		cfg.JWTTTL = time.Duration(n) * 24 * time.Hour
	} else {
		cfg.JWTTTL = 14 * 24 * time.Hour
	}

	coins, err := ParseCoins(fallback(os.Getenv("ANON_COINS"), strconv.Itoa(game.DefaultAnonCoins)))
	if err != nil {
		return Config{}, fmt.Errorf("ANON_COINS: %w", err)
	}
	cfg.AnonCoins = coins

	if cfg.RetentionTTL, err = parseDuration("RETENTION_TTL", "168h"); err != nil {
		return Config{}, err
	}
	if cfg.RetentionInterval, err = parseDuration("RETENTION_INTERVAL", "1h"); err != nil {
		return Config{}, err
	}

	if cfg.Production && cfg.JWTSecret == devJWTSecret {
		return Config{}, fmt.Errorf("JWT_SECRET is required when APP_ENV=production")
	}
	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// ParseCoins accepts a non-negative integer or "unlimited".
func ParseCoins(s string) (game.Coins, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "unlimited") {
		return game.Unlimited(), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return game.Coins{}, fmt.Errorf("want a non-negative integer or \"unlimited\", got %q", s)
	}
	return game.CoinsOf(n), nil
}

func parseDuration(key, def string) (time.Duration, error) {
	raw := fallback(os.Getenv(key), def)
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}
