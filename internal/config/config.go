// Package config loads application configuration from environment
// variables. Everything is read once at startup and passed into
// constructors, so tests can inject deterministic secrets and TTLs.
package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all runtime settings. Required values go through must() and
// abort startup when missing; optional ones carry defaults.
type Config struct {
	Env  string
	Port string

	DBUser string
	DBPass string
	DBHost string
	DBPort string
	DBName string

	JWTSecret      string
	AccessTTLMin   int // access token lifetime, minutes
	RefreshTTLDays int // refresh token lifetime, days
	BcryptCost     int

	VerifyTTLHours int // email verification token lifetime, hours
	ResetTTLMin    int // password reset token lifetime, minutes
	UnsubTTLDays   int // unsubscribe token lifetime, days

	OAuthProvider     string
	OAuthClientID     string
	OAuthClientSecret string
	OAuthRedirectURL  string

	AMQPURL string
}

// Load reads configuration from the environment. Missing required variables
// are fatal.
func Load() Config {
	return Config{
		Env:            must("APP_ENV"),
		Port:           must("APP_PORT"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         must("DB_PORT"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:     mustInt("BCRYPT_COST"),

		VerifyTTLHours: envInt("VERIFY_TOKEN_TTL_HOURS", 48),
		ResetTTLMin:    envInt("RESET_TOKEN_TTL_MIN", 30),
		UnsubTTLDays:   envInt("UNSUB_TOKEN_TTL_DAYS", 30),

		OAuthProvider:     envStr("OAUTH_PROVIDER", "github"),
		OAuthClientID:     os.Getenv("OAUTH_CLIENT_ID"),
		OAuthClientSecret: os.Getenv("OAUTH_CLIENT_SECRET"),
		OAuthRedirectURL:  os.Getenv("OAUTH_REDIRECT_URL"),

		AMQPURL: os.Getenv("RABBITMQ_URL"),
	}
}

// must retrieves a required environment variable or exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is must() plus integer conversion.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}
