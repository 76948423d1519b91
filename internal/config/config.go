package config

import (
	"os"
	"strconv"
	"strings"
)

// Config carries the deployment configuration, read from the environment.
type Config struct {
	Port      string
	JWTSecret string

	GeminiAPIKey     string
	ElevenLabsAPIKey string
	MongoURI         string

	// DefaultSTTService is used when bootstrap does not select one. The
	// deployment must provision it or bootstrap fails with a config error.
	DefaultSTTService string
	STTServices       map[string]bool

	// InterruptionAware enables stale-interaction suppression (barge-in
	// cut-off) at emission time.
	InterruptionAware bool

	// Hard pipeline failures are vendor-specific; classify by code set or
	// message substring rather than hardcoding one vendor's codes.
	HardErrorCodes      map[int]bool
	HardErrorSubstrings []string

	// Soft errors are suppressed entirely, never surfaced to the client.
	SoftErrorSubstrings []string
}

// FromEnv builds the configuration from environment variables, applying
// defaults where unset.
func FromEnv() Config {
	cfg := Config{
		Port:              getenv("PORT", "8080"),
		JWTSecret:         getenv("JWT_SECRET", "talespin-dev-secret"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		ElevenLabsAPIKey:  os.Getenv("ELEVENLABS_API_KEY"),
		MongoURI:          os.Getenv("MONGO_URI"),
		DefaultSTTService: getenv("DEFAULT_STT_SERVICE", "google"),
		STTServices:       parseSet(getenv("STT_SERVICES", "google")),
		InterruptionAware: parseBool(getenv("INTERRUPTION_AWARE", "true")),
		HardErrorCodes:    parseCodes(getenv("HARD_ERROR_CODES", "4,14")),
		HardErrorSubstrings: parseList(getenv("HARD_ERROR_SUBSTRINGS",
			"deadline exceeded,executor is not running")),
		SoftErrorSubstrings: parseList(getenv("SOFT_ERROR_SUBSTRINGS",
			"no speech,no text")),
	}
	return cfg
}

// STTConfigured reports whether the named service is provisioned.
func (c Config) STTConfigured(service string) bool {
	if service == "" {
		service = c.DefaultSTTService
	}
	return c.STTServices[service]
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func parseList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseSet(v string) map[string]bool {
	set := make(map[string]bool)
	for _, part := range parseList(v) {
		set[part] = true
	}
	return set
}

func parseCodes(v string) map[int]bool {
	codes := make(map[int]bool)
	for _, part := range parseList(v) {
		if n, err := strconv.Atoi(part); err == nil {
			codes[n] = true
		}
	}
	return codes
}
