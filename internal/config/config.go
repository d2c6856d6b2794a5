// Package config loads server configuration from environment variables.
//
// A missing required variable is reported as a typed *MissingVarError, so
// callers check with errors.As and can print a precise remediation hint.
// Detecting configuration problems by substring-matching error messages is
// exactly the failure mode this package exists to avoid.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// MissingVarError identifies a required environment variable that was not
// set. The Hint tells the operator how to fix it.
type MissingVarError struct {
	Var  string
	Hint string
}

func (e *MissingVarError) Error() string {
	return fmt.Sprintf("config: required environment variable %s is not set (%s)", e.Var, e.Hint)
}

// Config holds everything the server needs, read once at startup.
type Config struct {
	Port   int    // PORT, default 8080
	DBPath string // DB_PATH, default data/fortuneai.db

	// BaseURL is the externally visible origin, used to build share URLs.
	BaseURL string // BASE_URL, default http://localhost:<port>

	JWTSecret string // JWT_SECRET, required

	OpenAIKey string // OPENAI_API_KEY, required

	// OpenAIBaseURL overrides the completions endpoint. Empty means the
	// real OpenAI API; set it to point at a proxy or a stub.
	OpenAIBaseURL string // OPENAI_BASE_URL

	// GitHub OAuth is optional — when the client ID is empty the OAuth
	// routes are simply not registered and password auth stands alone.
	GitHubClientID     string // GITHUB_CLIENT_ID
	GitHubClientSecret string // GITHUB_CLIENT_SECRET
	GitHubCallbackURL  string // GITHUB_CALLBACK_URL, default derived from BaseURL
}

// Load reads the environment and validates required variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:   8080,
		DBPath: "data/fortuneai.db",
	}

	if portStr := os.Getenv("PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("config: invalid PORT value %q: %w", portStr, err)
		}
		cfg.Port = port
	}

	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		cfg.DBPath = dbPath
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		return nil, &MissingVarError{
			Var:  "JWT_SECRET",
			Hint: "generate one with: openssl rand -hex 32",
		}
	}

	cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIKey == "" {
		return nil, &MissingVarError{
			Var:  "OPENAI_API_KEY",
			Hint: "create an API key at https://platform.openai.com/api-keys",
		}
	}

	cfg.OpenAIBaseURL = os.Getenv("OPENAI_BASE_URL")

	cfg.GitHubClientID = os.Getenv("GITHUB_CLIENT_ID")
	cfg.GitHubClientSecret = os.Getenv("GITHUB_CLIENT_SECRET")
	cfg.GitHubCallbackURL = os.Getenv("GITHUB_CALLBACK_URL")
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = cfg.BaseURL + "/auth/github/callback"
	}

	return cfg, nil
}
