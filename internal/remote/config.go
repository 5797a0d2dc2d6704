// Package remote is the client side of the narration API, used by the
// aural-ctl command.
package remote

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"time"
)

// Config holds the remote control configuration.
type Config struct {
	APIURL      string
	BearerToken string
	Timeout     time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return loadFrom(os.LookupEnv)
}

// loadFrom reads the configuration through lookup. Unset or blank
// variables keep their defaults; an unparseable timeout is an error.
func loadFrom(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{
		APIURL:    "http://localhost:8080",
		Timeout:   90 * time.Second,
		LogLevel:  "warn",
		LogFormat: "text",
	}

	env := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	env("AURAL_API_URL", &cfg.APIURL)
	env("AURAL_BEARER_TOKEN", &cfg.BearerToken)
	env("LOG_LEVEL", &cfg.LogLevel)
	env("LOG_FORMAT", &cfg.LogFormat)

	var timeout string
	env("AURAL_TIMEOUT", &timeout)
	if timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return nil, fmt.Errorf("AURAL_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the API URL, the timeout and the logging settings.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	switch {
	case c.APIURL == "":
		return fmt.Errorf("AURAL_API_URL cannot be empty")
	case err != nil, u.Scheme != "http" && u.Scheme != "https", u.Host == "":
		return fmt.Errorf("AURAL_API_URL %q must be an http or https URL", c.APIURL)
	case c.Timeout <= 0:
		return fmt.Errorf("AURAL_TIMEOUT must be positive, got %v", c.Timeout)
	case !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel):
		return fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error")
	case !slices.Contains([]string{"text", "json"}, c.LogFormat):
		return fmt.Errorf("LOG_FORMAT must be one of: text, json")
	}
	return nil
}
