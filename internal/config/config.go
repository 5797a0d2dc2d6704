// Package config loads service configuration from defaults, an optional YAML
// file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgnsrekt/aural-odyssey/internal/voices"
	"gopkg.in/yaml.v3"
)

// Speech engines.
const (
	EngineSimulated = "simulated"
	EngineExec      = "exec"
	EnginePiper     = "piper"
)

// DefaultVoices is the catalogue used when VOICES is unset. The IDs are
// espeak-ng voice names.
const DefaultVoices = "hi:hi-IN:Hindi,en-us:en-US:English (US),en-gb:en-GB:English (UK)"

// Config holds all application configuration.
type Config struct {
	// HTTP settings
	HTTPPort       int    `yaml:"http_port"`
	BearerToken    string `yaml:"bearer_token"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	// Speech settings
	SpeechEngine    string `yaml:"speech_engine"`
	SpeechCommand   string `yaml:"speech_command"`
	PiperPath       string `yaml:"piper_path"`
	PiperModel      string `yaml:"piper_model"`
	Voices          string `yaml:"voices"`
	PreferencesPath string `yaml:"preferences_path"`
	MaxTextLength   int    `yaml:"max_text_length"`
	QueueCapacity   int    `yaml:"queue_capacity"`

	// Discord settings, required by the piper engine
	DiscordToken          string        `yaml:"discord_token"`
	GuildID               string        `yaml:"guild_id"`
	DefaultVoiceChannelID string        `yaml:"default_voice_channel_id"`
	AutoLeaveIdle         time.Duration `yaml:"auto_leave_idle"`

	// Assistant settings; the assistant is disabled without an API key
	LLMAPIKey  string `yaml:"llm_api_key"`
	LLMBaseURL string `yaml:"llm_base_url"`
	LLMModel   string `yaml:"llm_model"`

	// Logging settings
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HTTPPort:        8080,
		MaxUploadBytes:  10 << 20,
		SpeechEngine:    EngineSimulated,
		PiperPath:       "piper",
		Voices:          DefaultVoices,
		PreferencesPath: "data/preferences.db",
		MaxTextLength:   32767,
		QueueCapacity:   8,
		AutoLeaveIdle:   5 * time.Minute,
		LLMBaseURL:      "https://generativelanguage.googleapis.com/v1beta/openai/",
		LLMModel:        "gemini-2.0-flash",
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load builds the configuration: defaults, then the YAML file named by
// CONFIG_FILE, then environment variables.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.BearerToken = getEnvString("BEARER_TOKEN", c.BearerToken)
	c.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	c.MetricsEnabled = getEnvBool("METRICS_ENABLED", c.MetricsEnabled)

	c.SpeechEngine = getEnvString("SPEECH_ENGINE", c.SpeechEngine)
	c.SpeechCommand = getEnvString("SPEECH_COMMAND", c.SpeechCommand)
	c.PiperPath = getEnvString("PIPER_PATH", c.PiperPath)
	c.PiperModel = getEnvString("PIPER_MODEL", c.PiperModel)
	c.Voices = getEnvString("VOICES", c.Voices)
	c.PreferencesPath = getEnvString("PREFERENCES_PATH", c.PreferencesPath)
	c.MaxTextLength = getEnvInt("MAX_TEXT_LENGTH", c.MaxTextLength)
	c.QueueCapacity = getEnvInt("QUEUE_CAPACITY", c.QueueCapacity)

	c.DiscordToken = getEnvString("DISCORD_TOKEN", c.DiscordToken)
	c.GuildID = getEnvString("GUILD_ID", c.GuildID)
	c.DefaultVoiceChannelID = getEnvString("DEFAULT_VOICE_CHANNEL_ID", c.DefaultVoiceChannelID)
	c.AutoLeaveIdle = getEnvDuration("AUTO_LEAVE_IDLE", c.AutoLeaveIdle)

	c.LLMAPIKey = getEnvString("LLM_API_KEY", c.LLMAPIKey)
	c.LLMBaseURL = getEnvString("LLM_BASE_URL", c.LLMBaseURL)
	c.LLMModel = getEnvString("LLM_MODEL", c.LLMModel)

	c.LogLevel = getEnvString("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvString("LOG_FORMAT", c.LogFormat)
}

// AuthDisabled returns true if bearer token authentication is disabled.
func (c *Config) AuthDisabled() bool {
	return c.BearerToken == ""
}

// AssistantEnabled reports whether an LLM API key is configured.
func (c *Config) AssistantEnabled() bool {
	return c.LLMAPIKey != ""
}

// VoiceCatalogue parses the configured voices.
func (c *Config) VoiceCatalogue() ([]voices.Voice, error) {
	return voices.ParseVoices(c.Voices)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return errors.New("HTTP_PORT must be between 1 and 65535")
	}

	if c.MaxTextLength < 1 {
		return errors.New("MAX_TEXT_LENGTH must be at least 1")
	}

	if c.MaxUploadBytes < 1 {
		return errors.New("MAX_UPLOAD_BYTES must be at least 1")
	}

	if c.QueueCapacity < 1 {
		return errors.New("QUEUE_CAPACITY must be at least 1")
	}

	if c.AutoLeaveIdle < 0 {
		return errors.New("AUTO_LEAVE_IDLE must be non-negative")
	}

	switch c.SpeechEngine {
	case EngineSimulated:
	case EngineExec:
		if c.SpeechCommand == "" {
			return errors.New("SPEECH_COMMAND is required for the exec engine")
		}
	case EnginePiper:
		if c.PiperModel == "" {
			return errors.New("PIPER_MODEL is required for the piper engine")
		}
		if c.DiscordToken == "" || c.GuildID == "" || c.DefaultVoiceChannelID == "" {
			return errors.New("DISCORD_TOKEN, GUILD_ID and DEFAULT_VOICE_CHANNEL_ID are required for the piper engine")
		}
	default:
		return errors.New("SPEECH_ENGINE must be one of: simulated, exec, piper")
	}

	catalogue, err := c.VoiceCatalogue()
	if err != nil {
		return fmt.Errorf("VOICES: %w", err)
	}
	if len(catalogue) == 0 {
		return errors.New("VOICES must list at least one voice")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return errors.New("LOG_LEVEL must be one of: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		return errors.New("LOG_FORMAT must be one of: text, json")
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
