// Package config provides the service configuration schema, the MCP
// tool-server registry, and environment-driven path selection for the
// assistant service.
package config

import (
	"os"
	"strconv"
)

// LogLevel controls log verbosity for the assistant service.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure for the assistant service.
// It is typically loaded from an optional YAML file using [Load] and then
// overlaid with environment variables via [Config.ApplyEnv].
type Config struct {
	Server ServerConfig `yaml:"server"`
	LLM    LLMConfig    `yaml:"llm"`
	Agent  AgentConfig  `yaml:"agent"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// Port is the TCP port the HTTP server listens on.
	Port int `yaml:"port"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// LLMConfig selects and parameterises the LLM backend.
type LLMConfig struct {
	// Provider is the any-llm backend name ("ollama", "openai", "anthropic",
	// "mistral", "groq").
	Provider string `yaml:"provider"`

	// Model is the model name passed to the backend.
	Model string `yaml:"model"`

	// BaseURL overrides the backend endpoint. Empty means the provider
	// default, which for Ollama is derived from the DOCKER_ENV flag.
	BaseURL string `yaml:"base_url"`

	// Temperature controls completion randomness. Zero uses the backend
	// default.
	Temperature float64 `yaml:"temperature"`
}

// AgentConfig bounds the agent's tool-calling behavior.
type AgentConfig struct {
	// MaxToolRounds caps how many completion rounds may request tool calls
	// before the run is cut off.
	MaxToolRounds int `yaml:"max_tool_rounds"`
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     4000,
			LogLevel: LogInfo,
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "mistral",
		},
		Agent: AgentConfig{
			MaxToolRounds: 5,
		},
	}
}

// ApplyEnv overlays environment variables onto cfg: PORT, OLLAMA_MODEL, and
// LLM_PROVIDER. Unset or empty variables leave the current values untouched;
// a non-numeric PORT is ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if c.LLM.Provider == "ollama" && c.LLM.BaseURL == "" {
		c.LLM.BaseURL = OllamaBaseURL(InDocker())
	}
}
