package config

import (
	"fmt"
)

// Config represents the main Mentara configuration
type Config struct {
	// Server
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Simulation pacing and termination
	Simulation SimulationConfig `json:"simulation" mapstructure:"simulation"`

	// Delivery (long-poll and push)
	Delivery DeliveryConfig `json:"delivery" mapstructure:"delivery"`

	// Agent provider
	Agent AgentConfig `json:"agent" mapstructure:"agent"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// ServerConfig holds the HTTP/WebSocket listener configuration
type ServerConfig struct {
	Port int `json:"port" mapstructure:"port"`
}

// SimulationConfig controls the turn scheduler.
// Durations are plain seconds for config-file friendliness.
type SimulationConfig struct {
	MaxTurns             int `json:"max_turns" mapstructure:"max_turns"`
	StudentDelaySeconds  int `json:"student_delay_seconds" mapstructure:"student_delay_seconds"`
	EducatorDelaySeconds int `json:"educator_delay_seconds" mapstructure:"educator_delay_seconds"`
	GraceSeconds         int `json:"grace_seconds" mapstructure:"grace_seconds"`
	AgentTimeoutSeconds  int `json:"agent_timeout_seconds" mapstructure:"agent_timeout_seconds"`
	EndGraceSeconds      int `json:"end_grace_seconds" mapstructure:"end_grace_seconds"`
	RetentionMinutes     int `json:"retention_minutes" mapstructure:"retention_minutes"`
	SweepIntervalSeconds int `json:"sweep_interval_seconds" mapstructure:"sweep_interval_seconds"`
}

// DeliveryConfig controls the long-poll contract
type DeliveryConfig struct {
	PollIntervalMillis    int `json:"poll_interval_millis" mapstructure:"poll_interval_millis"`
	DefaultTimeoutSeconds int `json:"default_timeout_seconds" mapstructure:"default_timeout_seconds"`
	MaxTimeoutSeconds     int `json:"max_timeout_seconds" mapstructure:"max_timeout_seconds"`
}

// AgentConfig holds the LLM provider configuration
type AgentConfig struct {
	Provider      string  `json:"provider" mapstructure:"provider"` // openai, anthropic
	APIKey        string  `json:"api_key" mapstructure:"api_key"`
	StudentModel  string  `json:"student_model" mapstructure:"student_model"`
	EducatorModel string  `json:"educator_model" mapstructure:"educator_model"`
	FeedbackModel string  `json:"feedback_model" mapstructure:"feedback_model"`
	MaxTokens     int     `json:"max_tokens" mapstructure:"max_tokens"`
	Temperature   float64 `json:"temperature" mapstructure:"temperature"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `json:"level" mapstructure:"level"`
	File    string `json:"file" mapstructure:"file"`
	Console bool   `json:"console" mapstructure:"console"`
	Pretty  bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 5060,
		},
		Simulation: SimulationConfig{
			MaxTurns:             10,
			StudentDelaySeconds:  2,
			EducatorDelaySeconds: 3,
			GraceSeconds:         10,
			AgentTimeoutSeconds:  60,
			EndGraceSeconds:      10,
			RetentionMinutes:     30,
			SweepIntervalSeconds: 60,
		},
		Delivery: DeliveryConfig{
			PollIntervalMillis:    250,
			DefaultTimeoutSeconds: 30,
			MaxTimeoutSeconds:     60,
		},
		Agent: AgentConfig{
			Provider:      "openai",
			StudentModel:  "gpt-4o-mini",
			EducatorModel: "gpt-4o-mini",
			FeedbackModel: "gpt-4o-mini",
			MaxTokens:     200,
			Temperature:   0.7,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Pretty:  true,
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Simulation.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be positive, got %d", c.Simulation.MaxTurns)
	}
	if c.Simulation.StudentDelaySeconds < 0 || c.Simulation.EducatorDelaySeconds < 0 {
		return fmt.Errorf("typing delays cannot be negative")
	}
	if c.Simulation.AgentTimeoutSeconds <= 0 {
		return fmt.Errorf("agent_timeout_seconds must be positive, got %d", c.Simulation.AgentTimeoutSeconds)
	}
	if c.Delivery.PollIntervalMillis <= 0 {
		return fmt.Errorf("poll_interval_millis must be positive, got %d", c.Delivery.PollIntervalMillis)
	}
	if c.Delivery.MaxTimeoutSeconds < c.Delivery.DefaultTimeoutSeconds {
		return fmt.Errorf("max_timeout_seconds (%d) cannot be lower than default_timeout_seconds (%d)",
			c.Delivery.MaxTimeoutSeconds, c.Delivery.DefaultTimeoutSeconds)
	}
	switch c.Agent.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("unsupported agent provider: %q", c.Agent.Provider)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	return nil
}
