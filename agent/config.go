package agent

import "github.com/martinemde/agentforge/reasoning"

// DefaultMaxSteps is the step budget used when Config.MaxSteps is not positive.
const DefaultMaxSteps = 10

// Config holds everything a run needs from its host. The loop reads no
// environment state of its own.
type Config struct {
	Model               string `json:"model" yaml:"model"`
	Mode                Mode   `json:"mode" yaml:"mode"`
	MaxSteps            int    `json:"max_steps" yaml:"max_steps"`
	MaxTokens           int    `json:"max_tokens" yaml:"max_tokens"`
	Verbose             bool   `json:"verbose" yaml:"verbose"`
	EnableLoopDetection bool   `json:"enable_loop_detection" yaml:"enable_loop_detection"`
	LoopDetectionWindow int    `json:"loop_detection_window" yaml:"loop_detection_window"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Model:               reasoning.DefaultModel,
		Mode:                DefaultMode,
		MaxSteps:            DefaultMaxSteps,
		MaxTokens:           4096,
		EnableLoopDetection: true,
		LoopDetectionWindow: 6,
	}
}

// normalized fills zero values with defaults.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.Model == "" {
		c.Model = def.Model
	}
	if c.Mode == "" {
		c.Mode = def.Mode
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = def.MaxSteps
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = def.MaxTokens
	}
	if c.LoopDetectionWindow <= 0 {
		c.LoopDetectionWindow = def.LoopDetectionWindow
	}
	return c
}
