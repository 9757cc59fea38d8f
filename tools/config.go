package tools

import "time"

// Config holds the settings of the built-in tools.
type Config struct {
	// WorkingDir anchors relative paths and is the cwd of run_code. Empty
	// means the process working directory.
	WorkingDir string `json:"working_dir" yaml:"working_dir"`
	// MaxReadBytes is the largest file read_file accepts.
	MaxReadBytes int64 `json:"max_read_bytes" yaml:"max_read_bytes"`
	// CodeTimeout bounds each run_code execution.
	CodeTimeout time.Duration `json:"code_timeout" yaml:"code_timeout"`
	// Interpreter runs run_code snippets.
	Interpreter string `json:"interpreter" yaml:"interpreter"`
	// SearchResults is the number of web_search hits returned.
	SearchResults int `json:"search_results" yaml:"search_results"`
	// OutputLimits caps the characters of a tool's output. Tools without an
	// entry are not truncated.
	OutputLimits map[string]int `json:"output_limits,omitempty" yaml:"output_limits,omitempty"`
	// LineLimits caps the lines of a tool's output after character
	// truncation.
	LineLimits map[string]int `json:"line_limits,omitempty" yaml:"line_limits,omitempty"`
}

// DefaultConfig returns the default tool settings.
func DefaultConfig() Config {
	return Config{
		MaxReadBytes:  1_000_000,
		CodeTimeout:   30 * time.Second,
		Interpreter:   "python3",
		SearchResults: 5,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MaxReadBytes <= 0 {
		c.MaxReadBytes = def.MaxReadBytes
	}
	if c.CodeTimeout <= 0 {
		c.CodeTimeout = def.CodeTimeout
	}
	if c.Interpreter == "" {
		c.Interpreter = def.Interpreter
	}
	if c.SearchResults <= 0 {
		c.SearchResults = def.SearchResults
	}
	return c
}
