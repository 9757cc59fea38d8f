package tools

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/martinemde/agentforge/reasoning"
)

// Dispatcher routes tool invocations to registered tools. Every outcome,
// including failures and unknown names, is returned as text.
type Dispatcher struct {
	registry   *Registry
	env        Environment
	charLimits map[string]int
	lineLimits map[string]int
}

// NewDispatcher creates a Dispatcher over registry and env.
func NewDispatcher(registry *Registry, env Environment, cfg Config) *Dispatcher {
	return &Dispatcher{
		registry:   registry,
		env:        env,
		charLimits: cfg.OutputLimits,
		lineLimits: cfg.LineLimits,
	}
}

// New builds a Dispatcher with the four built-in tools on the local
// machine. A nil searcher uses DuckDuckGo.
func New(cfg Config, searcher Searcher) (*Dispatcher, error) {
	cfg = cfg.normalized()
	env, err := NewLocalEnvironment(cfg.WorkingDir)
	if err != nil {
		return nil, err
	}
	if searcher == nil {
		searcher = NewDuckDuckGoSearcher()
	}
	reg := NewRegistry()
	if err := RegisterBuiltins(reg, cfg, searcher); err != nil {
		return nil, err
	}
	return NewDispatcher(reg, env, cfg), nil
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Schemas returns the tool schema list in registration order.
func (d *Dispatcher) Schemas() []reasoning.ToolSchema {
	return d.registry.Schemas()
}

// Dispatch runs the named tool and returns its text outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]interface{}) string {
	tool := d.registry.Get(name)
	if tool == nil {
		log.Debug().Str("tool", name).Msg("tools: unknown tool")
		return fmt.Sprintf("Unknown tool: %s", name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}

	problems, err := validateArgs(tool.schema, args)
	if err != nil {
		return fmt.Sprintf("Error: invalid arguments for %s: %v", name, err)
	}
	if problems != "" {
		return fmt.Sprintf("Error: invalid arguments for %s: %s", name, problems)
	}

	output, err := d.execute(ctx, tool, args)
	if err != nil {
		log.Debug().Err(err).Str("tool", name).Msg("tools: execution failed")
		return fmt.Sprintf("Error: %s: %v", name, err)
	}
	return TruncateToolOutput(output, name, d.charLimits, d.lineLimits)
}

func (d *Dispatcher) execute(ctx context.Context, tool *Tool, args map[string]interface{}) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = ""
			err = fmt.Errorf("panicked: %v", r)
		}
	}()
	return tool.Executor(ctx, args, d.env)
}
