package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/martinemde/agentforge/reasoning"
)

// Executor runs a tool. Arguments have already been validated against the
// tool's schema. A returned error is reported to the model as text.
type Executor func(ctx context.Context, args map[string]interface{}, env Environment) (string, error)

// Definition describes a tool for the model.
type Definition struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// Tool pairs a definition with its executor.
type Tool struct {
	Definition Definition
	Executor   Executor

	schema *gojsonschema.Schema
}

// Registry holds tools in registration order.
type Registry struct {
	order []string
	tools map[string]*Tool
	mu    sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool, or replaces the tool of the same name in place.
func (r *Registry) Register(tool Tool) error {
	if tool.Definition.Name == "" {
		return fmt.Errorf("register tool: empty name")
	}
	if tool.Executor == nil {
		return fmt.Errorf("register tool %s: nil executor", tool.Definition.Name)
	}
	schema, err := compileSchema(tool.Definition.Parameters)
	if err != nil {
		return fmt.Errorf("register tool %s: invalid schema: %w", tool.Definition.Name, err)
	}
	tool.schema = schema

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Definition.Name]; !exists {
		r.order = append(r.order, tool.Definition.Name)
	}
	r.tools[tool.Definition.Name] = &tool
	return nil
}

// Get returns a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Definitions returns all definitions in registration order.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition)
	}
	return defs
}

// Schemas converts the definitions into the schema list sent to the model.
func (r *Registry) Schemas() []reasoning.ToolSchema {
	defs := r.Definitions()
	schemas := make([]reasoning.ToolSchema, len(defs))
	for i, d := range defs {
		schemas[i] = reasoning.ToolSchema{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		}
	}
	return schemas
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
