package tooling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"agentloop/internal/domain"
)

// ErrInvalidTool is returned by Register for an unusable definition.
var ErrInvalidTool = errors.New("tooling: invalid tool")

// Executable runs a tool. Implementations coerce their own arguments and
// report bad input through the returned error.
type Executable func(ctx context.Context, args domain.Args) (any, error)

// ToolOption configures a registered tool.
type ToolOption func(*Tool)

// WithArgValidation makes the tool validate arguments against its parameter
// schema before the executable runs.
func WithArgValidation() ToolOption {
	return func(t *Tool) { t.validate = true }
}

// Tool is a registered definition bound to its executable.
type Tool struct {
	def      domain.ToolDefinition
	exec     Executable
	validate bool
}

// Name returns the unique tool name used in function-calling.
func (t *Tool) Name() string { return t.def.Name }

// Definition returns the schema presented to the model.
func (t *Tool) Definition() domain.ToolDefinition { return t.def }

// Call runs the executable. When argument validation is enabled, invalid
// arguments are rejected without invoking it.
func (t *Tool) Call(ctx context.Context, args domain.Args) (any, error) {
	if args == nil {
		args = domain.Args{}
	}
	if t.validate {
		if err := ValidateArgs(args, t.def.Parameters); err != nil {
			return nil, fmt.Errorf("tool %q: %w", t.def.Name, err)
		}
	}
	return t.exec(ctx, args)
}

// Registry maps tool names to tools and keeps registration order for the
// schema list handed to the model. Register is meant for startup; once
// populated, concurrent Resolve and Schemas calls are safe.
type Registry struct {
	tools map[string]*Tool
	order []string
}

// NewRegistry returns an empty, ready-to-use registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register binds exec to def.Name. Re-registering a name replaces the
// previous tool and keeps its position in Schemas.
func (r *Registry) Register(def domain.ToolDefinition, exec Executable, opts ...ToolOption) (*Tool, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name must not be empty", ErrInvalidTool)
	}
	if exec == nil {
		return nil, fmt.Errorf("%w: %q has no executable", ErrInvalidTool, name)
	}
	def.Name = name
	if def.Parameters.Type == "" {
		def.Parameters.Type = "object"
	}
	if def.Parameters.Properties == nil {
		def.Parameters.Properties = map[string]domain.PropertySchema{}
	}
	tool := &Tool{def: def, exec: exec}
	for _, opt := range opts {
		opt(tool)
	}
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = tool
	return tool, nil
}

// Resolve returns the tool registered under name.
func (r *Registry) Resolve(name string) (*Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// Schemas returns the definition of every tool in registration order.
func (r *Registry) Schemas() []domain.ToolDefinition {
	out := make([]domain.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].def)
	}
	return out
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }
