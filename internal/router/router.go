package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"agentloop/internal/domain"
)

var (
	// ErrEmptyInput is returned when routing blank text.
	ErrEmptyInput = errors.New("router: input must not be empty")

	// ErrUnknownOperation is returned by ExtractParameters for a name that is
	// not in the catalog.
	ErrUnknownOperation = errors.New("router: unknown operation")
)

// Selection is the stage-one classification of an input.
type Selection struct {
	Operation string // catalog name, empty when nothing matched
	Reply     string // raw model reply
}

// Matched reports whether a catalog operation was selected.
func (s Selection) Matched() bool { return s.Operation != "" }

// Result is the proposed call produced by stage two. Parameters only holds
// values the model supplied; absent keys were omitted or discarded.
type Result struct {
	Function   string            `json:"function"`
	Parameters map[string]any    `json:"parameters"`
	Rejected   map[string]string `json:"-"` // parameters dropped by validation, with the reason
}

// Decision is the outcome of a full two-stage routing.
type Decision struct {
	Input     string
	Selection Selection
	Result    *Result // nil when no operation was selected
}

// Option is a functional option for configuring Router.
type Option func(*Router)

// WithLogger sets a structured logger. If l is nil it is ignored and the
// default slog logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithParameterValidation checks extracted values against their declared
// catalog types and drops the ones that do not conform.
func WithParameterValidation(enabled bool) Option {
	return func(r *Router) { r.validate = enabled }
}

// Router maps free text to a catalog operation and its arguments. It never
// executes the operation. A Router is stateless and safe for concurrent use.
type Router struct {
	model    domain.ChatModel
	catalog  *Catalog
	validate bool
	logger   *slog.Logger // optional; nil uses slog.Default()
}

// NewRouter returns a Router over model and catalog. Both must not be nil.
func NewRouter(model domain.ChatModel, catalog *Catalog, opts ...Option) *Router {
	if model == nil {
		panic("router: model must not be nil")
	}
	if catalog == nil {
		panic("router: catalog must not be nil")
	}
	r := &Router{model: model, catalog: catalog}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Router) log() *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return slog.Default()
}

// Catalog returns the catalog the router classifies against.
func (r *Router) Catalog() *Catalog { return r.catalog }

// SelectOperation asks the model which operation, if any, the input calls
// for. A reply of UNKNOWN or one that names no catalog operation yields an
// unmatched Selection, not an error.
func (r *Router) SelectOperation(ctx context.Context, input string) (Selection, error) {
	if strings.TrimSpace(input) == "" {
		return Selection{}, ErrEmptyInput
	}
	reply, err := r.ask(ctx, SelectPrompt(r.catalog, input))
	if err != nil {
		return Selection{}, fmt.Errorf("router: selecting operation: %w", err)
	}

	sel := Selection{Reply: reply}
	name := normalizeSelection(reply)
	if name != Unknown {
		if _, ok := r.catalog.Lookup(name); ok {
			sel.Operation = name
		}
	}
	r.log().Debug("operation selected", "reply", reply, "operation", sel.Operation)
	return sel, nil
}

// ExtractParameters asks the model for the arguments of operation. The
// returned Result always names operation as its function.
func (r *Router) ExtractParameters(ctx context.Context, operation, input string) (*Result, error) {
	op, ok := r.catalog.Lookup(operation)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, operation)
	}
	if strings.TrimSpace(input) == "" {
		return nil, ErrEmptyInput
	}
	reply, err := r.ask(ctx, ExtractPrompt(op, input))
	if err != nil {
		return nil, fmt.Errorf("router: extracting parameters: %w", err)
	}
	params, err := parseExtraction(reply)
	if err != nil {
		return nil, err
	}

	res := &Result{Function: op.Name, Parameters: cleanParameters(op, params)}
	if r.validate {
		res.Parameters, res.Rejected = validateParameters(op, res.Parameters)
		if len(res.Rejected) > 0 {
			r.log().Warn("parameters rejected", "operation", op.Name, "rejected", res.Rejected)
		}
	}
	r.log().Debug("parameters extracted", "operation", op.Name, "count", len(res.Parameters))
	return res, nil
}

// Route runs selection and, only when an operation matched, extraction.
func (r *Router) Route(ctx context.Context, input string) (*Decision, error) {
	sel, err := r.SelectOperation(ctx, input)
	if err != nil {
		return nil, err
	}
	d := &Decision{Input: input, Selection: sel}
	if !sel.Matched() {
		return d, nil
	}
	res, err := r.ExtractParameters(ctx, sel.Operation, input)
	if err != nil {
		return d, err
	}
	d.Result = res
	return d, nil
}

// ask sends prompt as a single user message without tool schemas.
func (r *Router) ask(ctx context.Context, prompt string) (string, error) {
	reply, err := r.model.Invoke(ctx, []domain.Message{domain.NewUserMessage(prompt)}, nil)
	if err != nil {
		return "", err
	}
	return reply.Content, nil
}
