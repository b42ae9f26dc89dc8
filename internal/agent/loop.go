package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agentloop/internal/domain"
	"agentloop/internal/retry"
	"agentloop/internal/tooling"
)

// BadToolName is the tool-result content returned to the model when it
// requests a tool that is not registered.
const BadToolName = "bad tool name, retry"

// DefaultMaxSteps caps model invocations per run when no limit is configured.
const DefaultMaxSteps = 25

var (
	// ErrStepBudgetExceeded is returned when a run hits its step or time budget
	// before the model produces a final answer.
	ErrStepBudgetExceeded = errors.New("agent: step budget exceeded")

	// ErrToolFailed wraps a tool error when the loop is configured to treat
	// tool failures as fatal.
	ErrToolFailed = errors.New("agent: tool failed")
)

// Status is the terminal classification of a run.
type Status string

const (
	StatusDone               Status = "done"
	StatusStepBudgetExceeded Status = "step_budget_exceeded"
	StatusFailed             Status = "failed"
)

// Outcome is the result of a run. Messages always holds the conversation as
// it stood when the run ended, including partial progress on failure.
type Outcome struct {
	Status   Status
	Messages []domain.Message
	Final    string // content of the last assistant message when Status is done
	Steps    int    // model invocations performed
}

// Option is a functional option for configuring Loop.
type Option func(*Loop)

// WithLogger sets a structured logger. If l is nil it is ignored and the
// default slog logger is used.
func WithLogger(l *slog.Logger) Option {
	return func(lp *Loop) {
		if l != nil {
			lp.logger = l
		}
	}
}

// WithSystemPrompt sets the system message placed first in every model call.
func WithSystemPrompt(prompt string) Option {
	return func(lp *Loop) { lp.systemPrompt = prompt }
}

// WithMaxSteps caps model invocations per run. Values <= 0 are ignored.
func WithMaxSteps(n int) Option {
	return func(lp *Loop) {
		if n > 0 {
			lp.maxSteps = n
		}
	}
}

// WithTimeout caps the wall-clock duration of a run. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(lp *Loop) {
		if d > 0 {
			lp.timeout = d
		}
	}
}

// WithFailOnToolError makes a failing tool abort the run instead of feeding
// the error back to the model.
func WithFailOnToolError(fail bool) Option {
	return func(lp *Loop) { lp.failOnToolError = fail }
}

// WithRetryPolicy sets the policy used to retry failing tool executions.
// If p is nil it is ignored.
func WithRetryPolicy(p *retry.Policy) Option {
	return func(lp *Loop) {
		if p != nil {
			lp.retry = p
		}
	}
}

// WithContextManager trims what is sent to the model to a token budget.
// The conversation state itself is never trimmed. If cm is nil it is ignored.
func WithContextManager(cm domain.ContextManager) Option {
	return func(lp *Loop) {
		if cm != nil {
			lp.contextMgr = cm
		}
	}
}

// WithTranscript registers sinks that receive every appended message.
// Nil entries are skipped.
func WithTranscript(sinks ...domain.TranscriptSink) Option {
	return func(lp *Loop) {
		for _, s := range sinks {
			if s != nil {
				lp.sinks = append(lp.sinks, s)
			}
		}
	}
}

// ConfigOptions translates the agent section of the configuration into options.
func ConfigOptions(cfg domain.AgentConfig) []Option {
	return []Option{
		WithSystemPrompt(cfg.SystemPrompt),
		WithMaxSteps(cfg.MaxSteps),
		WithTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second),
		WithFailOnToolError(cfg.FailOnToolError),
	}
}

// Loop drives a model through tool-calling turns until it answers without
// requesting tools. A Loop holds no per-run state and may be shared by
// concurrent runs.
type Loop struct {
	model           domain.ChatModel
	registry        *tooling.Registry
	systemPrompt    string
	maxSteps        int
	timeout         time.Duration
	failOnToolError bool
	retry           *retry.Policy
	contextMgr      domain.ContextManager // optional; nil sends the full conversation
	sinks           []domain.TranscriptSink
	logger          *slog.Logger // optional; nil uses slog.Default()
}

// NewLoop returns a Loop over model and registry. Both must not be nil.
func NewLoop(model domain.ChatModel, registry *tooling.Registry, opts ...Option) *Loop {
	if model == nil {
		panic("agent: model must not be nil")
	}
	if registry == nil {
		panic("agent: registry must not be nil")
	}
	l := &Loop{
		model:    model,
		registry: registry,
		maxSteps: DefaultMaxSteps,
		retry:    retry.NewPolicy(retry.NoRetry()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) log() *slog.Logger {
	if l.logger != nil {
		return l.logger
	}
	return slog.Default()
}

// Run starts a fresh conversation with input as the user message.
func (l *Loop) Run(ctx context.Context, input string) (*Outcome, error) {
	return l.Continue(ctx, nil, input)
}

// Continue runs a new user turn on top of history, typically the Messages of
// a previous Outcome. history is copied, never modified.
func (l *Loop) Continue(ctx context.Context, history []domain.Message, input string) (*Outcome, error) {
	parent := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	r := &run{loop: l, parent: parent, messages: make([]domain.Message, 0, len(history)+2)}
	r.messages = append(r.messages, history...)
	if l.systemPrompt != "" && (len(r.messages) == 0 || r.messages[0].Role != domain.RoleSystem) {
		r.messages = append([]domain.Message{domain.NewSystemMessage(l.systemPrompt)}, r.messages...)
		r.emit(r.messages[0])
	}
	r.append(domain.NewUserMessage(input))

	return r.drive(ctx)
}

// state is a position in the model/tool state machine.
type state int

const (
	awaitingModel state = iota
	awaitingToolExecution
	done
)

func (s state) String() string {
	switch s {
	case awaitingModel:
		return "awaiting_model"
	case awaitingToolExecution:
		return "awaiting_tool_execution"
	case done:
		return "done"
	default:
		return "unknown"
	}
}

// run owns the conversation state of a single Run or Continue call.
type run struct {
	loop     *Loop
	parent   context.Context // caller's context, before the run timeout
	messages []domain.Message
	steps    int
}

func (r *run) drive(ctx context.Context) (*Outcome, error) {
	l := r.loop
	st := awaitingModel
	for {
		l.log().Debug("agent state", "state", st.String(), "step", r.steps, "messages", len(r.messages))
		switch st {
		case awaitingModel:
			if r.steps >= l.maxSteps {
				return r.outcome(StatusStepBudgetExceeded), fmt.Errorf("%w: %d model calls", ErrStepBudgetExceeded, r.steps)
			}
			if err := ctx.Err(); err != nil {
				return r.cancelled(err)
			}
			reply, err := r.invoke(ctx)
			r.steps++
			if err != nil {
				if ctx.Err() != nil {
					return r.cancelled(ctx.Err())
				}
				return r.outcome(StatusFailed), fmt.Errorf("agent: model call %d: %w", r.steps, err)
			}
			r.append(reply)
			if reply.HasToolCalls() {
				st = awaitingToolExecution
			} else {
				st = done
			}

		case awaitingToolExecution:
			requests := r.messages[len(r.messages)-1].ToolCalls
			results := make([]domain.Message, 0, len(requests))
			for _, req := range requests {
				content, err := r.execute(ctx, req)
				if err != nil {
					if ctx.Err() != nil {
						return r.cancelled(ctx.Err())
					}
					return r.outcome(StatusFailed), err
				}
				results = append(results, domain.NewToolResultMessage(req, content))
			}
			for _, msg := range results {
				r.append(msg)
			}
			st = awaitingModel

		case done:
			return r.outcome(StatusDone), nil
		}
	}
}

// invoke calls the model with the (optionally trimmed) conversation and
// normalizes the reply into an assistant message whose call IDs are non-empty
// and unique within the conversation, history included.
func (r *run) invoke(ctx context.Context) (domain.Message, error) {
	l := r.loop
	msgs, err := r.window()
	if err != nil {
		return domain.Message{}, err
	}
	reply, err := l.model.Invoke(ctx, msgs, l.registry.Schemas())
	if err != nil {
		return domain.Message{}, err
	}
	reply.Role = domain.RoleAssistant
	reply.ToolCallID = ""
	if len(reply.ToolCalls) > 0 {
		calls := make([]domain.ToolRequest, len(reply.ToolCalls))
		copy(calls, reply.ToolCalls)
		r.assignCallIDs(calls)
		reply.ToolCalls = calls
	}
	l.log().Debug("model replied", "step", r.steps+1, "tool_calls", len(reply.ToolCalls))
	return reply, nil
}

// assignCallIDs gives every request without an ID, or with one already used
// in the conversation, a fresh "call_<n>" ID. n counts from the number of
// tool requests so far, so IDs keep growing across Continue calls.
func (r *run) assignCallIDs(calls []domain.ToolRequest) {
	used := make(map[string]bool)
	n := 0
	for _, m := range r.messages {
		for _, tc := range m.ToolCalls {
			used[tc.ID] = true
			n++
		}
	}
	for i := range calls {
		if calls[i].ID == "" || used[calls[i].ID] {
			id := ""
			for id == "" || used[id] {
				n++
				id = fmt.Sprintf("call_%d", n)
			}
			r.loop.log().Debug("assigned tool call id", "tool", calls[i].Name, "was", calls[i].ID, "id", id)
			calls[i].ID = id
		}
		used[calls[i].ID] = true
	}
}

// window returns the messages to send for the next model call: the system
// message first, followed by the conversation, fitted to the token budget
// when a context manager is configured.
func (r *run) window() ([]domain.Message, error) {
	l := r.loop
	msgs := r.messages
	var sys *domain.Message
	if len(msgs) > 0 && msgs[0].Role == domain.RoleSystem {
		sys = &msgs[0]
		msgs = msgs[1:]
	}
	if l.contextMgr != nil {
		prompt := ""
		if sys != nil {
			prompt = sys.Content
		}
		fitted, err := l.contextMgr.FitToWindow(msgs, prompt)
		if err != nil {
			return nil, fmt.Errorf("agent: fitting context window: %w", err)
		}
		if len(fitted) < len(msgs) {
			l.log().Debug("context trimmed", "kept", len(fitted), "total", len(msgs))
		}
		msgs = fitted
	}
	out := make([]domain.Message, 0, len(msgs)+1)
	if sys != nil {
		out = append(out, *sys)
	}
	return append(out, msgs...), nil
}

// execute produces the tool-result content for one request. A non-nil error
// is only returned when the run must stop.
func (r *run) execute(ctx context.Context, req domain.ToolRequest) (string, error) {
	l := r.loop
	tool, ok := l.registry.Resolve(req.Name)
	if !ok {
		l.log().Warn("unknown tool requested", "tool", req.Name, "call_id", req.ID)
		return BadToolName, nil
	}

	l.log().Info("dispatching tool", "tool", req.Name, "call_id", req.ID)
	var result any
	err := l.retry.Do(ctx, func(ctx context.Context) error {
		res, callErr := safeCall(ctx, tool, req.Arguments)
		if callErr != nil {
			return callErr
		}
		result = res
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if l.failOnToolError {
			return "", fmt.Errorf("%w: %s: %w", ErrToolFailed, req.Name, err)
		}
		l.log().Warn("tool failed", "tool", req.Name, "call_id", req.ID, "error", err)
		return tooling.FormatError(err), nil
	}
	return tooling.FormatResult(result), nil
}

// safeCall runs the tool and converts a panic into an error.
func safeCall(ctx context.Context, tool *tooling.Tool, args domain.Args) (result any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool %q panicked: %v", tool.Name(), p)
		}
	}()
	return tool.Call(ctx, args)
}

func (r *run) append(msg domain.Message) {
	r.messages = append(r.messages, msg)
	r.emit(msg)
}

func (r *run) emit(msg domain.Message) {
	for _, s := range r.loop.sinks {
		if err := s.Append(msg); err != nil {
			r.loop.log().Warn("transcript sink failed", "error", err)
		}
	}
}

// cancelled classifies a context error: the run's own timeout counts against
// the step budget, anything else (including the caller's deadline) is a
// failure.
func (r *run) cancelled(err error) (*Outcome, error) {
	if errors.Is(err, context.DeadlineExceeded) && r.loop.timeout > 0 && r.parent.Err() == nil {
		return r.outcome(StatusStepBudgetExceeded), fmt.Errorf("%w: timeout after %s: %w", ErrStepBudgetExceeded, r.loop.timeout, err)
	}
	return r.outcome(StatusFailed), fmt.Errorf("agent: %w", err)
}

func (r *run) outcome(status Status) *Outcome {
	out := &Outcome{
		Status:   status,
		Messages: append([]domain.Message(nil), r.messages...),
		Steps:    r.steps,
	}
	if status == StatusDone && len(r.messages) > 0 {
		out.Final = r.messages[len(r.messages)-1].Content
	}
	return out
}
