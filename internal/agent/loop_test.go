package agent

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"agentloop/internal/domain"
	"agentloop/internal/retry"
	"agentloop/internal/tooling"
)

// =============================================================================
// Test Doubles
// =============================================================================

// scriptedModel replays replies in order and records every invocation.
type scriptedModel struct {
	mu      sync.Mutex
	replies []domain.Message
	errs    map[int]error // call index -> error
	calls   [][]domain.Message
	tools   [][]domain.ToolDefinition
	invoke  func(ctx context.Context, call int) (domain.Message, error)
}

func (m *scriptedModel) Invoke(ctx context.Context, messages []domain.Message, tools []domain.ToolDefinition) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call := len(m.calls)
	m.calls = append(m.calls, append([]domain.Message(nil), messages...))
	m.tools = append(m.tools, tools)
	if m.invoke != nil {
		return m.invoke(ctx, call)
	}
	if err, ok := m.errs[call]; ok {
		return domain.Message{}, err
	}
	if call >= len(m.replies) {
		return domain.Message{Role: domain.RoleAssistant, Content: "fim"}, nil
	}
	return m.replies[call], nil
}

func (m *scriptedModel) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func answer(text string) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, Content: text}
}

func requestTools(reqs ...domain.ToolRequest) domain.Message {
	return domain.Message{Role: domain.RoleAssistant, ToolCalls: reqs}
}

func req(id, name string, args domain.Args) domain.ToolRequest {
	return domain.ToolRequest{ID: id, Name: name, Arguments: args}
}

// recordingSink collects appended messages.
type recordingSink struct {
	msgs []domain.Message
	err  error
}

func (s *recordingSink) Append(msg domain.Message) error {
	s.msgs = append(s.msgs, msg)
	return s.err
}

// newRegistry registers an "echo" tool returning its "text" argument and a
// "slow" tool whose latency is taken from the "ms" argument.
func newRegistry(t *testing.T) *tooling.Registry {
	t.Helper()
	reg := tooling.NewRegistry()
	mustRegister(t, reg, "echo", func(ctx context.Context, args domain.Args) (any, error) {
		return args.String("text")
	})
	mustRegister(t, reg, "slow", func(ctx context.Context, args domain.Args) (any, error) {
		ms, err := args.Int("ms")
		if err != nil {
			return nil, err
		}
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return ms, nil
	})
	return reg
}

func mustRegister(t *testing.T, reg *tooling.Registry, name string, exec tooling.Executable) {
	t.Helper()
	def := domain.ToolDefinition{Name: name, Description: name + " tool"}
	if _, err := reg.Register(def, exec); err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// =============================================================================
// Constructor
// =============================================================================

func TestNewLoop_WhenModelNil_ShouldPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewLoop(nil, ...) should panic")
		}
	}()
	NewLoop(nil, tooling.NewRegistry())
}

func TestNewLoop_WhenRegistryNil_ShouldPanic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewLoop(model, nil) should panic")
		}
	}()
	NewLoop(&scriptedModel{}, nil)
}

func TestNewLoop_ShouldDefaultMaxSteps(t *testing.T) {
	l := NewLoop(&scriptedModel{}, tooling.NewRegistry(), WithMaxSteps(0))
	if l.maxSteps != DefaultMaxSteps {
		t.Errorf("want %d, got %d", DefaultMaxSteps, l.maxSteps)
	}
}

func TestConfigOptions_ShouldApplyAgentConfig(t *testing.T) {
	cfg := domain.AgentConfig{SystemPrompt: "sys", MaxSteps: 3, TimeoutSeconds: 2, FailOnToolError: true}
	l := NewLoop(&scriptedModel{}, tooling.NewRegistry(), ConfigOptions(cfg)...)
	if l.systemPrompt != "sys" || l.maxSteps != 3 || l.timeout != 2*time.Second || !l.failOnToolError {
		t.Errorf("unexpected loop config: %+v", l)
	}
}

// =============================================================================
// Run: direct answers
// =============================================================================

func TestRun_WhenModelAnswersDirectly_ShouldFinishInOneStep(t *testing.T) {
	model := &scriptedModel{replies: []domain.Message{answer("Olá!")}}
	l := NewLoop(model, newRegistry(t), WithSystemPrompt("seja breve"), WithLogger(discardLogger()))

	out, err := l.Run(context.Background(), "oi")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != StatusDone || out.Final != "Olá!" || out.Steps != 1 {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if model.callCount() != 1 {
		t.Errorf("model must not be re-invoked after a final answer, got %d calls", model.callCount())
	}
	roles := []domain.MessageRole{domain.RoleSystem, domain.RoleUser, domain.RoleAssistant}
	if len(out.Messages) != len(roles) {
		t.Fatalf("want %d messages, got %d", len(roles), len(out.Messages))
	}
	for i, r := range roles {
		if out.Messages[i].Role != r {
			t.Errorf("message %d: want role %s, got %s", i, r, out.Messages[i].Role)
		}
	}
}

func TestRun_WhenNoSystemPrompt_ShouldSeedWithUserOnly(t *testing.T) {
	model := &scriptedModel{replies: []domain.Message{answer("ok")}}
	l := NewLoop(model, newRegistry(t))

	if _, err := l.Run(context.Background(), "oi"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	sent := model.calls[0]
	if len(sent) != 1 || sent[0].Role != domain.RoleUser {
		t.Errorf("want [user], got %+v", sent)
	}
}

func TestRun_ShouldPassToolSchemasInRegistrationOrder(t *testing.T) {
	model := &scriptedModel{replies: []domain.Message{answer("ok")}}
	l := NewLoop(model, newRegistry(t))

	if _, err := l.Run(context.Background(), "oi"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	tools := model.tools[0]
	if len(tools) != 2 || tools[0].Name != "echo" || tools[1].Name != "slow" {
		t.Errorf("unexpected tool schemas: %+v", tools)
	}
}

// =============================================================================
// Run: tool execution
// =============================================================================

func TestRun_WhenToolRequested_ShouldPairResultsWithCallIDs(t *testing.T) {
	model := &scriptedModel{replies: []domain.Message{
		requestTools(req("c1", "echo", domain.Args{"text": "um"}), req("c2", "echo", domain.Args{"text": "dois"})),
		answer("feito"),
	}}
	l := NewLoop(model, newRegistry(t), WithSystemPrompt("sys"))

	out, err := l.Run(context.Background(), "repita")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != StatusDone || out.Steps != 2 {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	// system, user, assistant(tool calls), tool c1, tool c2, assistant
	if len(out.Messages) != 6 {
		t.Fatalf("want 6 messages, got %d", len(out.Messages))
	}
	want := []struct{ id, content string }{{"c1", "um"}, {"c2", "dois"}}
	for i, w := range want {
		msg := out.Messages[3+i]
		if msg.Role != domain.RoleTool || msg.ToolCallID != w.id || msg.Name != "echo" || msg.Content != w.content {
			t.Errorf("tool result %d: got %+v", i, msg)
		}
	}

	// Every tool message answers exactly one earlier request.
	seen := map[string]bool{}
	for _, msg := range out.Messages {
		for _, tc := range msg.ToolCalls {
			seen[tc.ID] = true
		}
		if msg.Role == domain.RoleTool {
			if !seen[msg.ToolCallID] {
				t.Errorf("tool result %q has no preceding request", msg.ToolCallID)
			}
			delete(seen, msg.ToolCallID)
		}
	}
	if len(seen) != 0 {
		t.Errorf("requests without results: %v", seen)
	}
}

func TestRun_ShouldPreserveRequestOrderRegardlessOfLatency(t *testing.T) {
	model := &scriptedModel{replies: []domain.Message{
		requestTools(
			req("a", "slow", domain.Args{"ms": 30.0}),
			req("b", "slow", domain.Args{"ms": 0.0}),
			req("c", "slow", domain.Args{"ms": 10.0}),
		),
		answer("ok"),
	}}
	l := NewLoop(model, newRegistry(t))

	out, err := l.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	var ids []string
	for _, msg := range out.Messages {
		if msg.Role == domain.RoleTool {
			ids = append(ids, msg.ToolCallID)
		}
	}
	if strings.Join(ids, ",") != "a,b,c" {
		t.Errorf("want a,b,c, got %v", ids)
	}
}

func TestRun_WhenUnknownTool_ShouldFeedBackSentinelAndContinue(t *testing.T) {
	model := &scriptedModel{replies: []domain.Message{
		requestTools(req("x", "teleport", nil)),
		answer("desculpe"),
	}}
	l := NewLoop(model, newRegistry(t), WithLogger(discardLogger()))

	out, err := l.Run(context.Background(), "me teletransporte")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != StatusDone {
		t.Fatalf("want done, got %s", out.Status)
	}
	result := out.Messages[2]
	if result.Role != domain.RoleTool || result.Content != BadToolName || result.ToolCallID != "x" {
		t.Errorf("unexpected tool result: %+v", result)
	}
	// The second model call must see the sentinel.
	second := model.calls[1]
	if second[len(second)-1].Content != BadToolName {
		t.Errorf("model did not receive the sentinel: %+v", second)
	}
}

func TestRun_WhenToolFails_ShouldFeedErrorBackToModel(t *testing.T) {
	reg := tooling.NewRegistry()
	mustRegister(t, reg, "broken", func(ctx context.Context, args domain.Args) (any, error) {
		return nil, errors.New("weather service down")
	})
	model := &scriptedModel{replies: []domain.Message{
		requestTools(req("b1", "broken", nil)),
		answer("não consegui"),
	}}
	l := NewLoop(model, reg, WithLogger(discardLogger()))

	out, err := l.Run(context.Background(), "clima?")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.Status != StatusDone {
		t.Fatalf("want done, got %s", out.Status)
	}
	if got := out.Messages[2].Content; got != `{"error":"weather service down"}` {
		t.Errorf("unexpected error content: %s", got)
	}
}

func TestRun_WhenToolPanics_ShouldRecoverAndFeedBack(t *testing.T) {
	reg := tooling.NewRegistry()
	mustRegister(t, reg, "panicky", func(ctx context.Context, args domain.Args) (any, error) {
		panic("boom")
	})
	model := &scriptedModel{replies: []domain.Message{
		requestTools(req("p1", "panicky", nil)),
		answer("ok"),
	}}
	l := NewLoop(model, reg, WithLogger(discardLogger()))

	out, err := l.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.Messages[2].Content, "panicked: boom") {
		t.Errorf("want panic description, got %s", out.Messages[2].Content)
	}
}

func TestRun_WhenFailOnToolError_ShouldAbortWithErrToolFailed(t *testing.T) {
	cause := errors.New("disk full")
	reg := tooling.NewRegistry()
	mustRegister(t, reg, "broken", func(ctx context.Context, args domain.Args) (any, error) {
		return nil, cause
	})
	model := &scriptedModel{replies: []domain.Message{requestTools(req("b1", "broken", nil))}}
	l := NewLoop(model, reg, WithFailOnToolError(true))

	out, err := l.Run(context.Background(), "go")
	if !errors.Is(err, ErrToolFailed) || !errors.Is(err, cause) {
		t.Fatalf("want ErrToolFailed wrapping cause, got %v", err)
	}
	if out.Status != StatusFailed {
		t.Errorf("want failed, got %s", out.Status)
	}
	if model.callCount() != 1 {
		t.Errorf("model must not be called after a fatal tool error, got %d calls", model.callCount())
	}
}

func TestRun_WhenToolTransientlyFails_ShouldRetry(t *testing.T) {
	attempts := 0
	reg := tooling.NewRegistry()
	mustRegister(t, reg, "flaky", func(ctx context.Context, args domain.Args) (any, error) {
		attempts++
		if attempts < 3 {
			return nil, retry.Transient(errors.New("503 Service Unavailable"))
		}
		return "ok", nil
	})
	policy := retry.NewPolicy(retry.Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1})
	model := &scriptedModel{replies: []domain.Message{requestTools(req("f1", "flaky", nil)), answer("pronto")}}
	l := NewLoop(model, reg, WithRetryPolicy(policy))

	out, err := l.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if attempts != 3 || out.Messages[2].Content != "ok" {
		t.Errorf("want 3 attempts and ok result, got %d attempts, %q", attempts, out.Messages[2].Content)
	}
}

func TestRun_WhenToolCallHasNoID_ShouldAssignOne(t *testing.T) {
	model := &scriptedModel{replies: []domain.Message{
		requestTools(req("", "echo", domain.Args{"text": "a"}), req("", "echo", domain.Args{"text": "b"})),
		answer("ok"),
	}}
	l := NewLoop(model, newRegistry(t))

	out, err := l.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	calls := out.Messages[1].ToolCalls
	if calls[0].ID == "" || calls[0].ID == calls[1].ID {
		t.Fatalf("want distinct non-empty IDs, got %+v", calls)
	}
	if out.Messages[2].ToolCallID != calls[0].ID || out.Messages[3].ToolCallID != calls[1].ID {
		t.Errorf("results not paired with assigned IDs: %+v", out.Messages[2:4])
	}
}

func TestRun_WhenModelReusesID_ShouldReassignAcrossSteps(t *testing.T) {
	model := &scriptedModel{replies: []domain.Message{
		requestTools(req("same", "echo", domain.Args{"text": "a"})),
		requestTools(req("same", "echo", domain.Args{"text": "b"})),
		answer("ok"),
	}}
	l := NewLoop(model, newRegistry(t))

	out, err := l.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	first, second := out.Messages[1].ToolCalls[0].ID, out.Messages[3].ToolCalls[0].ID
	if first != "same" || second == "same" || second == "" {
		t.Fatalf("want first ID kept and second reassigned, got %q and %q", first, second)
	}
	if out.Messages[4].ToolCallID != second {
		t.Errorf("result not paired with reassigned ID: %+v", out.Messages[4])
	}
}

func TestContinue_WhenIDsSynthesized_ShouldStayUniqueAcrossTurns(t *testing.T) {
	model := &scriptedModel{replies: []domain.Message{
		requestTools(req("", "echo", domain.Args{"text": "a"})),
		answer("um"),
		requestTools(req("", "echo", domain.Args{"text": "b"}), req("", "echo", domain.Args{"text": "c"})),
		answer("dois"),
	}}
	l := NewLoop(model, newRegistry(t))

	first, err := l.Run(context.Background(), "primeiro")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := l.Continue(context.Background(), first.Messages, "segundo")
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}

	requests := map[string]int{}
	results := map[string]int{}
	for _, m := range second.Messages {
		for _, tc := range m.ToolCalls {
			requests[tc.ID]++
		}
		if m.Role == domain.RoleTool {
			results[m.ToolCallID]++
		}
	}
	if len(requests) != 3 {
		t.Fatalf("want 3 distinct call IDs, got %v", requests)
	}
	for id, n := range requests {
		if id == "" || n != 1 || results[id] != 1 {
			t.Errorf("call ID %q: %d requests, %d results; want 1 and 1", id, n, results[id])
		}
	}
}

func TestRun_WhenToolErrorIsPermanent_ShouldNotRetry(t *testing.T) {
	attempts := 0
	reg := tooling.NewRegistry()
	mustRegister(t, reg, "calculate_sum", func(ctx context.Context, args domain.Args) (any, error) {
		attempts++
		return nil, errors.New(`argument "a": "R$ 500" is not a number`)
	})
	policy := retry.NewPolicy(retry.Config{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, Multiplier: 1})
	model := &scriptedModel{replies: []domain.Message{
		requestTools(req("s1", "calculate_sum", domain.Args{"a": "R$ 500", "b": 1})),
		answer("não consegui"),
	}}
	l := NewLoop(model, reg, WithRetryPolicy(policy), WithLogger(discardLogger()))

	out, err := l.Run(context.Background(), "some")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if attempts != 1 {
		t.Errorf("want 1 attempt for a permanent error, got %d", attempts)
	}
	if got := out.Messages[2].Content; !strings.Contains(got, "R$ 500") || strings.Contains(got, "retries exhausted") {
		t.Errorf("want the plain tool error fed back, got %s", got)
	}
}

// =============================================================================
// Run: budgets and failures
// =============================================================================

func TestRun_WhenModelAlwaysRequestsTools_ShouldStopAtStepBudget(t *testing.T) {
	model := &scriptedModel{invoke: func(ctx context.Context, call int) (domain.Message, error) {
		return requestTools(req("", "echo", domain.Args{"text": "again"})), nil
	}}
	l := NewLoop(model, newRegistry(t), WithMaxSteps(4))

	out, err := l.Run(context.Background(), "loop")
	if !errors.Is(err, ErrStepBudgetExceeded) {
		t.Fatalf("want ErrStepBudgetExceeded, got %v", err)
	}
	if out.Status != StatusStepBudgetExceeded || out.Steps != 4 || model.callCount() != 4 {
		t.Errorf("unexpected outcome: status=%s steps=%d calls=%d", out.Status, out.Steps, model.callCount())
	}
	// The last requests were answered before stopping.
	if last := out.Messages[len(out.Messages)-1]; last.Role != domain.RoleTool {
		t.Errorf("want last message to be a tool result, got %s", last.Role)
	}
}

func TestRun_WhenTimeoutElapses_ShouldReportStepBudgetExceeded(t *testing.T) {
	model := &scriptedModel{invoke: func(ctx context.Context, call int) (domain.Message, error) {
		<-ctx.Done()
		return domain.Message{}, ctx.Err()
	}}
	l := NewLoop(model, newRegistry(t), WithTimeout(10*time.Millisecond))

	out, err := l.Run(context.Background(), "espera")
	if !errors.Is(err, ErrStepBudgetExceeded) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want budget error wrapping deadline, got %v", err)
	}
	if out.Status != StatusStepBudgetExceeded {
		t.Errorf("want step_budget_exceeded, got %s", out.Status)
	}
}

func TestRun_WhenCallerDeadlineElapses_ShouldFailNotExceedBudget(t *testing.T) {
	model := &scriptedModel{invoke: func(ctx context.Context, call int) (domain.Message, error) {
		<-ctx.Done()
		return domain.Message{}, ctx.Err()
	}}
	l := NewLoop(model, newRegistry(t), WithTimeout(time.Hour))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	out, err := l.Run(ctx, "espera")
	if errors.Is(err, ErrStepBudgetExceeded) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("want plain deadline error, got %v", err)
	}
	if out.Status != StatusFailed {
		t.Errorf("want failed, got %s", out.Status)
	}
}

func TestRun_WhenModelFails_ShouldReturnPartialOutcome(t *testing.T) {
	cause := errors.New("backend unavailable")
	model := &scriptedModel{
		replies: []domain.Message{requestTools(req("e1", "echo", domain.Args{"text": "x"}))},
		errs:    map[int]error{1: cause},
	}
	l := NewLoop(model, newRegistry(t))

	out, err := l.Run(context.Background(), "go")
	if !errors.Is(err, cause) {
		t.Fatalf("want wrapped cause, got %v", err)
	}
	if out.Status != StatusFailed || out.Steps != 2 || len(out.Messages) != 3 {
		t.Errorf("unexpected partial outcome: status=%s steps=%d messages=%d", out.Status, out.Steps, len(out.Messages))
	}
}

func TestRun_WhenContextCancelled_ShouldNotInvokeModel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	model := &scriptedModel{}
	l := NewLoop(model, newRegistry(t))

	out, err := l.Run(ctx, "go")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if out.Status != StatusFailed || model.callCount() != 0 {
		t.Errorf("unexpected outcome: status=%s calls=%d", out.Status, model.callCount())
	}
}

// =============================================================================
// Continue, context window, transcript
// =============================================================================

func TestContinue_ShouldKeepHistoryAndSystemFirst(t *testing.T) {
	model := &scriptedModel{replies: []domain.Message{answer("primeira"), answer("segunda")}}
	l := NewLoop(model, newRegistry(t), WithSystemPrompt("sys"))

	first, err := l.Run(context.Background(), "um")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := l.Continue(context.Background(), first.Messages, "dois")
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	if len(second.Messages) != 5 {
		t.Fatalf("want 5 messages, got %d", len(second.Messages))
	}
	sent := model.calls[1]
	if sent[0].Role != domain.RoleSystem || sent[0].Content != "sys" {
		t.Errorf("system message must be first, got %+v", sent[0])
	}
	systems := 0
	for _, m := range sent {
		if m.Role == domain.RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Errorf("want exactly one system message, got %d", systems)
	}
	if len(first.Messages) != 3 {
		t.Errorf("Continue must not modify history, got %d messages", len(first.Messages))
	}
}

type lastNManager struct{ n int }

func (m lastNManager) FitToWindow(messages []domain.Message, systemPrompt string) ([]domain.Message, error) {
	if len(messages) <= m.n {
		return messages, nil
	}
	return messages[len(messages)-m.n:], nil
}

func TestRun_WithContextManager_ShouldTrimOnlyWhatIsSent(t *testing.T) {
	model := &scriptedModel{replies: []domain.Message{answer("a"), answer("b")}}
	l := NewLoop(model, newRegistry(t), WithSystemPrompt("sys"), WithContextManager(lastNManager{n: 1}))

	first, _ := l.Run(context.Background(), "um")
	second, err := l.Continue(context.Background(), first.Messages, "dois")
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	sent := model.calls[1]
	if len(sent) != 2 || sent[0].Role != domain.RoleSystem || sent[1].Content != "dois" {
		t.Errorf("want [system, dois], got %+v", sent)
	}
	if len(second.Messages) != 5 {
		t.Errorf("conversation state must not be trimmed, got %d messages", len(second.Messages))
	}
}

func TestRun_WithTranscript_ShouldEmitEveryMessageInOrder(t *testing.T) {
	model := &scriptedModel{replies: []domain.Message{
		requestTools(req("c1", "echo", domain.Args{"text": "x"})),
		answer("ok"),
	}}
	sink := &recordingSink{err: errors.New("ignored")}
	l := NewLoop(model, newRegistry(t), WithSystemPrompt("sys"), WithTranscript(sink, nil), WithLogger(discardLogger()))

	out, err := l.Run(context.Background(), "go")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(sink.msgs) != len(out.Messages) {
		t.Fatalf("want %d emitted messages, got %d", len(out.Messages), len(sink.msgs))
	}
	for i := range sink.msgs {
		if sink.msgs[i].Role != out.Messages[i].Role || sink.msgs[i].Content != out.Messages[i].Content {
			t.Errorf("message %d differs: %+v vs %+v", i, sink.msgs[i], out.Messages[i])
		}
	}
}

func TestState_String(t *testing.T) {
	tests := map[state]string{
		awaitingModel:         "awaiting_model",
		awaitingToolExecution: "awaiting_tool_execution",
		done:                  "done",
		state(99):             "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("state %d: want %s, got %s", s, want, got)
		}
	}
}
