package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"

	"github.com/spf13/cobra"

	"agentloop/internal/agent"
	"agentloop/internal/config"
	ctxmgr "agentloop/internal/context"
	"agentloop/internal/domain"
	"agentloop/internal/llm"
	"agentloop/internal/logging"
	"agentloop/internal/retry"
	"agentloop/internal/router"
	"agentloop/internal/signals"
	"agentloop/internal/tokenizer"
	"agentloop/internal/tooling"
)

// Injectable constructors; tests replace them to script the model or avoid
// network-bound tokenizer downloads.
var (
	newChatModel = llm.NewChatModel
	newTokenizer = func(encoding, model string) (domain.Tokenizer, error) { return tokenizer.ForWindow(encoding, model) }
	loadConfig   = config.LoadOrDefault
)

// env is what every command needs: the resolved configuration and a logger.
type env struct {
	cfg    *domain.Config
	logger *slog.Logger
}

func loadDotEnv(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}
	return config.LoadDotEnv(path)
}

// setup loads .env and the config file, and builds the logger on stderr.
func setup(cmd *cobra.Command) (*env, error) {
	if err := loadDotEnv(cmd); err != nil {
		return nil, err
	}
	flagPath, _ := cmd.Flags().GetString("config")
	path := config.ResolvePath(flagPath)
	cfg, found, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cmd.ErrOrStderr(), cfg.Infra)
	if !found {
		logger.Debug("no config file, using defaults", "path", path)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// commandContext is cancelled by Ctrl-C or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, signals.ShutdownSignals()...)
}

// closeModel releases models that hold a client connection.
func closeModel(m domain.ChatModel) {
	if c, ok := m.(io.Closer); ok {
		_ = c.Close()
	}
}

// loopSettings are per-invocation overrides from command flags.
type loopSettings struct {
	systemFile string
	maxSteps   int
	sinks      []domain.TranscriptSink
}

// buildLoop wires the agent loop from configuration: model, default tools,
// retry policy, optional context window and transcript sinks.
func (e *env) buildLoop(ctx context.Context, s loopSettings) (*agent.Loop, domain.ChatModel, error) {
	ac := e.cfg.Agent
	if s.systemFile != "" {
		prompt, err := agent.LoadSystemPrompt(s.systemFile)
		if err != nil {
			return nil, nil, err
		}
		ac.SystemPrompt = prompt
	}
	if s.maxSteps > 0 {
		ac.MaxSteps = s.maxSteps
	}

	model, err := newChatModel(ctx, ac.Model, nil)
	if err != nil {
		return nil, nil, err
	}
	registry := tooling.NewRegistry()
	if err := tooling.RegisterDefaults(registry); err != nil {
		closeModel(model)
		return nil, nil, err
	}

	rc := retry.FromDomain(e.cfg.Retry)
	if err := rc.Validate(); err != nil {
		closeModel(model)
		return nil, nil, err
	}
	opts := append(agent.ConfigOptions(ac),
		agent.WithLogger(e.logger),
		agent.WithRetryPolicy(retry.NewPolicy(rc)),
		agent.WithTranscript(s.sinks...),
	)
	if cw := ac.ContextWindow; cw.MaxTokens > 0 {
		tok, err := newTokenizer(cw.Encoding, ac.Model.Model)
		if err != nil {
			closeModel(model)
			return nil, nil, fmt.Errorf("context window: %w", err)
		}
		opts = append(opts, agent.WithContextManager(ctxmgr.NewManager(tok, cw.MaxTokens)))
	}
	e.logger.Debug("agent ready", "provider", ac.Model.Provider, "model", ac.Model.Model, "tools", registry.Names(), "max_steps", ac.MaxSteps)
	return agent.NewLoop(model, registry, opts...), model, nil
}

// buildRouter wires the router model and catalog from configuration.
func (e *env) buildRouter(ctx context.Context) (*router.Router, domain.ChatModel, error) {
	rc := e.cfg.Router
	catalog := router.DefaultCatalog()
	if rc.CatalogPath != "" {
		var err error
		if catalog, err = router.LoadCatalog(rc.CatalogPath); err != nil {
			return nil, nil, err
		}
	}
	model, err := newChatModel(ctx, rc.Model, nil)
	if err != nil {
		return nil, nil, err
	}
	r := router.NewRouter(model, catalog,
		router.WithLogger(e.logger),
		router.WithParameterValidation(rc.ValidateParameters),
	)
	return r, model, nil
}
