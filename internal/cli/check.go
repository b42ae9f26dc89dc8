package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"agentloop/internal/agent"
	"agentloop/internal/config"
	"agentloop/internal/domain"
	"agentloop/internal/llm"
	"agentloop/internal/retry"
)

// CheckOptions holds options for the check command.
type CheckOptions struct {
	ConfigPath string // empty resolves via config.ResolvePath
	Fix        bool   // if true, write default config when missing
}

// RunCheck runs the check subcommand: loads the config, then checks the model
// providers and their API keys, the operation catalog, the context window
// tokenizer and the retry policy. Returns 1 when any problem was found.
func RunCheck(args []string, stdout, stderr io.Writer) int {
	opts := parseCheckOptions(args)
	cfgPath := config.ResolvePath(opts.ConfigPath)
	problems := 0

	note := func(section, message string) {
		fmt.Fprintf(stdout, "  [%s] %s\n", section, message)
	}
	problem := func(section, message string) {
		problems++
		note(section, message)
	}

	// 1. Config
	cfg, err := configLoad(cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			note("Config", err.Error())
			return 1
		}
		note("Config", fmt.Sprintf("No config at %s.", cfgPath))
		if opts.Fix {
			if writeErr := configWriteDefault(cfgPath); writeErr != nil {
				fmt.Fprintf(stderr, "  failed to write default config: %v\n", writeErr)
				return 1
			}
			note("Config", fmt.Sprintf("Wrote default config to %s.", cfgPath))
		} else {
			note("Config", "Run with --fix to create a default "+config.DefaultPath+". Using defaults.")
		}
		cfg = config.Default()
		config.ApplyEnv(cfg)
	} else {
		note("Config", fmt.Sprintf("Loaded %s.", cfgPath))
	}

	// 2. Models
	for _, m := range []struct {
		section string
		model   domain.ModelConfig
	}{{"Agent", cfg.Agent.Model}, {"Router", cfg.Router.Model}} {
		if msg, ok := checkModel(m.model); ok {
			note(m.section, msg)
		} else {
			problem(m.section, msg)
		}
	}
	steps := cfg.Agent.MaxSteps
	if steps <= 0 {
		steps = agent.DefaultMaxSteps
	}
	note("Agent", fmt.Sprintf("maxSteps=%d timeoutSeconds=%d failOnToolError=%t", steps, cfg.Agent.TimeoutSeconds, cfg.Agent.FailOnToolError))
	if strings.TrimSpace(cfg.Agent.SystemPrompt) == "" {
		note("Agent", "No system prompt configured.")
	}

	// 3. Catalog
	if cfg.Router.CatalogPath == "" {
		note("Router", "Using the built-in operation catalog.")
	} else if cat, err := loadCatalog(cfg.Router.CatalogPath); err != nil {
		problem("Router", err.Error())
	} else {
		note("Router", fmt.Sprintf("catalog %s ok (%d operations).", cfg.Router.CatalogPath, cat.Len()))
	}

	// 4. Context window
	if cw := cfg.Agent.ContextWindow; cw.MaxTokens > 0 {
		if tok, err := newTokenizer(cw.Encoding, cfg.Agent.Model.Model); err != nil {
			problem("Context", fmt.Sprintf("encoding %q: %v", cw.Encoding, err))
		} else {
			note("Context", fmt.Sprintf("window %d tokens (%s).", cw.MaxTokens, tokenizerName(tok, cw.Encoding)))
		}
	}

	// 5. Retry
	rc := retry.FromDomain(cfg.Retry)
	if err := rc.Validate(); err != nil {
		problem("Retry", err.Error())
	} else if rc.MaxRetries > 0 {
		note("Retry", fmt.Sprintf("maxRetries=%d multiplier=%g backoff=%s..%s", rc.MaxRetries, rc.Multiplier, rc.InitialBackoff, rc.MaxBackoff))
	}

	if problems > 0 {
		fmt.Fprintf(stdout, "  Check found %d problem(s).\n", problems)
		return 1
	}
	fmt.Fprintln(stdout, "  Check complete.")
	return 0
}

// checkModel describes a model selection and reports whether it is usable.
func checkModel(m domain.ModelConfig) (string, bool) {
	provider := strings.TrimSpace(m.Provider)
	if provider == "" {
		provider = "local"
	}
	if !llm.KnownProvider(provider) {
		return fmt.Sprintf("unknown provider %q (use: %s).", provider, strings.Join(llm.Providers, ", ")), false
	}
	desc := "provider=" + provider
	if m.Model != "" {
		desc += " model=" + m.Model
	}
	name, keyed := llm.SecretName(provider)
	if keyed && strings.TrimSpace(getenv(name)) == "" {
		return desc + ": " + name + " is not set.", false
	}
	return desc + " ok.", true
}

func parseCheckOptions(args []string) CheckOptions {
	var opts CheckOptions
	for i := 0; i < len(args); i++ {
		switch a := args[i]; {
		case a == "--fix" || a == "-fix":
			opts.Fix = true
		case a == "--config" && i+1 < len(args):
			opts.ConfigPath = args[i+1]
			i++
		case strings.HasPrefix(a, "--config="):
			opts.ConfigPath = strings.TrimPrefix(a, "--config=")
		}
	}
	return opts
}

// tokenizerName reports the encoding actually chosen when the tokenizer can say.
func tokenizerName(tok domain.Tokenizer, fallback string) string {
	if n, ok := tok.(interface{ Name() string }); ok {
		return n.Name()
	}
	return fallback
}
