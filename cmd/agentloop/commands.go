package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"agentloop/internal/agent"
	"agentloop/internal/domain"
	"agentloop/internal/router"
	"agentloop/internal/tooling"
	"agentloop/internal/transcript"
)

// exitStepBudget is the exit code of a run stopped by its step or time budget.
const exitStepBudget = 2

func addLoopFlags(cmd *cobra.Command) {
	cmd.Flags().String("system-file", "", "read the system prompt from this file")
	cmd.Flags().Int("max-steps", 0, "cap model calls per run (0 uses the config)")
	cmd.Flags().String("transcript", "", "append every message to this JSONL file")
	cmd.Flags().Bool("trace", false, "print each message as it is added to the conversation")
}

// loopFlags reads the flags added by addLoopFlags. trace prints to out.
func loopFlags(cmd *cobra.Command, out io.Writer) (loopSettings, bool) {
	var s loopSettings
	s.systemFile, _ = cmd.Flags().GetString("system-file")
	s.maxSteps, _ = cmd.Flags().GetInt("max-steps")
	if path, _ := cmd.Flags().GetString("transcript"); path != "" {
		s.sinks = append(s.sinks, transcript.NewJSONLWriter(path))
	}
	trace, _ := cmd.Flags().GetBool("trace")
	if trace {
		s.sinks = append(s.sinks, transcript.NewPrinter(out))
	}
	return s, trace
}

func newAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Run the agent once and print the conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	addLoopFlags(cmd)
	cmd.Flags().BoolP("quiet", "q", false, "print only the final answer")
	return cmd
}

func runAsk(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	settings, trace := loopFlags(cmd, out)
	quiet, _ := cmd.Flags().GetBool("quiet")

	ctx, cancel := commandContext(cmd)
	defer cancel()
	loop, model, err := e.buildLoop(ctx, settings)
	if err != nil {
		return err
	}
	defer closeModel(model)

	outcome, runErr := loop.Run(ctx, strings.Join(args, " "))
	if outcome != nil {
		switch {
		case quiet:
			if outcome.Status == agent.StatusDone {
				fmt.Fprintln(out, outcome.Final)
			}
		case !trace:
			if err := transcript.Render(out, outcome.Messages); err != nil {
				return err
			}
		}
	}
	return runError(cmd, runErr)
}

// runError maps a loop error to the command result. A spent budget exits
// with exitStepBudget after the partial conversation was shown.
func runError(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, agent.ErrStepBudgetExceeded) {
		fmt.Fprintln(cmd.ErrOrStderr(), "agentloop:", err)
		return exitCodeErr(exitStepBudget)
	}
	return err
}

func newChatCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the agent turn by turn; history lives only in this session",
		Args:  cobra.NoArgs,
		RunE:  runChat,
	}
	addLoopFlags(cmd)
	return cmd
}

func runChat(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	settings, trace := loopFlags(cmd, out)

	ctx, cancel := commandContext(cmd)
	defer cancel()
	loop, model, err := e.buildLoop(ctx, settings)
	if err != nil {
		return err
	}
	defer closeModel(model)

	fmt.Fprintln(out, "Type a message. /reset clears the conversation, /exit quits.")
	var history []domain.Message
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit", "exit", "quit":
			return nil
		case "/reset":
			history = nil
			fmt.Fprintln(out, "(conversation cleared)")
			continue
		}

		outcome, runErr := loop.Continue(ctx, history, line)
		if outcome != nil {
			history = outcome.Messages
			if outcome.Status == agent.StatusDone && !trace {
				fmt.Fprintln(out, outcome.Final)
			}
		}
		if runErr != nil {
			if ctx.Err() != nil {
				return runErr
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "agentloop:", runErr)
		}
	}
}

func newRouteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route [text]",
		Short: "Pick the catalog operation a request calls for and extract its parameters",
		RunE:  runRoute,
	}
	cmd.Flags().Bool("demo", false, "route the built-in sample requests")
	return cmd
}

func runRoute(cmd *cobra.Command, args []string) error {
	demo, _ := cmd.Flags().GetBool("demo")
	var inputs []string
	switch {
	case demo:
		inputs = router.DemoInputs
	case len(args) > 0:
		inputs = []string{strings.Join(args, " ")}
	default:
		return errors.New("route: give a request text or --demo")
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()
	r, model, err := e.buildRouter(ctx)
	if err != nil {
		return err
	}
	defer closeModel(model)

	out := cmd.OutOrStdout()
	for _, input := range inputs {
		fmt.Fprintln(out, "input:", input)
		d, err := r.Route(ctx, input)
		if err != nil {
			if !demo || ctx.Err() != nil {
				return err
			}
			fmt.Fprintln(out, "error:", err)
			fmt.Fprintln(out, "----")
			continue
		}
		if err := writeDecision(out, d); err != nil {
			return err
		}
		fmt.Fprintln(out, "----")
	}
	return nil
}

// writeDecision prints UNKNOWN or the proposed call as JSON, followed by any
// parameters that failed validation.
func writeDecision(w io.Writer, d *router.Decision) error {
	if d.Result == nil {
		_, err := fmt.Fprintln(w, router.Unknown)
		return err
	}
	b, err := json.MarshalIndent(d.Result, "", "  ")
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, string(b)); err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(d.Result.Rejected)) {
		fmt.Fprintf(w, "rejected %s: %s\n", name, d.Result.Rejected[name])
	}
	return nil
}

func newToolsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "Print the schemas of the registered tools as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := tooling.NewRegistry()
			if err := tooling.RegisterDefaults(registry); err != nil {
				return err
			}
			b, err := json.MarshalIndent(registry.Schemas(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return nil
		},
	}
}

func newCatalogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Print the router's operation catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			catalog := router.DefaultCatalog()
			if e.cfg.Router.CatalogPath != "" {
				if catalog, err = router.LoadCatalog(e.cfg.Router.CatalogPath); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			for _, op := range catalog.Operations() {
				fmt.Fprintf(out, "%s: %s\n", op.Name, op.Description)
				for _, p := range op.Parameters {
					if p.Description != "" {
						fmt.Fprintf(out, "  - %s (%s): %s\n", p.Name, p.Type, p.Description)
					} else {
						fmt.Fprintf(out, "  - %s (%s)\n", p.Name, p.Type)
					}
				}
			}
			return nil
		},
	}
	return cmd
}

func newTranscriptCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transcript <file.jsonl>",
		Short: "Render a JSONL transcript written with --transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, _ := cmd.Flags().GetInt("last")
			msgs, err := transcript.ReadJSONL(args[0], n)
			if err != nil {
				return err
			}
			if len(msgs) == 0 {
				return fmt.Errorf("transcript: no messages in %s", args[0])
			}
			return transcript.Render(cmd.OutOrStdout(), msgs)
		},
	}
	cmd.Flags().IntP("last", "n", 0, "show only the last n messages (0 shows all)")
	return cmd
}
