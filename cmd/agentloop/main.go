// Command agentloop runs a tool-calling agent and a two-stage function router
// against a configurable chat model.
package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"agentloop/internal/cli"
)

// buildMeta holds version and build metadata (injectable via ldflags).
type buildMeta struct {
	Version string
	GoOS    string
	GoArch  string
}

func newBuildMeta(version, goos, goarch string) buildMeta {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return buildMeta{Version: version, GoOS: goos, GoArch: goarch}
}

func (m buildMeta) String() string {
	return fmt.Sprintf("agentloop %s %s/%s", m.Version, m.GoOS, m.GoArch)
}

func newRootCommand(bm buildMeta) *cobra.Command {
	root := &cobra.Command{
		Use:           "agentloop",
		Short:         "Tool-calling agent and function router",
		Long:          "agentloop drives a chat model through tool calls until it answers, and routes free text to catalog operations.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), bm.String())
				return nil
			}
			return cmd.Help()
		},
	}
	root.Flags().BoolP("version", "V", false, "print version and build metadata")
	root.PersistentFlags().String("config", "", "config file (default $AGENTLOOP_CONFIG or agentloop.json)")
	root.PersistentFlags().String("env-file", ".env", "dotenv file with provider API keys")

	root.AddCommand(newAskCommand(), newChatCommand(), newRouteCommand(), newToolsCommand(), newCatalogCommand(), newTranscriptCommand())

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check config, model providers, API keys and catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checkArgs := []string{"agentloop", "check"}
			if fix, _ := cmd.Flags().GetBool("fix"); fix {
				checkArgs = append(checkArgs, "--fix")
			}
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				checkArgs = append(checkArgs, "--config", path)
			}
			if err := loadDotEnv(cmd); err != nil {
				return err
			}
			code := cli.RunCheck(checkArgs, cmd.OutOrStdout(), cmd.ErrOrStderr())
			if code != 0 {
				return exitCodeErr(code)
			}
			return nil
		},
	}
	checkCmd.Flags().Bool("fix", false, "write default config if missing")
	root.AddCommand(checkCmd)

	configCmd := &cobra.Command{Use: "config", Short: "Get, set or unset config values by dotted path (e.g. agent.maxSteps)"}
	configCmd.AddCommand(
		&cobra.Command{Use: "get <path>", Short: "Print a config value", Args: cobra.ExactArgs(1), RunE: runConfigAction("get")},
		&cobra.Command{Use: "set <path> <value>", Short: "Set a config value", Args: cobra.ExactArgs(2), RunE: runConfigAction("set")},
		&cobra.Command{Use: "unset <path>", Short: "Remove a config value", Args: cobra.ExactArgs(1), RunE: runConfigAction("unset")},
	)
	root.AddCommand(configCmd)

	return root
}

func runConfigAction(action string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		opts := cli.ConfigOptions{ConfigPath: path, Action: action, Path: args[0]}
		if len(args) > 1 {
			opts.Value = args[1]
		}
		if code := cli.RunConfig(opts, cmd.OutOrStdout(), cmd.ErrOrStderr()); code != 0 {
			return exitCodeErr(code)
		}
		return nil
	}
}

func getVersion() string {
	if version != "" {
		return version
	}
	b, err := os.ReadFile("VERSION")
	if err != nil {
		return "dev"
	}
	return strings.TrimSpace(string(b))
}

// version is set at build time via ldflags for build metadata, e.g.:
//   go build -ldflags "-X main.version=0.3.0" -o agentloop ./cmd/agentloop
var version string

// exitCodeErr carries an exit code for the process. When returned from a command, runApp exits with that code.
type exitCodeErr int

func (e exitCodeErr) Error() string { return fmt.Sprintf("exit %d", int(e)) }
func (e exitCodeErr) ExitCode() int { return int(e) }

// stderr is where runApp reports errors; tests replace it.
var stderr interface{ Write([]byte) (int, error) } = os.Stderr

// runApp runs the root command with the given args and returns the exit code.
func runApp(args []string) int {
	bm := newBuildMeta(version, "", "")
	if bm.Version == "" {
		bm.Version = getVersion()
	}
	root := newRootCommand(bm)
	root.SetArgs(args[1:])
	if err := root.Execute(); err != nil {
		var ec interface{ ExitCode() int }
		if errors.As(err, &ec) {
			return ec.ExitCode()
		}
		fmt.Fprintln(stderr, "agentloop:", err)
		return 1
	}
	return 0
}
