// Package main provides the salesagent CLI application entry point.
// salesagent runs tool-augmented sales conversations with leads, interactively or from scripts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"salesagent/internal/logger"
	"salesagent/internal/version"
)

// globalOptions holds the persistent flags shared by every subcommand.
type globalOptions struct {
	configFile string
	logLevel   string
	logFile    string
	testMode   bool
	provider   string
	model      string
	mock       bool
	plain      bool
	debugHTTP  bool

	v *viper.Viper
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree with its own viper instance.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "salesagent",
		Short: "salesagent - tool-augmented sales dialogue agent",
		Long: `salesagent holds multi-turn sales conversations with leads. Each turn the agent reasons
over the conversation, searches company knowledge, tracks the sales stage and replies.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return initConfig(opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "Path to agent.yaml [default: ./agent.yaml or ~/.config/salesagent/agent.yaml]")
	flags.StringVar(&opts.logLevel, "log-level", "", "Set log level (debug|info|warn|error) [default: info]")
	flags.StringVar(&opts.logFile, "log-file", "", "Write logs to file instead of stderr")
	flags.BoolVar(&opts.testMode, "test-mode", false, "Run in deterministic test mode")
	flags.StringVar(&opts.provider, "provider", "", "LLM provider (openai|anthropic|gemini|mock)")
	flags.StringVar(&opts.model, "model", "", "Model identifier for the provider")
	flags.BoolVar(&opts.mock, "mock", false, "Use the offline demo model instead of a provider")
	flags.BoolVar(&opts.plain, "plain", false, "Print replies without markdown rendering")
	flags.BoolVar(&opts.debugHTTP, "debug-http", false, "Log provider HTTP exchanges at debug level")

	bindings := map[string]string{
		"log-level":      "log-level",
		"log-file":       "log-file",
		"test_mode":      "test-mode",
		"model.provider": "provider",
		"model.model":    "model",
	}
	for key, flag := range bindings {
		if err := opts.v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", flag, err)
			os.Exit(1)
		}
	}

	rootCmd.AddCommand(
		newChatCmd(opts),
		newRunCmd(opts),
		newExportCmd(opts),
		newLeadCmd(opts),
		newReplayCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// initConfig configures the logger before any command runs.
func initConfig(opts *globalOptions) error {
	if err := logger.Configure(opts.logLevel, opts.logFile, opts.testMode); err != nil {
		return fmt.Errorf("error configuring logger: %w", err)
	}
	if opts.mock {
		opts.v.Set("model.provider", "mock")
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	var detailed bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if detailed {
				fmt.Fprintln(cmd.OutOrStdout(), version.GetDetailedVersion())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.GetFormattedVersion())
			return nil
		},
	}
	cmd.Flags().BoolVar(&detailed, "detailed", false, "Show build details")
	return cmd
}
