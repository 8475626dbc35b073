package cli

import (
	"io"

	"github.com/sarega/promptprim/internal/config"
	"github.com/sarega/promptprim/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile  string
	logLevel string

	// loaded at init time
	paths     config.Paths
	log       *logging.Logger
	logCloser io.Closer
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promptprim",
		Short: "PromptPrim: multi-agent chat over OpenRouter and Ollama",
		Long: "PromptPrim runs conversations with one or more LLM agents, either directly " +
			"from the terminal or through a WebSocket gateway.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			level := logLevel
			if level == "" {
				level = "warn"
			}
			log, logCloser, err = logging.NewWithFile("", level)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				logCloser.Close()
			}
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.promptprim/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newModelsCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newGroupCmd())
	cmd.AddCommand(newSummaryCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newGatewayCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
