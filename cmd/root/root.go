// Package root implements the quayside command line interface.
package root

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/quayside-cd/quayside/app"
	"github.com/quayside-cd/quayside/cmd/output"
	"github.com/quayside-cd/quayside/config"
	"github.com/quayside-cd/quayside/logging"
)

// cliContext carries the assembled application into subcommands. It is
// populated once in the root PersistentPreRunE.
type cliContext struct {
	config *config.Config
	app    *app.App
}

func Execute() {
	if err := NewCmdRoot().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCmdRoot() *cobra.Command {
	ctx := &cliContext{}
	var dataDir string

	cmd := &cobra.Command{
		Use:   "quayside",
		Short: "Deployment engine for generated applications",
		Long: `Quayside publishes a generated set of application files to a hosting
provider (Netlify, Vercel, or a local archive fallback), optionally backed by
a GitHub source repository, with progress tracking and graceful fallback.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewConfigForCLI(dataDir)
			if err != nil {
				log.Fatalf("Failed to initialize configuration: %s", err)
			}

			// Initialize colors (CLI flag overrides config)
			colorDisabled := !cfg.ColorEnabled
			if output.NoColor.IsSet() {
				colorDisabled = true
			}
			output.InitColors(colorDisabled)

			// Initialize logging (CLI flag overrides config)
			logLevel := cfg.LogLevel
			if logging.LogLevel.IsSet() {
				logLevel = logging.LogLevel.String()
			}
			logging.InitLogging(logLevel)

			a, err := app.New(cfg)
			if err != nil {
				log.Fatalf("Failed to initialize application: %s", err)
			}

			ctx.config = cfg
			ctx.app = a
			return nil
		},
	}

	cmd.PersistentFlags().
		StringVarP(&dataDir, "data-dir", "d", "", "Data directory for quayside state (defaults to XDG data home)")
	cmd.PersistentFlags().VarP(logging.LogLevel, "log-level", "l", "Set log verbosity level")
	cmd.PersistentFlags().VarP(output.NoColor, "no-color", "c", "Disable colored terminal output")

	cmd.AddCommand(newCmdServer(ctx))
	cmd.AddCommand(newCmdDeploy(ctx))
	cmd.AddCommand(newCmdStatus(ctx))
	cmd.AddCommand(newCmdDeployments(ctx))
	cmd.AddCommand(newCmdVersion())
	return cmd
}
