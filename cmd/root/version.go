package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quayside-cd/quayside/app"
)

func newCmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		// The root PersistentPreRunE builds the full app; version needs
		// none of it.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(app.Version)
			return nil
		},
	}
}
