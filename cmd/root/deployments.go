package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quayside-cd/quayside/cmd/output"
)

func newCmdDeployments(cliCtx *cliContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deployments <project-id>",
		Short: "List the deployment history of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := cliCtx.app.Projects.ListDeployments(args[0])
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Print(output.PrintMessage(output.Plain, "No deployments for project %s", args[0]))
				return nil
			}

			data := make([][]string, len(records))
			for i, rec := range records {
				data[i] = []string{
					rec.ID,
					rec.Provider,
					rec.Status.String(),
					rec.URL,
					rec.CreatedAt.Format("2006-01-02 15:04:05"),
				}
			}

			rendered, err := output.PrintTable([]string{"ID", "Provider", "Status", "URL", "Created At"}, data)
			if err != nil {
				return err
			}
			fmt.Print(rendered)
			return nil
		},
	}
}
