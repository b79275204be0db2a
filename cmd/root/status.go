package root

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quayside-cd/quayside/cmd/output"
)

func newCmdStatus(cliCtx *cliContext) *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "status <target> <deployment-id>",
		Short: "Poll a provider for the state of a deployment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := cliCtx.app.Orchestrator.GetDeploymentStatus(cmd.Context(), args[0], args[1], tenantID)
			if err != nil {
				return err
			}

			data := [][]string{
				{"ID", status.ID},
				{"Status", status.Status.String()},
			}
			if status.URL != "" {
				data = append(data, []string{"URL", status.URL})
			}
			if status.CompletedAt != nil {
				data = append(data, []string{"Completed At", status.CompletedAt.Format("2006-01-02 15:04:05")})
			}

			rendered, err := output.PrintTable(nil, data)
			if err != nil {
				return err
			}
			fmt.Print(rendered)
			fmt.Print(output.PrintMessage(output.StateColor(status.Status), "Deployment is %s", status.Status))
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant scope for credential resolution")
	return cmd
}
