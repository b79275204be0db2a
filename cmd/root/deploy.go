package root

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quayside-cd/quayside/cmd/output"
	"github.com/quayside-cd/quayside/domain"
	"github.com/quayside-cd/quayside/workflow"
)

func newCmdDeploy(cliCtx *cliContext) *cobra.Command {
	var (
		projectID string
		name      string
		targetName string
		setupRepo bool
		private   bool
		tenantID  string
	)

	cmd := &cobra.Command{
		Use:   "deploy <directory>",
		Short: "Deploy a directory of generated files",
		Long: `Read every file under the given directory and publish the set to the best
available hosting target. Credentials are taken from the environment
(GITHUB_TOKEN, NETLIFY_AUTH_TOKEN, VERCEL_TOKEN and their aliases).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readFileTree(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no files found under %s", args[0])
			}

			if projectID == "" {
				projectID = filepath.Base(args[0])
			}
			if name == "" {
				name = projectID
			}

			result, err := cliCtx.app.Orchestrator.Run(cmd.Context(), workflow.Request{
				ProjectID:         projectID,
				ProjectName:       name,
				Files:             files,
				Target:            targetName,
				SetupRepository:   setupRepo,
				TenantID:          tenantID,
				PrivateRepository: private,
			})
			if err != nil {
				return err
			}

			rendered, err := output.PrintDeploymentResult(result)
			if err != nil {
				return err
			}
			fmt.Print(rendered)

			switch result.Status {
			case domain.DeploymentStateSuccess:
				fmt.Print(output.PrintMessage(output.Success, "Deployment succeeded: %s", result.URL))
			case domain.DeploymentStateInProgress:
				fmt.Print(output.PrintMessage(output.Warning,
					"Deployment accepted, completion is provider-driven. Poll with: quayside status %s %s",
					result.Provider, result.ID))
			default:
				fmt.Print(output.PrintMessage(output.Error, "Deployment failed: %s", result.Error))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectID, "project-id", "p", "", "Stable project identifier (defaults to the directory name)")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name for the project")
	cmd.Flags().StringVarP(&targetName, "target", "t", "", "Deployment target (local, netlify, vercel)")
	cmd.Flags().BoolVar(&setupRepo, "setup-repo", false, "Create a GitHub repository and upload the files before deploying")
	cmd.Flags().BoolVar(&private, "private", false, "Make the created repository private")
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant scope for credential resolution")

	return cmd
}

// readFileTree loads every regular file under root into a path-to-content map
// with forward-slash relative paths. Hidden entries are skipped.
func readFileTree(root string) (map[string]string, error) {
	files := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if base := d.Name(); strings.HasPrefix(base, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(rel)] = string(content)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
