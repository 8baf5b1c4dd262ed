// Package raid provides the raid command and its subcommands.
package raid

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/foundry/internal/appcontext"
	"github.com/agentstation/foundry/internal/cmd/output"
	"github.com/agentstation/foundry/pkg/logging"
)

// NewCommand creates the raid command group.
func NewCommand(app appcontext.Interface) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "raid",
		GroupID: "management",
		Short:   "Manage research activity identifiers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(NewAssignCommand(app))
	return cmd
}

// NewAssignCommand creates the raid assign subcommand.
func NewAssignCommand(app appcontext.Interface) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "assign <manifest>",
		Short: "Mint RAiDs for projects and experiments that lack one",
		Long: `Assign mints a RAiD for every project and experiment in the manifest
without a persistent identifier. Handles are remembered in the local
identifier store, so a record that was minted before is given the same
handle again instead of a new one.`,
		Example: `  foundry raid assign manifest.yaml --out staged/`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := app.Foundry()
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(cmd.Context(), app.Logger())
			assignment, err := f.AssignRAiDs(ctx, args[0], out)
			if err != nil {
				return err
			}

			format := output.DetectFormat(app.OutputFormat())
			var data any = assignment
			if format.IsTable() {
				data = output.Data{
					Headers: []string{"minted", "reused", "present"},
					Rows: [][]string{{
						fmt.Sprint(assignment.Minted),
						fmt.Sprint(assignment.Reused),
						fmt.Sprint(assignment.Present),
					}},
				}
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "directory the updated manifest is written to, in the directory layout (default: only record handles in the store)")
	return cmd
}
