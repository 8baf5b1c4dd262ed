// Package introspect provides the introspect command.
package introspect

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/foundry/internal/appcontext"
	"github.com/agentstation/foundry/internal/cmd/output"
	"github.com/agentstation/foundry/pkg/logging"
)

// NewCommand creates the introspect command using app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "introspect",
		GroupID: "management",
		Short:   "Show the catalogue's feature switches",
		Long: `Introspect queries the catalogue for the features that shape ingestion:
whether projects are enabled, and which object types carry identifiers
and storage profiles. The ingestion.projects_enabled setting overrides
the reported project switch.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := app.Foundry()
			if err != nil {
				return err
			}
			intro, err := f.Introspect(logging.WithLogger(cmd.Context(), app.Logger()))
			if err != nil {
				return err
			}

			format := output.DetectFormat(app.OutputFormat())
			var data any = intro
			if format.IsTable() {
				data = output.IntrospectionTable(intro)
			}
			return output.NewFormatter(format).Format(cmd.OutOrStdout(), data)
		},
	}
}
