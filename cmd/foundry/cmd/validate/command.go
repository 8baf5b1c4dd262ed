// Package validate provides the validate command.
package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentstation/foundry"
	"github.com/agentstation/foundry/internal/appcontext"
	"github.com/agentstation/foundry/internal/cmd/output"
	"github.com/agentstation/foundry/pkg/logging"
	"github.com/agentstation/foundry/pkg/records"
)

// NewCommand creates the validate command using app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:     "validate [manifest]",
		GroupID: "core",
		Short:   "Check a manifest without contacting the catalogue",
		Args:    cobra.MaximumNArgs(1),
		Long: `Validate loads a manifest and normalizes every record the way ingest
would, reporting the records that are incomplete or malformed. References
between records are not resolved, so no catalogue access is needed.`,
		Example: `  foundry validate manifest.yaml
  foundry validate staging/ -o json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var source string
			if len(args) == 1 {
				source = args[0]
			}
			return Execute(cmd, app, source)
		},
	}
}

// Summary is the machine-readable form of a validation report.
type Summary struct {
	Valid    map[records.ObjectType]int `json:"valid"`
	Invalid  []Problem                  `json:"invalid"`
	Excluded []string                   `json:"excluded,omitempty"`
}

// Problem describes one invalid record.
type Problem struct {
	Type   records.ObjectType `json:"type"`
	Name   string             `json:"name"`
	Source string             `json:"source,omitempty"`
	Error  string             `json:"error"`
}

// Summarize converts a report for JSON and YAML output.
func Summarize(r *foundry.Report) Summary {
	s := Summary{Valid: r.Valid, Invalid: []Problem{}, Excluded: r.Excluded}
	for _, inv := range r.Invalid {
		s.Invalid = append(s.Invalid, Problem{Type: inv.Type, Name: inv.Name, Source: inv.Source, Error: inv.Err.Error()})
	}
	return s
}

// Execute validates source and prints the report.
func Execute(cmd *cobra.Command, app appcontext.Interface, source string) error {
	f, err := app.Foundry()
	if err != nil {
		return err
	}

	ctx := logging.WithLogger(cmd.Context(), app.Logger())
	report, err := f.Validate(ctx, source)
	if err != nil {
		return err
	}

	format := output.DetectFormat(app.OutputFormat())
	var data any = Summarize(report)
	if format.IsTable() {
		data = output.ReportTable(report)
	}
	if err := output.NewFormatter(format).Format(cmd.OutOrStdout(), data); err != nil {
		return err
	}

	valid := 0
	for _, n := range report.Valid {
		valid += n
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%d valid, %d invalid, %d excluded\n", valid, len(report.Invalid), len(report.Excluded))

	if !report.OK() {
		return fmt.Errorf("manifest has %d invalid records", len(report.Invalid))
	}
	return nil
}
