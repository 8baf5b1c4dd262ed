// Package ingest provides the ingest command.
package ingest

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/foundry/internal/appcontext"
	"github.com/agentstation/foundry/internal/cmd/output"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/logging"
	pkgingest "github.com/agentstation/foundry/pkg/ingest"
	"github.com/agentstation/foundry/pkg/records"
)

// Flags holds the ingest command flags.
type Flags struct {
	DryRun      bool
	Overwrite   bool
	Concurrency int
	Timeout     time.Duration
	Types       []string
	NoTransfer  bool
	Result      string
}

// NewCommand creates the ingest command using app context.
func NewCommand(app appcontext.Interface) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "ingest [manifest]",
		GroupID: "core",
		Short:   "Ingest a manifest into the catalogue",
		Args:    cobra.MaximumNArgs(1),
		Long: `Ingest reads a manifest of projects, experiments, datasets and datafiles
and creates whatever the catalogue does not already hold.

Objects are processed in dependency order. An object that conflicts with
an existing catalogue entry is blocked, and so is every child left without
an unblocked parent. Running the same manifest twice creates nothing new.

The manifest is a YAML or JSON file, or a directory with source.json and
one JSON file per record. Without an argument general.source_directory is used.`,
		Example: `  foundry ingest manifest.yaml               # Ingest a manifest
  foundry ingest manifest.yaml --dry-run     # Rehearse without writing
  foundry ingest staging/ --types project    # Projects only
  foundry ingest manifest.yaml -o wide       # List every object`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var source string
			if len(args) == 1 {
				source = args[0]
			}
			return Execute(cmd, app, source, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "resolve and match without writing to the catalogue")
	cmd.Flags().BoolVar(&flags.Overwrite, "overwrite", false, "update identifier-matched objects that differ")
	cmd.Flags().IntVar(&flags.Concurrency, "concurrency", 0, "objects of one type processed at once (default from config)")
	cmd.Flags().DurationVar(&flags.Timeout, "timeout", 0, "abort the run after this long")
	cmd.Flags().StringSliceVar(&flags.Types, "types", nil, "object types to ingest (project, experiment, dataset, datafile)")
	cmd.Flags().BoolVar(&flags.NoTransfer, "no-transfer", false, "skip copying staged datafiles to the storage box")
	cmd.Flags().StringVar(&flags.Result, "result", "", "path of the JSON result dump (default from config)")

	return cmd
}

// Options converts flags to ingest options. Unset flags keep the
// configured defaults.
func (f *Flags) Options(cmd *cobra.Command) ([]pkgingest.Option, error) {
	var opts []pkgingest.Option
	if f.DryRun {
		opts = append(opts, pkgingest.WithDryRun(true))
	}
	if cmd.Flags().Changed("overwrite") {
		opts = append(opts, pkgingest.WithOverwrite(f.Overwrite))
	}
	if f.Concurrency != 0 {
		opts = append(opts, pkgingest.WithConcurrency(f.Concurrency))
	}
	if f.Timeout > 0 {
		opts = append(opts, pkgingest.WithTimeout(f.Timeout))
	}
	if len(f.Types) > 0 {
		types := make([]records.ObjectType, 0, len(f.Types))
		for _, s := range f.Types {
			t, err := records.ParseObjectType(s)
			if err != nil {
				return nil, errors.NewValidationError("types", s, err.Error())
			}
			types = append(types, t)
		}
		opts = append(opts, pkgingest.WithTypes(types...))
	}
	if f.NoTransfer {
		opts = append(opts, pkgingest.WithTransfer(false))
	}
	if f.Result != "" {
		opts = append(opts, pkgingest.WithResultPath(f.Result))
	}
	return opts, nil
}

// Execute runs an ingestion and prints its result.
func Execute(cmd *cobra.Command, app appcontext.Interface, source string, flags *Flags) error {
	opts, err := flags.Options(cmd)
	if err != nil {
		return err
	}
	f, err := app.Foundry()
	if err != nil {
		return err
	}

	ctx := logging.WithLogger(cmd.Context(), app.Logger())
	result, err := f.Ingest(ctx, source, opts...)
	if result != nil {
		format := output.DetectFormat(app.OutputFormat())
		var data any = result
		if format.IsTable() {
			data = output.ResultTable(result, format == output.FormatWide)
		}
		if ferr := output.NewFormatter(format).Format(cmd.OutOrStdout(), data); ferr != nil {
			return ferr
		}
		fmt.Fprintln(cmd.ErrOrStderr(), result.Summary())
	}
	if err != nil {
		return err
	}
	if result.HasFailures() {
		c := result.Totals()
		return fmt.Errorf("ingestion finished with %d failed and %d blocked objects", c.Error, c.Blocked)
	}
	return nil
}
