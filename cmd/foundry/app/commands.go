package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/foundry/cmd/foundry/cmd/ingest"
	"github.com/agentstation/foundry/cmd/foundry/cmd/introspect"
	"github.com/agentstation/foundry/cmd/foundry/cmd/raid"
	"github.com/agentstation/foundry/cmd/foundry/cmd/validate"
)

// CreateIngestCommand creates the ingest command with app dependencies.
func (a *App) CreateIngestCommand() *cobra.Command {
	return ingest.NewCommand(a)
}

// CreateValidateCommand creates the validate command with app dependencies.
func (a *App) CreateValidateCommand() *cobra.Command {
	return validate.NewCommand(a)
}

// CreateIntrospectCommand creates the introspect command with app dependencies.
func (a *App) CreateIntrospectCommand() *cobra.Command {
	return introspect.NewCommand(a)
}

// CreateRAiDCommand creates the raid command group.
func (a *App) CreateRAiDCommand() *cobra.Command {
	return raid.NewCommand(a)
}

// CreateVersionCommand creates the version command.
func (a *App) CreateVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("foundry %s\n", a.version)
			if a.config.Verbose {
				cmd.Printf("  commit:   %s\n", a.commit)
				cmd.Printf("  built:    %s\n", a.date)
				cmd.Printf("  built by: %s\n", a.builtBy)
			}
		},
	}
}
