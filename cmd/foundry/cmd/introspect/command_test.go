package introspect

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry"
	"github.com/agentstation/foundry/internal/appcontext"
)

func TestIntrospect(t *testing.T) {
	f := &appcontext.MockFoundry{
		IntrospectFunc: func(context.Context) (foundry.Introspection, error) {
			return foundry.Introspection{
				ProjectsEnabled:    true,
				IdentifiersEnabled: true,
				IdentifiedObjects:  []string{"project", "dataset"},
			}, nil
		},
	}
	app := &appcontext.Mock{
		FoundryFunc: func() (foundry.Foundry, error) { return f, nil },
		Format:      "table",
	}

	cmd := NewCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.ExecuteContext(context.Background()))
	assert.Contains(t, out.String(), "dataset, project")
	assert.Contains(t, out.String(), "projects_enabled")
}
