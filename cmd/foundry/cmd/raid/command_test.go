package raid

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry"
	"github.com/agentstation/foundry/internal/appcontext"
)

func TestAssign(t *testing.T) {
	var source, dest string
	f := &appcontext.MockFoundry{
		AssignFunc: func(_ context.Context, src, d string) (foundry.Assignment, error) {
			source, dest = src, d
			return foundry.Assignment{Minted: 2, Reused: 1}, nil
		},
	}
	app := &appcontext.Mock{
		FoundryFunc: func() (foundry.Foundry, error) { return f, nil },
		Format:      "json",
	}

	cmd := NewCommand(app)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"assign", "in.yaml", "--out", "staged"})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.Equal(t, "in.yaml", source)
	assert.Equal(t, "staged", dest)
	assert.Contains(t, out.String(), `"Minted": 2`)
}

func TestAssign_RequiresManifest(t *testing.T) {
	cmd := NewCommand(&appcontext.Mock{})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"assign"})
	assert.Error(t, cmd.ExecuteContext(context.Background()))
}
