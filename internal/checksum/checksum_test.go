package checksum

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry/pkg/errors"
)

func TestFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/staging/run1/notes.txt", []byte("hello world\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/staging/run1/image.png", []byte("\x89PNG\r\n\x1a\n0000"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/staging/run1/empty.bin", nil, 0o644))

	tests := []struct {
		name     string
		path     string
		md5      string
		size     int64
		mimetype string
	}{
		{"text", "/staging/run1/notes.txt", "6f5902ac237024bdd0c176cb93063dc4", 12, "text/plain"},
		{"sniffed png", "/staging/run1/image.png", "", 12, "image/png"},
		{"empty", "/staging/run1/empty.bin", "d41d8cd98f00b204e9800998ecf8427e", 0, DefaultMimetype},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := File(fs, tt.path)
			require.NoError(t, err)
			if tt.md5 != "" {
				assert.Equal(t, tt.md5, d.MD5)
			}
			assert.Len(t, d.MD5, 32)
			assert.Equal(t, tt.size, d.Size)
			assert.Equal(t, tt.mimetype, d.Mimetype)
		})
	}
}

func TestFile_Missing(t *testing.T) {
	_, err := File(afero.NewMemMapFs(), "/nope")
	require.Error(t, err)
	var ioErr *errors.IOError
	assert.ErrorAs(t, err, &ioErr)
}

func TestMimetype(t *testing.T) {
	assert.Equal(t, "image/png", Mimetype("scan.png"))
	assert.Equal(t, "application/json", Mimetype("meta.json"))
	assert.Equal(t, DefaultMimetype, Mimetype("raw.zzz"))
}
