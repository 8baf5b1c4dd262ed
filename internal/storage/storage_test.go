package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/foundry/pkg/errors"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "raw/a.tif", want: "raw/a.tif"},
		{key: "raw//b/../a.tif", want: "raw/a.tif"},
		{key: `raw\a.tif`, want: "raw/a.tif"},
		{key: "", wantErr: true},
		{key: "/etc/passwd", wantErr: true},
		{key: "../outside", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := sanitizeKey(tt.key)
			if tt.wantErr {
				assert.True(t, errors.IsValidationError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileSystemBox(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	box, err := Open(ctx, Config{Name: "vault", Class: ClassFileSystem, TargetRoot: "/store"}, WithFs(fs))
	require.NoError(t, err)
	assert.Equal(t, "vault", box.Name())
	assert.Equal(t, ClassFileSystem, box.Class())

	info, err := box.Stat(ctx, "raw/a.txt")
	require.NoError(t, err)
	assert.False(t, info.Exists)

	require.NoError(t, box.Put(ctx, "raw/a.txt", strings.NewReader("hello"), 5, "text/plain"))

	info, err = box.Stat(ctx, "raw/a.txt")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, int64(5), info.Size)

	data, err := afero.ReadFile(fs, "/store/raw/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	err = box.Put(ctx, "raw/short.txt", strings.NewReader("hi"), 10, "")
	require.Error(t, err)
	exists, _ := afero.Exists(fs, "/store/raw/short.txt")
	assert.False(t, exists, "failed copies leave no replica")
}

func TestOpenRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	_, err := Open(ctx, Config{Name: "x", Class: "tape"})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Name: "x", Class: ClassS3})
	assert.Error(t, err)

	_, err = Open(ctx, Config{Name: "x", Class: ClassFileSystem}, WithFs(afero.NewMemMapFs()))
	assert.Error(t, err)
}

// fakeS3 implements the HEAD and PUT object calls on a path-style endpoint.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	// /<bucket>/<key>
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	empty := io.NopCloser(bytes.NewReader(nil))

	switch req.Method {
	case http.MethodHead:
		body, ok := f.objects[key]
		if !ok {
			return &http.Response{StatusCode: http.StatusNotFound, Body: empty, Header: http.Header{}, Request: req}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: empty, Request: req, Header: http.Header{
			"Content-Length": {strconv.Itoa(len(body))},
			"Etag":           {`"etag"`},
		}}, nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if decoded := req.Header.Get("X-Amz-Decoded-Content-Length"); decoded != "" {
			n, _ := strconv.Atoi(decoded)
			body = decodeChunk(body, n)
		}
		f.objects[key] = body
		return &http.Response{StatusCode: http.StatusOK, Body: empty, Request: req, Header: http.Header{"Etag": {`"etag"`}}}, nil
	}
	return &http.Response{StatusCode: http.StatusNotImplemented, Body: empty, Header: http.Header{}, Request: req}, nil
}

// decodeChunk extracts the payload of a single aws-chunked frame.
func decodeChunk(b []byte, n int) []byte {
	_, rest, ok := bytes.Cut(b, []byte("\r\n"))
	if !ok || len(rest) < n {
		return b
	}
	return rest[:n]
}

func TestS3Box(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	box, err := Open(ctx, Config{
		Name:       "cloud",
		Class:      ClassS3,
		TargetRoot: "/ingest/",
		S3: &S3Config{
			Bucket:          "research",
			Endpoint:        "https://mock.s3.local",
			AccessKeyID:     "AKIA",
			SecretAccessKey: "SECRET",
			PathStyle:       true,
		},
	}, WithHTTPClient(&http.Client{Transport: fake}))
	require.NoError(t, err)
	assert.Equal(t, ClassS3, box.Class())

	info, err := box.Stat(ctx, "raw/a.txt")
	require.NoError(t, err)
	assert.False(t, info.Exists)
	assert.Equal(t, "ingest/raw/a.txt", info.Key)

	require.NoError(t, box.Put(ctx, "raw/a.txt", bytes.NewReader([]byte("hello")), 5, "text/plain"))
	assert.Contains(t, fake.objects, "ingest/raw/a.txt")

	info, err = box.Stat(ctx, "raw/a.txt")
	require.NoError(t, err)
	assert.True(t, info.Exists)
	assert.Equal(t, int64(5), info.Size)
}
