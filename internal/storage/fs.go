package storage

import (
	"context"
	"io"
	"os"
	"path"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/agentstation/foundry/pkg/constants"
	"github.com/agentstation/foundry/pkg/errors"
)

// FileSystem stores replicas as files under a root directory.
type FileSystem struct {
	name string
	fs   afero.Fs
}

// NewFileSystem returns a box rooted at root on fs, creating the root if needed.
func NewFileSystem(name string, fs afero.Fs, root string) (*FileSystem, error) {
	if root == "" {
		return nil, errors.NewConfigError("storage", "file system storage box requires a target root directory", nil)
	}
	if err := fs.MkdirAll(root, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("mkdir", root, err)
	}
	return &FileSystem{name: name, fs: afero.NewBasePathFs(fs, root)}, nil
}

// Name implements Box.
func (b *FileSystem) Name() string { return b.name }

// Class implements Box.
func (b *FileSystem) Class() Class { return ClassFileSystem }

// Stat implements Box.
func (b *FileSystem) Stat(_ context.Context, key string) (Info, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return Info{}, err
	}
	fi, err := b.fs.Stat(k)
	if os.IsNotExist(err) {
		return Info{Key: k}, nil
	}
	if err != nil {
		return Info{}, errors.WrapIO("stat", k, err)
	}
	return Info{Key: k, Size: fi.Size(), Exists: !fi.IsDir()}, nil
}

// Put implements Box. The file is written beside its target and renamed
// into place so a failed copy never leaves a truncated replica.
func (b *FileSystem) Put(ctx context.Context, key string, r io.Reader, size int64, _ string) error {
	k, err := sanitizeKey(key)
	if err != nil {
		return err
	}
	if err := b.fs.MkdirAll(path.Dir(k), constants.DirPermissions); err != nil {
		return errors.WrapIO("mkdir", path.Dir(k), err)
	}

	tmp := k + ".part-" + uuid.NewString()[:8]
	f, err := b.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return errors.WrapIO("create", tmp, err)
	}

	n, err := io.Copy(f, readerWithContext(ctx, r))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && size >= 0 && n != size {
		err = errors.NewIOError("copy", k, io.ErrShortWrite)
	}
	if err != nil {
		_ = b.fs.Remove(tmp)
		return errors.WrapIO("write", k, err)
	}
	if err := b.fs.Rename(tmp, k); err != nil {
		_ = b.fs.Remove(tmp)
		return errors.WrapIO("rename", k, err)
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return ctxReader{ctx: ctx, r: r}
}
