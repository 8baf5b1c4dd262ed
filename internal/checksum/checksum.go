// Package checksum computes the fixity values the catalogue stores for a
// datafile: MD5 digest, size and content type.
package checksum

import (
	"crypto/md5" //nolint:gosec // the catalogue's replica verification uses MD5
	"encoding/hex"
	"io"
	"mime"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"github.com/agentstation/foundry/pkg/errors"
)

// DefaultMimetype is used when neither content nor extension identify a file.
const DefaultMimetype = "application/octet-stream"

// Digest holds the fixity values of one file.
type Digest struct {
	MD5      string
	Size     int64
	Mimetype string
}

// File streams the file at name once, computing its MD5 and size and
// sniffing its content type.
func File(fs afero.Fs, name string) (Digest, error) {
	f, err := fs.Open(name)
	if err != nil {
		return Digest{}, errors.WrapIO("open", name, err)
	}
	defer func() {
		_ = f.Close()
	}()

	h := md5.New() //nolint:gosec
	head := &prefixWriter{limit: sniffLen}
	size, err := io.Copy(io.MultiWriter(h, head), f)
	if err != nil {
		return Digest{}, errors.WrapIO("read", name, err)
	}

	return Digest{
		MD5:      hex.EncodeToString(h.Sum(nil)),
		Size:     size,
		Mimetype: detect(name, head.buf),
	}, nil
}

// Mimetype guesses a content type from the file name alone.
func Mimetype(name string) string {
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		mt, _, err := mime.ParseMediaType(t)
		if err == nil {
			return mt
		}
		return t
	}
	return DefaultMimetype
}

// sniffLen matches the amount of data mimetype inspects by default.
const sniffLen = 3072

func detect(name string, head []byte) string {
	if len(head) > 0 {
		if mt := mimetype.Detect(head); mt != nil && mt.String() != DefaultMimetype && !mt.Is("text/plain") {
			return stripParams(mt.String())
		}
	}
	byExt := Mimetype(name)
	if byExt != DefaultMimetype {
		return byExt
	}
	if len(head) > 0 {
		return stripParams(mimetype.Detect(head).String())
	}
	return DefaultMimetype
}

func stripParams(t string) string {
	mt, _, err := mime.ParseMediaType(t)
	if err != nil {
		return t
	}
	return mt
}

// prefixWriter keeps the first limit bytes written to it.
type prefixWriter struct {
	buf   []byte
	limit int
}

func (w *prefixWriter) Write(p []byte) (int, error) {
	if room := w.limit - len(w.buf); room > 0 {
		if len(p) < room {
			room = len(p)
		}
		w.buf = append(w.buf, p[:room]...)
	}
	return len(p), nil
}
