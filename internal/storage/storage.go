// Package storage provides the storage boxes that staged datafiles are
// transferred into. A box is addressed by replica keys, the datafile path
// relative to the staging root.
package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/agentstation/foundry/pkg/errors"
)

// Class identifies a storage box backend.
type Class string

const (
	// ClassFileSystem stores replicas under a directory.
	ClassFileSystem Class = "file_system"
	// ClassS3 stores replicas in an S3 or MinIO bucket.
	ClassS3 Class = "s3"
)

// Info describes a stored replica.
type Info struct {
	Key    string
	Size   int64
	Exists bool
}

// Box is a replica target.
type Box interface {
	Name() string
	Class() Class
	// Stat reports whether key exists and its size. A missing key is not an error.
	Stat(ctx context.Context, key string) (Info, error)
	// Put writes size bytes from r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
}

// S3Config configures an S3 storage box.
type S3Config struct {
	Bucket          string `mapstructure:"bucket" validate:"required"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint" validate:"omitempty,url"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	PathStyle       bool   `mapstructure:"path_style"`
}

// Config selects and configures a storage box.
type Config struct {
	Name       string    `mapstructure:"name" validate:"required"`
	Class      Class     `mapstructure:"class" validate:"required,oneof=file_system s3"`
	TargetRoot string    `mapstructure:"target_root_directory"`
	S3         *S3Config `mapstructure:"s3" validate:"required_if=Class s3"`
}

type options struct {
	fs         afero.Fs
	httpClient *http.Client
}

// Option configures Open.
type Option func(*options)

// WithFs sets the filesystem used by file system boxes.
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithHTTPClient sets the HTTP client used by S3 boxes.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		o.httpClient = hc
	}
}

// Open creates the storage box described by cfg.
func Open(ctx context.Context, cfg Config, opts ...Option) (Box, error) {
	o := &options{fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(o)
	}

	switch cfg.Class {
	case ClassFileSystem, "":
		return NewFileSystem(cfg.Name, o.fs, cfg.TargetRoot)
	case ClassS3:
		if cfg.S3 == nil {
			return nil, errors.NewConfigError("storage", "s3 storage box requires s3 settings", nil)
		}
		return NewS3(ctx, cfg.Name, *cfg.S3, cfg.TargetRoot, o.httpClient)
	default:
		return nil, errors.NewConfigError("storage", fmt.Sprintf("unknown storage class %q", cfg.Class), nil)
	}
}

// sanitizeKey rejects keys that would escape the box root.
func sanitizeKey(key string) (string, error) {
	key = strings.ReplaceAll(key, "\\", "/")
	if strings.TrimSpace(key) == "" {
		return "", errors.NewValidationError("key", key, "empty replica key")
	}
	if strings.HasPrefix(key, "/") {
		return "", errors.NewValidationError("key", key, "replica key must be relative")
	}
	clean := path.Clean(key)
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", errors.NewValidationError("key", key, "replica key escapes the storage root")
	}
	return clean, nil
}
