package storage

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/agentstation/foundry/pkg/errors"
)

const defaultRegion = "us-east-1"

// S3 stores replicas as objects in a single bucket. Keys are prefixed with
// the configured target root.
type S3 struct {
	name   string
	client *s3.Client
	bucket string
	prefix string
}

// NewS3 creates an S3 storage box. Static credentials are used when given,
// otherwise the default AWS credential chain applies.
func NewS3(ctx context.Context, name string, cfg S3Config, prefix string, hc *http.Client) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.NewConfigError("storage", "s3 bucket required", nil)
	}
	region := cfg.Region
	if region == "" {
		region = defaultRegion
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, errors.NewConfigError("storage", "loading AWS configuration", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if hc != nil {
			o.HTTPClient = hc
		}
	})
	return &S3{
		name:   name,
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// Name implements Box.
func (b *S3) Name() string { return b.name }

// Class implements Box.
func (b *S3) Class() Class { return ClassS3 }

func (b *S3) objectKey(key string) (string, error) {
	k, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if b.prefix == "" {
		return k, nil
	}
	return path.Join(b.prefix, k), nil
}

// Stat implements Box.
func (b *S3) Stat(ctx context.Context, key string) (Info, error) {
	k, err := b.objectKey(key)
	if err != nil {
		return Info{}, err
	}
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &b.bucket, Key: &k})
	if isNotFound(err) {
		return Info{Key: k}, nil
	}
	if err != nil {
		return Info{}, errors.WrapResource("stat", "s3 object", k, err)
	}
	return Info{Key: k, Size: aws.ToInt64(out.ContentLength), Exists: true}, nil
}

// Put implements Box.
func (b *S3) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	k, err := b.objectKey(key)
	if err != nil {
		return err
	}
	input := &s3.PutObjectInput{Bucket: &b.bucket, Key: &k, Body: r}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return errors.WrapResource("put", "s3 object", k, err)
	}
	return nil
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	if stderrors.As(err, &nf) || stderrors.As(err, &nsk) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return stderrors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}
