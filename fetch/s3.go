package fetch

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/justapithecus/petframes/iox"
)

// S3Config holds configuration for the S3 asset backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ObjectGetter is the subset of the S3 client used by S3Fetcher.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Fetcher fetches frames with S3 GetObject.
type S3Fetcher struct {
	client ObjectGetter
	bucket string
	prefix string
}

// NewS3Fetcher creates an S3 fetcher using the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func NewS3Fetcher(ctx context.Context, cfg S3Config) (*S3Fetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewS3FetcherWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix), nil
}

// NewS3FetcherWithClient creates a fetcher around an existing client.
func NewS3FetcherWithClient(client ObjectGetter, bucket, prefix string) *S3Fetcher {
	return &S3Fetcher{client: client, bucket: bucket, prefix: prefix}
}

// key joins the configured prefix with the logical frame path.
func (f *S3Fetcher) key(p string) string {
	if f.prefix == "" {
		return p
	}
	return path.Join(f.prefix, p)
}

// Fetch implements Fetcher.
func (f *S3Fetcher) Fetch(ctx context.Context, p string, maxBytes int64) ([]byte, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(f.bucket),
		Key:    aws.String(f.key(p)),
	})
	if err != nil {
		return nil, NewError(classify(err), p, err)
	}
	defer iox.DiscardClose(out.Body)

	if size := aws.ToInt64(out.ContentLength); maxBytes > 0 && size > maxBytes {
		return nil, NewError(ErrSizeExceeded, p, fmt.Errorf("content length %d exceeds %d", size, maxBytes))
	}

	data, err := iox.ReadAllLimit(out.Body, maxBytes)
	if err != nil {
		if errors.Is(err, iox.ErrLimitExceeded) {
			return nil, NewError(ErrSizeExceeded, p, err)
		}
		return nil, NewError(ErrTransport, p, err)
	}
	return data, nil
}

// Verify S3Fetcher implements Fetcher.
var _ Fetcher = (*S3Fetcher)(nil)
