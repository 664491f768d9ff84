package file

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// S3Lister is the slice of the S3 API metering needs; *s3.Client satisfies it.
type S3Lister interface {
	s3.ListObjectsV2APIClient
}

// S3Config configures the bucket tenant uploads live in.
type S3Config struct {
	Bucket         string `env:"S3_BUCKET"`
	Region         string `env:"S3_REGION" envDefault:"us-east-1"`
	AccessKeyID    string `env:"S3_ACCESS_KEY_ID"`
	SecretKey      string `env:"S3_SECRET_KEY"`
	Endpoint       string `env:"S3_ENDPOINT"`                            // S3-compatible services only
	ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE" envDefault:"false"` // MinIO and friends
	Root           string `env:"S3_ROOT"`                                // key prefix above tenants/
}

// Enabled reports whether a bucket is configured.
func (c S3Config) Enabled() bool {
	return c.Bucket != ""
}

// S3Meter sums object sizes under a tenant's prefix. Safe for concurrent use.
type S3Meter struct {
	client S3Lister
	bucket string
	root   string
}

// NewS3Meter builds a meter for cfg.Bucket. A nil client is built from cfg
// with the default AWS credential chain, overridden by static keys when both
// are set.
func NewS3Meter(ctx context.Context, cfg S3Config, client S3Lister) (*S3Meter, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("%w: bucket and region are required", ErrInvalidConfig)
	}

	if client == nil {
		opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
		if cfg.AccessKeyID != "" && cfg.SecretKey != "" {
			opts = append(opts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretKey, ""),
			))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, errors.Join(ErrInvalidConfig, err)
		}
		client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.ForcePathStyle
		})
	}

	return &S3Meter{client: client, bucket: cfg.Bucket, root: cfg.Root}, nil
}

// TenantBytes pages through every object under the tenant prefix. A tenant
// with no uploads uses zero bytes.
func (m *S3Meter) TenantBytes(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	if tenantID == uuid.Nil {
		return 0, ErrInvalidTenant
	}

	pages := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(TenantPrefix(m.root, tenantID)),
	})

	var total int64
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return 0, s3Error(err)
		}
		for _, obj := range page.Contents {
			total += aws.ToInt64(obj.Size)
		}
	}
	return total, nil
}

func s3Error(err error) error {
	var (
		noBucket *types.NoSuchBucket
		apiErr   smithy.APIError
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errors.Join(ErrOperationTimeout, err)
	case errors.Is(err, context.Canceled):
		return errors.Join(ErrOperationCanceled, err)
	case errors.As(err, &noBucket):
		return errors.Join(ErrBucketNotFound, err)
	case errors.As(err, &apiErr):
		switch apiErr.ErrorCode() {
		case "NoSuchBucket":
			return errors.Join(ErrBucketNotFound, err)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return errors.Join(ErrAccessDenied, err)
		case "SlowDown", "ServiceUnavailable", "InternalError", "RequestTimeout":
			return errors.Join(ErrServiceUnavailable, err)
		}
	}
	return errors.Join(ErrMeterFailed, err)
}
