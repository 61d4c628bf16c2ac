package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/printforge/printforge-go-components/internal/slicingservice/logger"
)

// S3Store mirrors finished artifacts into an S3 bucket so they survive
// container restarts and the local retention sweep. Uploads are best-effort;
// the download endpoint keeps serving the local copy.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store builds a store over the default AWS credential chain.
func NewS3Store(ctx context.Context, bucket, region, prefix string) (*S3Store, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}
	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
		prefix: prefix,
	}, nil
}

// SaveArtifact uploads the artifact under <prefix>/<name>.
func (s *S3Store) SaveArtifact(ctx context.Context, name string, src io.Reader, size int64) error {
	key := path.Join(s.prefix, name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          src,
		ContentLength: &size,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			logger.LogWarning("S3 upload rejected (" + apiErr.ErrorCode() + "): " + apiErr.ErrorMessage())
		}
		return fmt.Errorf("upload artifact %s: %w", name, err)
	}
	return nil
}
