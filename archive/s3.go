package archive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3 stores archived documents in an S3 bucket.
type S3 struct {
	client *s3.Client
	bucket string
}

// NewS3 creates an S3-backed archive. Explicit credentials in cfg take
// precedence; otherwise the default chain (environment, IAM role) is
// used.
func NewS3(cfg Config) (*S3, error) {
	ctx := context.Background()

	var awsCfg aws.Config
	var err error
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.S3Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKey, cfg.SecretKey, "")),
		)
	} else {
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.S3Region))
	}
	if err != nil {
		return nil, fmt.Errorf("archive: loading AWS config: %w", err)
	}

	if cfg.S3Bucket == "" {
		return nil, errors.New("archive: S3 bucket is required")
	}
	return &S3{client: s3.NewFromConfig(awsCfg), bucket: cfg.S3Bucket}, nil
}

func (s *S3) Put(ctx context.Context, tenantID, documentID, name string, data io.Reader) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(objectKey(tenantID, documentID, name)),
		Body:        data,
		ContentType: aws.String(contentType(name)),
	})
	if err != nil {
		return fmt.Errorf("archive: uploading %s: %w", name, err)
	}
	return nil
}

func (s *S3) Get(ctx context.Context, tenantID, documentID, name string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectKey(tenantID, documentID, name)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("archive: downloading %s: %w", name, err)
	}
	return out.Body, nil
}

func (s *S3) Exists(ctx context.Context, tenantID, documentID string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(documentPrefix(tenantID, documentID) + "/"),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, fmt.Errorf("archive: listing objects: %w", err)
	}
	return len(out.Contents) > 0, nil
}

func (s *S3) Delete(ctx context.Context, tenantID, documentID string) error {
	prefix := documentPrefix(tenantID, documentID) + "/"
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return fmt.Errorf("archive: listing objects for delete: %w", err)
	}
	for _, obj := range out.Contents {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    obj.Key,
		}); err != nil {
			return fmt.Errorf("archive: deleting %s: %w", aws.ToString(obj.Key), err)
		}
	}
	return nil
}

// contentType maps archive object names to MIME types.
func contentType(name string) string {
	switch name {
	case MarkdownName:
		return "text/markdown"
	case MetadataName:
		return "application/json"
	default:
		return "text/plain"
	}
}
