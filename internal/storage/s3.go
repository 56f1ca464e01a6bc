package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Configuration configures the S3 driver. Endpoint points at the
// platform's S3-compatible storage service; PublicBaseURL is the scheme
// under which uploaded objects are publicly resolvable.
type S3Configuration struct {
	Endpoint      string
	Region        string
	BucketName    string
	AccessID      string
	AccessKey     string
	PublicBaseURL string
}

// S3 is the Driver implementation for S3-compatible storage.
type S3 struct {
	config        aws.Config
	bucket        string
	publicBaseURL string
}

// NewS3 returns a new S3 driver.
func NewS3(ctx context.Context, s3Config S3Configuration) (*S3, error) {
	if s3Config.BucketName == "" {
		return nil, fmt.Errorf("BucketName must not be empty")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(s3Config.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(s3Config.AccessID, s3Config.AccessKey, "")),
	}
	if s3Config.Endpoint != "" {
		endpoint := s3Config.Endpoint
		opts = append(opts, config.WithEndpointResolverWithOptions(
			aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				return aws.Endpoint{URL: endpoint, HostnameImmutable: true}, nil
			})))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return &S3{
		config:        cfg,
		bucket:        s3Config.BucketName,
		publicBaseURL: strings.TrimRight(s3Config.PublicBaseURL, "/"),
	}, nil
}

func (s *S3) client() *s3.Client {
	return s3.NewFromConfig(s.config, func(o *s3.Options) {
		o.UsePathStyle = true
	})
}

// Upload stores the contents of r under key.
func (s *S3) Upload(ctx context.Context, key, contentType string, r io.Reader) error {
	uploader := manager.NewUploader(s.client())

	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        r,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// PresignGet returns a pre-signed GET URL that can be used until the
// expiry time is passed.
func (s *S3) PresignGet(ctx context.Context, key string, expireIn time.Duration) (string, error) {
	client := s3.NewPresignClient(s.client())

	resp, err := client.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expireIn))
	if err != nil {
		return "", err
	}
	return resp.URL, nil
}

// Delete deletes the key.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client().DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return err
}

// ListWithPrefix lists all keys with prefix.
func (s *S3) ListWithPrefix(ctx context.Context, prefix string) ([]Object, error) {
	client := s.client()

	var objects []Object
	var continuationToken *string
	for {
		resp, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, err
		}
		for _, item := range resp.Contents {
			obj := Object{Key: aws.ToString(item.Key)}
			if item.LastModified != nil {
				obj.LastModified = *item.LastModified
			}
			objects = append(objects, obj)
		}
		continuationToken = resp.NextContinuationToken
		if continuationToken == nil {
			break
		}
	}
	return objects, nil
}

// PublicURL returns the public object URL for key.
func (s *S3) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.publicBaseURL, s.bucket, key)
}
