package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/ksree/pdf-upload-service/internal/config"
	"github.com/ksree/pdf-upload-service/internal/security"
)

// S3Store implements ObjectStore on top of the AWS SDK.
type S3Store struct {
	client *s3.S3
	bucket string
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store builds the S3 client from configuration. Credentials are
// static when both keys are configured, otherwise the SDK default chain
// is used and credential errors surface on the first call instead.
func NewS3Store(cfg config.AWSConfig) (*S3Store, error) {
	awsConfig := &aws.Config{
		Region:           aws.String(cfg.NormalizedRegion()),
		S3ForcePathStyle: aws.Bool(cfg.PathStyle || cfg.Endpoint != ""),
		MaxRetries:       aws.Int(3),
		HTTPClient: &http.Client{
			Timeout: 300 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}

	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		logrus.WithField("endpoint", cfg.Endpoint).Info("Using custom S3 endpoint")
	}

	if cfg.HasStaticCredentials() {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		logrus.Info("Using static AWS credentials")
	} else {
		logrus.Info("Using AWS default credential chain (env vars, IAM role, etc.)")
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket": cfg.Bucket,
		"region": cfg.NormalizedRegion(),
	}).Info("S3 store created")

	return &S3Store{
		client: s3.New(sess),
		bucket: cfg.Bucket,
	}, nil
}

// PutObject uploads the body under key with the given content type and
// user metadata.
func (s *S3Store) PutObject(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string, metadata map[string]string) error {
	if err := security.ValidateStorageKey(key); err != nil {
		return &OpError{Op: "PutObject", Err: err}
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(contentType),
	}

	if len(metadata) > 0 {
		input.Metadata = make(map[string]*string, len(metadata))
		for k, v := range metadata {
			input.Metadata[k] = aws.String(v)
		}
	}

	start := time.Now()
	_, err := s.client.PutObjectWithContext(ctx, input)
	if err != nil {
		return mapStoreError("PutObject", err)
	}

	logrus.WithFields(logrus.Fields{
		"bucket":   s.bucket,
		"key":      key,
		"size":     size,
		"duration": time.Since(start),
	}).Debug("S3 PutObject completed")

	return nil
}

// PresignGet signs a read URL for key. The SDK signs locally, so failures
// here are marshaling or credential resolution problems, not network ones.
func (s *S3Store) PresignGet(key string, ttl time.Duration) (string, error) {
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})

	url, err := req.Presign(ttl)
	if err != nil {
		return "", mapStoreError("PresignGet", err)
	}
	return url, nil
}
