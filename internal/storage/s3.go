package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
)

const uploadPartSize = 10 * 1024 * 1024

// S3Config configures the S3 client. Empty fields fall back to the standard
// AWS_* environment variables.
type S3Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	PathStyle       bool
}

// S3ConfigFromEnv reads AWS_REGION, AWS_ENDPOINT_URL, AWS_ACCESS_KEY_ID,
// AWS_SECRET_ACCESS_KEY, AWS_SESSION_TOKEN and AWS_S3_PATH_STYLE.
func S3ConfigFromEnv() S3Config {
	return S3Config{
		Region:          os.Getenv("AWS_REGION"),
		Endpoint:        os.Getenv("AWS_ENDPOINT_URL"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		PathStyle:       os.Getenv("AWS_S3_PATH_STYLE") == "true",
	}
}

// NewS3Client builds an S3 client with static credentials.
func NewS3Client(cfg S3Config) (*s3.Client, error) {
	if cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" {
		return nil, errors.New("s3 credentials missing: set AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := s3.Options{
		Region:       region,
		UsePathStyle: cfg.PathStyle,
		Credentials: aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
				SessionToken:    cfg.SessionToken,
				Source:          "odbcarrow",
			}, nil
		}),
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts), nil
}

// S3Provider uploads objects to a single bucket with a multipart uploader.
type S3Provider struct {
	client *s3.Client
	bucket string
	logger log.Logger
}

func NewS3Provider(client *s3.Client, bucket string, logger log.Logger) *S3Provider {
	return &S3Provider{
		client: client,
		bucket: bucket,
		logger: logger,
	}
}

func (p *S3Provider) StreamToFile(ctx context.Context, key string) (io.WriteCloser, <-chan error) {
	reader, writer := io.Pipe()
	errChan := make(chan error, 1)

	go func() {
		defer close(errChan)

		uploader := manager.NewUploader(p.client, func(u *manager.Uploader) {
			u.PartSize = uploadPartSize
			u.Concurrency = 5
		})

		level.Debug(p.logger).Log("msg", "starting s3 upload", "bucket", p.bucket, "key", key)
		_, err := uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(p.bucket),
			Key:         aws.String(key),
			Body:        reader,
			ContentType: aws.String("application/vnd.apache.arrow.stream"),
		})

		// Unblock a writer still waiting on a failed upload.
		_ = reader.CloseWithError(err)

		if err != nil {
			level.Error(p.logger).Log("msg", "s3 upload failed", "key", key, "err", err)
			errChan <- errors.Wrap(err, "s3 upload failed")
			return
		}
		level.Debug(p.logger).Log("msg", "s3 upload finished", "key", key)
		errChan <- nil
	}()

	return writer, errChan
}

func (p *S3Provider) OpenFile(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get s3://%s/%s", p.bucket, key)
	}
	return out.Body, nil
}

func (p *S3Provider) Location(key string) string {
	return fmt.Sprintf("s3://%s/%s", p.bucket, key)
}
