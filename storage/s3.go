package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/vegasq/nc2parquet/errs"
)

// S3Config configures the S3 client. Credentials come from the usual AWS
// environment and shared config files.
type S3Config struct {
	Region         string
	Endpoint       string // custom endpoint, e.g. a MinIO server
	ForcePathStyle bool
}

// S3 stores objects in S3 buckets. Paths are s3://bucket/key URLs.
type S3 struct {
	client s3iface.S3API
}

// NewS3 builds a client from cfg. The SDK's own retries are disabled;
// WithRetry does the retrying.
func NewS3(cfg S3Config) (*S3, error) {
	awsCfg := aws.NewConfig().WithMaxRetries(0)
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint)
	}
	awsCfg = awsCfg.WithS3ForcePathStyle(cfg.ForcePathStyle)

	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsCfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %w", err)
	}
	return NewS3WithClient(s3.New(sess)), nil
}

// NewS3WithClient wraps an existing client.
func NewS3WithClient(client s3iface.S3API) *S3 {
	return &S3{client: client}
}

// ParseS3Path splits s3://bucket/key into its parts.
func ParseS3Path(path string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(path, "s3://")
	if !ok {
		return "", "", errs.Configf(path, "not an s3:// path")
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", errs.Configf(path, "s3 path needs a bucket and a key")
	}
	return bucket, key, nil
}

func (s *S3) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	bucket, key, err := ParseS3Path(path)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, s3Error(path, err)
	}
	return resp.Body, nil
}

func (s *S3) Exists(ctx context.Context, path string) (bool, error) {
	bucket, key, err := ParseS3Path(path)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, s3Error(path, err)
}

// Stage buffers the object in memory. Commit uploads it with a single
// PutObject, so readers never see a partial object.
func (s *S3) Stage(ctx context.Context, path string) (Staged, error) {
	bucket, key, err := ParseS3Path(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &s3Staged{s3: s, path: path, bucket: bucket, key: key}, nil
}

type s3Staged struct {
	s3          *S3
	path        string
	bucket, key string
	buf         bytes.Buffer
	done        bool
}

func (w *s3Staged) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *s3Staged) Commit(ctx context.Context) error {
	if w.done {
		return nil
	}
	_, err := w.s3.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(w.key),
		Body:   bytes.NewReader(w.buf.Bytes()),
	})
	if err != nil {
		return s3Error(w.path, err)
	}
	w.done = true
	w.buf = bytes.Buffer{}
	return nil
}

func (w *s3Staged) Abort() error {
	w.done = true
	w.buf = bytes.Buffer{}
	return nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
		return true
	}
	var rf awserr.RequestFailure
	return errors.As(err, &rf) && rf.StatusCode() == http.StatusNotFound
}

// s3Error wraps err as an IO error, transient when the SDK considers it
// retryable or throttled.
func s3Error(path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	transient := !isNotFound(err) && (request.IsErrorRetryable(err) || request.IsErrorThrottle(err))
	return errs.IO(path, transient, err)
}
