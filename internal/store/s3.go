package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const (
	// downloadTimeout bounds public URL fetches.
	downloadTimeout = 30 * time.Second
	// maxObjectSize caps how much Get will read (10 MiB, same ceiling as uploads).
	maxObjectSize = 10 * 1024 * 1024
)

// S3Config holds the settings for an S3-compatible backend.
type S3Config struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	// PublicBaseURL overrides the base under which objects are publicly
	// served (e.g. a CDN). Defaults to <endpoint>/<bucket>.
	PublicBaseURL string
}

// S3Store implements Store on top of any S3-compatible backend. Objects are
// written through the S3 API and read back over their public URLs, which is
// also how external consumers see them.
type S3Store struct {
	client  *s3.Client
	httpc   *resty.Client
	bucket  string
	baseURL string
}

// NewS3Store builds the S3 client once from explicit configuration.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)),
		awsconfig.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})

	baseURL := strings.TrimSuffix(cfg.PublicBaseURL, "/")
	if baseURL == "" {
		baseURL = fmt.Sprintf("%s/%s", strings.TrimSuffix(cfg.Endpoint, "/"), cfg.Bucket)
	}

	return &S3Store{
		client:  client,
		httpc:   resty.New().SetTimeout(downloadTimeout),
		bucket:  cfg.Bucket,
		baseURL: baseURL,
	}, nil
}

// Put writes the object. IfNoneMatch makes the write conditional so an
// existing object is never overwritten; replacement flows write new paths.
func (s *S3Store) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		IfNoneMatch:   aws.String("*"),
	})
	if err != nil {
		return "", fmt.Errorf("%w: put %s: %v", ErrWrite, path, err)
	}

	log.Info().Str("path", path).Int("size", len(data)).Str("contentType", contentType).Msg("object stored")
	return path, nil
}

func (s *S3Store) PublicURL(path string) string {
	return s.baseURL + "/" + path
}

func (s *S3Store) PathFromURL(url string) (string, error) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", fmt.Errorf("%w: url does not belong to this store: %s", ErrRead, url)
	}
	return strings.TrimPrefix(url, prefix), nil
}

// Get fetches the object bytes over its public URL.
func (s *S3Store) Get(ctx context.Context, url string) ([]byte, error) {
	if _, err := s.PathFromURL(url); err != nil {
		return nil, err
	}

	res, err := s.httpc.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	defer res.RawBody().Close()

	if res.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: get %s: status %d", ErrRead, url, res.StatusCode())
	}

	data, err := io.ReadAll(io.LimitReader(res.RawBody(), maxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRead, err)
	}
	if len(data) > maxObjectSize {
		return nil, fmt.Errorf("%w: object over %d bytes", ErrRead, maxObjectSize)
	}

	return data, nil
}
