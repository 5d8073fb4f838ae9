// Package media issues presigned S3 URLs for swap evidence photos.
package media

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// DefaultUploadExpiry is how long an upload URL stays valid.
const DefaultUploadExpiry = 5 * time.Minute

// ErrDisabled is returned when no bucket is configured.
var ErrDisabled = errors.New("photo uploads are not configured")

// Config selects the bucket and, for S3-compatible stores, the endpoint.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Expiry   time.Duration

	// Static credentials are optional; the default AWS chain is used otherwise.
	AccessKeyID     string
	SecretAccessKey string
}

// Upload is a presigned PUT for one object.
type Upload struct {
	URL       string
	Key       string
	Method    string
	ExpiresAt time.Time
}

// S3Presigner signs upload URLs against one bucket.
type S3Presigner struct {
	bucket    string
	expiry    time.Duration
	presigner *s3.PresignClient
}

// NewS3Presigner loads AWS configuration and builds a presigner.
func NewS3Presigner(ctx context.Context, cfg Config) (*S3Presigner, error) {
	if cfg.Bucket == "" {
		return nil, ErrDisabled
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultUploadExpiry
	}

	return &S3Presigner{
		bucket:    cfg.Bucket,
		expiry:    expiry,
		presigner: s3.NewPresignClient(client),
	}, nil
}

// PresignUpload returns a PUT URL for key.
func (p *S3Presigner) PresignUpload(ctx context.Context, key, contentType string) (*Upload, error) {
	params := &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	req, err := p.presigner.PresignPutObject(ctx, params, s3.WithPresignExpires(p.expiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}
	return &Upload{
		URL:       req.URL,
		Key:       key,
		Method:    req.Method,
		ExpiresAt: time.Now().Add(p.expiry),
	}, nil
}

// ObjectKey builds the storage key for one evidence photo.
func ObjectKey(swapID, stage, role, fileName string) string {
	name := sanitize(path.Base(fileName))
	if name == "" || name == "." {
		name = "photo"
	}
	return path.Join("swaps", swapID, stage, role, uuid.NewString()+"-"+name)
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
