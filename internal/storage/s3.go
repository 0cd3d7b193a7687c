package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Options conveys upload destination metadata.
type S3Options struct {
	Bucket    string
	KeyPrefix string
	// PublicBaseURL, when set, replaces the bucket endpoint in returned URLs
	// (a CDN or website endpoint in front of the bucket).
	PublicBaseURL string
}

// S3Service uploads media to Amazon S3 (or compatible APIs).
type S3Service struct {
	uploader *manager.Uploader
	opts     S3Options
}

func NewS3Service(client *s3.Client, opts S3Options) *S3Service {
	return &S3Service{
		uploader: manager.NewUploader(client),
		opts:     opts,
	}
}

func (s *S3Service) Upload(ctx context.Context, in UploadInput) (Object, error) {
	if s.opts.Bucket == "" {
		return Object{}, fmt.Errorf("storage bucket is required")
	}

	key, err := ObjectKey(s.opts.KeyPrefix, in.Folder, in.FileName)
	if err != nil {
		return Object{}, err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
		Body:   in.Body,
		ACL:    types.ObjectCannedACLPublicRead,
	}
	if in.ContentType != "" {
		input.ContentType = aws.String(in.ContentType)
	}

	out, err := s.uploader.Upload(ctx, input)
	if err != nil {
		return Object{}, fmt.Errorf("upload %s: %w", key, err)
	}

	url := out.Location
	if base := strings.TrimRight(s.opts.PublicBaseURL, "/"); base != "" {
		url = base + "/" + key
	}
	return Object{Key: key, URL: url}, nil
}

var _ Service = (*S3Service)(nil)
