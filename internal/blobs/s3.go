// Package blobs stores profile images in S3-compatible object storage.
package blobs

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/profilekeeper/internal/logging"
	"github.com/dmitrijs2005/profilekeeper/internal/models"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) objectAPI {
		return s3.NewFromConfig(cfg, optFns...)
	}

	newObjectID = func() string { return uuid.NewString() }
)

// objectAPI is the part of *s3.Client the store calls.
type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Options configures an S3Store.
type Options struct {
	Region        string
	AccessKey     string
	SecretKey     string
	Bucket        string
	BaseEndpoint  string
	PublicBaseURL string
}

type S3Store struct {
	api    objectAPI
	bucket string
	public string
	log    logging.Logger
}

// NewS3Store builds a path-style client for opts.BaseEndpoint with static
// credentials.
func NewS3Store(ctx context.Context, opts Options, log logging.Logger) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	api := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(opts.BaseEndpoint)
		}
		o.UsePathStyle = true
	})

	public := opts.PublicBaseURL
	if public == "" {
		public = opts.BaseEndpoint
	}

	return &S3Store{
		api:    api,
		bucket: opts.Bucket,
		public: strings.TrimRight(public, "/"),
		log:    log.With("module", "blobs"),
	}, nil
}

func userPrefix(userID string) string {
	return "users/" + userID + "/"
}

// URL returns the public address of key.
func (s *S3Store) URL(key string) string {
	return s.public + "/" + s.bucket + "/" + key
}

// KeyFromURL reverses URL. It reports false for addresses outside this
// store's bucket.
func (s *S3Store) KeyFromURL(url string) (string, bool) {
	prefix := s.public + "/" + s.bucket + "/"
	if !strings.HasPrefix(url, prefix) || len(url) == len(prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// PutUserImage uploads a PNG under the user's profile prefix and returns its
// public URL and object key.
func (s *S3Store) PutUserImage(ctx context.Context, userID string, png []byte) (string, string, error) {
	key := fmt.Sprintf("%sprofile/%s.png", userPrefix(userID), newObjectID())

	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(png),
		ContentLength: aws.Int64(int64(len(png))),
		ContentType:   aws.String("image/png"),
	})
	if err != nil {
		return "", "", fmt.Errorf("put %s: %w", key, err)
	}
	return s.URL(key), key, nil
}

// DeleteObject removes a single object.
func (s *S3Store) DeleteObject(ctx context.Context, key string) error {
	_, err := s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// DeleteUserImage removes every object stored for the user.
func (s *S3Store) DeleteUserImage(ctx context.Context, p models.UserProfile) error {
	if p.UserID == "" {
		return fmt.Errorf("delete user image: empty user id")
	}

	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(userPrefix(p.UserID)),
	}

	deleted := 0
	for {
		page, err := s.api.ListObjectsV2(ctx, in)
		if err != nil {
			return fmt.Errorf("list %s: %w", *in.Prefix, err)
		}

		if len(page.Contents) > 0 {
			ids := make([]types.ObjectIdentifier, 0, len(page.Contents))
			for _, obj := range page.Contents {
				ids = append(ids, types.ObjectIdentifier{Key: obj.Key})
			}
			out, err := s.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(s.bucket),
				Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			})
			if err != nil {
				return fmt.Errorf("delete objects: %w", err)
			}
			if len(out.Errors) > 0 {
				return fmt.Errorf("delete objects: %d failed, first %s: %s",
					len(out.Errors), aws.ToString(out.Errors[0].Key), aws.ToString(out.Errors[0].Message))
			}
			deleted += len(ids)
		}

		if !aws.ToBool(page.IsTruncated) {
			break
		}
		in.ContinuationToken = page.NextContinuationToken
	}

	s.log.Info(ctx, "user images deleted", "user_id", p.UserID, "count", deleted)
	return nil
}
