package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/google/uuid"
)

const reviewImagePrefix = "reviews/"

// Presigner is the part of *s3.PresignClient the image service uses.
type Presigner interface {
	PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

var newS3PresignClient = func(c *s3.Client) Presigner {
	return s3.NewPresignClient(c)
}

// ImageUpload is a presigned slot for one review image.
type ImageUpload struct {
	Key       string `json:"key"`
	UploadURL string `json:"uploadUrl"`
}

// ReviewImageService hands out presigned S3 URLs so clients upload review
// images straight to the bucket.
type ReviewImageService struct {
	presigner Presigner
	bucket    string
	validity  time.Duration
	now       func() time.Time
}

func NewReviewImageService(client *s3.Client, bucket string, validity time.Duration) *ReviewImageService {
	return newReviewImageService(newS3PresignClient(client), bucket, validity)
}

func newReviewImageService(p Presigner, bucket string, validity time.Duration) *ReviewImageService {
	return &ReviewImageService{presigner: p, bucket: bucket, validity: validity, now: time.Now}
}

// storageKey returns reviews/<yyyy>/<m>/<d>/<uuid>.
func (s *ReviewImageService) storageKey() string {
	d := s.now()
	return fmt.Sprintf("%s%d/%d/%d/%v", reviewImagePrefix, d.Year(), d.Month(), d.Day(), uuid.New())
}

// PresignUpload reserves a fresh key and returns a PUT URL for it.
func (s *ReviewImageService) PresignUpload(ctx context.Context) (*ImageUpload, error) {
	bucket := s.bucket
	key := s.storageKey()

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.validity))
	if err != nil {
		return nil, fmt.Errorf("%w: presign put: %v", common.ErrorInternal, err)
	}

	return &ImageUpload{Key: key, UploadURL: req.URL}, nil
}

// PresignDownload returns a GET URL for a previously uploaded review image.
// Keys outside the review prefix are rejected.
func (s *ReviewImageService) PresignDownload(ctx context.Context, key string) (string, error) {
	if !strings.HasPrefix(key, reviewImagePrefix) || strings.Contains(key, "..") {
		return "", common.ErrorInvalidInput
	}

	bucket := s.bucket
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}, s3.WithPresignExpires(s.validity))
	if err != nil {
		return "", fmt.Errorf("%w: presign get: %v", common.ErrorInternal, err)
	}

	return req.URL, nil
}
