package services

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/gophaccounts/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePresigner struct {
	putKey, getKey string
	bucket         string
	expires        time.Duration
	err            error
}

func (f *fakePresigner) PresignPutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	var o s3.PresignOptions
	for _, fn := range optFns {
		fn(&o)
	}
	f.expires = o.Expires
	f.bucket = *in.Bucket
	f.putKey = *in.Key
	return &v4.PresignedHTTPRequest{URL: "https://put/" + *in.Key, Method: "PUT"}, nil
}

func (f *fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = *in.Bucket
	f.getKey = *in.Key
	return &v4.PresignedHTTPRequest{URL: "https://get/" + *in.Key, Method: "GET"}, nil
}

func TestReviewImageService_PresignUpload(t *testing.T) {
	p := &fakePresigner{}
	svc := newReviewImageService(p, "images", 10*time.Minute)
	svc.now = func() time.Time { return time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC) }

	up, err := svc.PresignUpload(context.Background())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^reviews/2025/7/9/[0-9a-f-]{36}$`), up.Key)
	assert.Equal(t, "https://put/"+up.Key, up.UploadURL)
	assert.Equal(t, "images", p.bucket)
	assert.Equal(t, up.Key, p.putKey)
	assert.Equal(t, 10*time.Minute, p.expires)
}

func TestReviewImageService_PresignDownload(t *testing.T) {
	p := &fakePresigner{}
	svc := newReviewImageService(p, "images", time.Minute)

	url, err := svc.PresignDownload(context.Background(), "reviews/2025/7/9/abc")
	require.NoError(t, err)
	assert.Equal(t, "https://get/reviews/2025/7/9/abc", url)

	for _, key := range []string{"", "users/1", "reviews/../secret"} {
		_, err := svc.PresignDownload(context.Background(), key)
		assert.ErrorIs(t, err, common.ErrorInvalidInput, key)
	}
}

func TestReviewImageService_PresignErrors(t *testing.T) {
	svc := newReviewImageService(&fakePresigner{err: errors.New("no creds")}, "images", time.Minute)

	_, err := svc.PresignUpload(context.Background())
	assert.ErrorIs(t, err, common.ErrorInternal)

	_, err = svc.PresignDownload(context.Background(), "reviews/x")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestNewReviewImageService_UsesPresignSeam(t *testing.T) {
	orig := newS3PresignClient
	t.Cleanup(func() { newS3PresignClient = orig })

	fake := &fakePresigner{}
	var got *s3.Client
	newS3PresignClient = func(c *s3.Client) Presigner {
		got = c
		return fake
	}

	client := &s3.Client{}
	svc := NewReviewImageService(client, "b", time.Minute)
	assert.Same(t, client, got)
	assert.Same(t, fake, svc.presigner)
}
