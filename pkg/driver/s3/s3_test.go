//go:build integration

package s3

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/depotgo/depot/pkg/driver"
)

// createTestClient points at LocalStack (or LOCALSTACK_ENDPOINT if set),
// matching the teacher's integration test convention for AWS-backed stores.
func createTestClient(t *testing.T) *s3.Client {
	t.Helper()

	endpoint := os.Getenv("LOCALSTACK_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	ctx := context.Background()
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	require.NoError(t, err)

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = &endpoint
		o.UsePathStyle = true
	})
}

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	client := createTestClient(t)
	bucket := "depot-test-" + uuid.NewString()

	ctx := context.Background()
	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)

	t.Cleanup(func() {
		listResp, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(bucket)})
		if err == nil {
			for _, obj := range listResp.Contents {
				_, _ = client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: obj.Key})
			}
		}
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	})

	store, err := New(client, Config{Bucket: bucket})
	require.NoError(t, err)
	return store
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Create(ctx, []byte("hello s3"), "greeting.txt", "text/plain")
	require.NoError(t, err)

	f, err := s.Get(ctx, id)
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, "greeting.txt", f.Filename())
	require.Equal(t, "text/plain", f.ContentType())

	data, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "hello s3", string(data))
}

func TestReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	id, err := s.Create(ctx, []byte("v1"), "doc.txt", "text/plain")
	require.NoError(t, err)

	_, err = s.Replace(ctx, id, []byte("v2"), "", "")
	require.NoError(t, err)

	f, err := s.Get(ctx, id)
	require.NoError(t, err)
	data, err := io.ReadAll(f)
	f.Close()
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))

	require.NoError(t, s.Delete(ctx, id))
	exists, err := s.Exists(ctx, id)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestStorage(t)

	_, err := s.Get(ctx, uuid.NewString())
	require.ErrorIs(t, err, driver.ErrNotFound)
}
