package s3

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"docvault-api/internal/shared/storage/object"
)

type fakeAPI struct {
	objects map[string]string
	puts    []*s3.PutObjectInput
	deletes []string
	putErr  error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string]string{}}
}

func (f *fakeAPI) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.puts = append(f.puts, in)
	f.objects[aws.ToString(in.Key)] = string(data)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(data))}, nil
}

func (f *fakeAPI) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deletes = append(f.deletes, aws.ToString(in.Key))
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestApplyPrefix(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{name: "no prefix", prefix: "", key: "user/file.pdf", want: "user/file.pdf"},
		{name: "simple prefix", prefix: "vault", key: "user/file.pdf", want: "vault/user/file.pdf"},
		{name: "prefix trailing slash", prefix: "vault/", key: "user/file.pdf", want: "vault/user/file.pdf"},
		{name: "prefix and key slashes", prefix: "/vault/", key: "/user/file.pdf", want: "vault/user/file.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := applyPrefix(tt.prefix, tt.key); got != tt.want {
				t.Fatalf("applyPrefix(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}

func TestPutOpenRemove(t *testing.T) {
	ctx := context.Background()
	fake := newFakeAPI()
	store := newWithClient(fake, Options{Bucket: "docs", Region: "eu-west-1", Prefix: "vault", KMSKeyID: "kms-1"})

	n, err := store.Put(ctx, "user-1/1.pdf", "application/pdf", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if n != 5 {
		t.Fatalf("expected 5 bytes, got %d", n)
	}
	put := fake.puts[0]
	if aws.ToString(put.Key) != "vault/user-1/1.pdf" || aws.ToString(put.ContentType) != "application/pdf" {
		t.Fatalf("unexpected put input key=%s type=%s", aws.ToString(put.Key), aws.ToString(put.ContentType))
	}
	if put.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms || aws.ToString(put.SSEKMSKeyId) != "kms-1" {
		t.Fatalf("expected kms encryption")
	}

	rc, err := store.Open(ctx, "user-1/1.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	if string(data) != "hello" {
		t.Fatalf("unexpected body %q", data)
	}

	if err := store.Remove(ctx, "user-1/1.pdf"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := store.Open(ctx, "user-1/1.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutWrapsClientError(t *testing.T) {
	fake := newFakeAPI()
	fake.putErr = errors.New("throttled")
	store := newWithClient(fake, Options{Bucket: "docs"})
	if _, err := store.Put(context.Background(), "u/1.png", "image/png", strings.NewReader("x")); err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{name: "regional", opts: Options{Bucket: "docs", Region: "eu-west-1"}, want: "https://docs.s3.eu-west-1.amazonaws.com/u/1.pdf"},
		{name: "global", opts: Options{Bucket: "docs"}, want: "https://docs.s3.amazonaws.com/u/1.pdf"},
		{name: "cdn with prefix", opts: Options{Bucket: "docs", Prefix: "vault", PublicBaseURL: "https://cdn.example/"}, want: "https://cdn.example/vault/u/1.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newWithClient(newFakeAPI(), tt.opts)
			if got := store.PublicURL("u/1.pdf"); got != tt.want {
				t.Fatalf("PublicURL = %q, want %q", got, tt.want)
			}
		})
	}
}
