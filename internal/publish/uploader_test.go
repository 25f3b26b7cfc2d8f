package publish_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/minio/minio-go/v7"

	"tracktap/internal/config"
	"tracktap/internal/logging"
	"tracktap/internal/publish"
	"tracktap/internal/services"
)

type fakeStore struct {
	exists  bool
	made    []string
	puts    []string
	putErr  error
	opts    []minio.PutObjectOptions
	checked int
}

func (f *fakeStore) BucketExists(_ context.Context, _ string) (bool, error) {
	f.checked++
	return f.exists, nil
}

func (f *fakeStore) MakeBucket(_ context.Context, bucket string, _ minio.MakeBucketOptions) error {
	f.made = append(f.made, bucket)
	f.exists = true
	return nil
}

func (f *fakeStore) FPutObject(_ context.Context, bucket, object, _ string, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}
	f.puts = append(f.puts, bucket+"/"+object)
	f.opts = append(f.opts, opts)
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: 42}, nil
}

func TestObjectKey(t *testing.T) {
	u := publish.NewWithStore(&fakeStore{}, "music", "us-east-1", "/captures/", logging.NewNop())
	got := u.ObjectKey("Road Trip", filepath.Join("/out", "Road Trip", "A - One.mp3"))
	if got != "captures/Road Trip/A - One.mp3" {
		t.Fatalf("ObjectKey = %q", got)
	}

	bare := publish.NewWithStore(&fakeStore{}, "music", "", "", logging.NewNop())
	if got := bare.ObjectKey("", "/out/x.mp3"); got != "x.mp3" {
		t.Fatalf("ObjectKey without prefix or title = %q", got)
	}
}

func TestPublishCreatesBucketOnce(t *testing.T) {
	store := &fakeStore{}
	u := publish.NewWithStore(store, "music", "us-east-1", "", logging.NewNop())
	ctx := context.Background()

	for _, name := range []string{"a.mp3", "b.mp3"} {
		if err := u.Publish(ctx, "Mix", filepath.Join("/out", name)); err != nil {
			t.Fatalf("Publish %s: %v", name, err)
		}
	}
	if len(store.made) != 1 || store.made[0] != "music" {
		t.Fatalf("expected bucket created once, got %v", store.made)
	}
	if store.checked != 1 {
		t.Fatalf("expected one existence check, got %d", store.checked)
	}
	if len(store.puts) != 2 || store.puts[1] != "music/Mix/b.mp3" {
		t.Fatalf("unexpected uploads: %v", store.puts)
	}
	if store.opts[0].ContentType != "audio/mpeg" {
		t.Fatalf("content type = %q", store.opts[0].ContentType)
	}
}

func TestPublishWrapsUploadFailure(t *testing.T) {
	store := &fakeStore{exists: true, putErr: errors.New("connection reset")}
	u := publish.NewWithStore(store, "music", "", "", logging.NewNop())
	err := u.Publish(context.Background(), "Mix", "/out/a.mp3")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestPublishRejectsEmptyPath(t *testing.T) {
	u := publish.NewWithStore(&fakeStore{}, "music", "", "", logging.NewNop())
	if err := u.Publish(context.Background(), "Mix", " "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewDisabledReturnsNil(t *testing.T) {
	cfg := config.Default()
	u, err := publish.New(&cfg, logging.NewNop())
	if err != nil || u != nil {
		t.Fatalf("expected nil uploader, got %v, %v", u, err)
	}
	if err := u.Publish(context.Background(), "Mix", "/out/a.mp3"); err != nil {
		t.Fatalf("nil uploader Publish: %v", err)
	}
}
