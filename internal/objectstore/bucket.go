package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	gcs "cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// tokenMetadataKey is the object metadata key Firebase Storage reads
// download tokens from.
const tokenMetadataKey = "firebaseStorageDownloadTokens"

// BucketStore stores objects in a Cloud Storage bucket and returns Firebase
// token download URLs.
type BucketStore struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

// NewBucketStore wraps the default Firebase bucket.
func NewBucketStore(bucket *gcs.BucketHandle, bucketName string) *BucketStore {
	return &BucketStore{bucket: bucket, bucketName: bucketName}
}

var _ ObjectStore = (*BucketStore)(nil)

func (b *BucketStore) Upload(ctx context.Context, path string, r io.Reader, size int64, contentType string, progress ProgressFunc) error {
	w := b.bucket.Object(path).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{tokenMetadataKey: uuid.NewString()}
	if progress != nil {
		w.ProgressFunc = func(written int64) { progress(written, size) }
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload %s: %w", path, err)
	}
	if progress != nil {
		progress(size, size)
	}
	return nil
}

func (b *BucketStore) URL(ctx context.Context, path string) (string, error) {
	attrs, err := b.bucket.Object(path).Attrs(ctx)
	if err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return "", fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return "", fmt.Errorf("failed to read attributes of %s: %w", path, err)
	}
	return DownloadURL(b.bucketName, path, attrs.Metadata[tokenMetadataKey]), nil
}

func (b *BucketStore) Delete(ctx context.Context, path string) error {
	if err := b.bucket.Object(path).Delete(ctx); err != nil {
		if errors.Is(err, gcs.ErrObjectNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	return nil
}

// DownloadURL builds the Firebase Storage download URL of an object.
func DownloadURL(bucket, path, token string) string {
	u := fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media",
		bucket, url.PathEscape(path))
	if token != "" {
		u += "&token=" + url.QueryEscape(token)
	}
	return u
}
