package remotetier

import (
	"context"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// GCSTier mirrors blobs into a Google Cloud Storage bucket.
type GCSTier struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSTier wraps an already-configured GCS client.
func NewGCSTier(client *storage.Client, bucket, prefix string) *GCSTier {
	return &GCSTier{client: client, bucket: bucket, prefix: prefix}
}

func (t *GCSTier) Put(ctx context.Context, digestHex string, r io.Reader, size int64) error {
	name := t.objectName(digestHex)
	w := t.client.Bucket(t.bucket).Object(name).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("remotetier: gcs put %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("remotetier: gcs finalize %s: %w", name, err)
	}
	return nil
}

func (t *GCSTier) objectName(digestHex string) string {
	if t.prefix == "" {
		return "sha256/" + digestHex
	}
	return t.prefix + "/sha256/" + digestHex
}
