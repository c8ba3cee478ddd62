// Package archive stores raw ingested emails in Google Cloud Storage
// for auditing and parser debugging. Archiving is best effort: a failed
// upload is logged by the caller, never fatal to a sync run.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

// uploadTimeout bounds one object upload.
const uploadTimeout = 2 * time.Minute

// Archiver uploads raw messages to a bucket.
type Archiver interface {
	ArchiveEmail(ctx context.Context, account, uid string, raw []byte) error
}

// GCSArchiver implements Archiver on Google Cloud Storage.
type GCSArchiver struct {
	bucket string
}

// NewGCSArchiver creates an archiver targeting the given bucket. It
// assumes Application Default Credentials are configured.
func NewGCSArchiver(bucket string) *GCSArchiver {
	return &GCSArchiver{bucket: bucket}
}

// ArchiveEmail uploads one raw message under emails/<account>/<uid>.eml.
func (a *GCSArchiver) ArchiveEmail(ctx context.Context, account, uid string, raw []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("ArchiveEmail: create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	obj := client.Bucket(a.bucket).Object(ObjectName(account, uid))
	w := obj.NewWriter(ctx)
	if _, err := io.Copy(w, bytes.NewReader(raw)); err != nil {
		_ = w.Close()
		return fmt.Errorf("ArchiveEmail: copy to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("ArchiveEmail: close GCS writer: %w", err)
	}
	return nil
}

// ObjectName builds the bucket path for one message.
func ObjectName(account, uid string) string {
	return fmt.Sprintf("emails/%s/%s.eml", account, uid)
}
