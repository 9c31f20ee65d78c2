package ioutils

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"gocloud.dev/blob"
)

// Fetcher transfers the document at url to destPath.
type Fetcher interface {
	Fetch(ctx context.Context, url, destPath string) error
}

type progressFetcher interface {
	DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) error
}

// BucketMirror is a Fetcher that copies every fetched document to a bucket.
//
// The inner Fetcher writes the local file first; the file is then uploaded
// under Prefix + base name. A failed upload fails the fetch, so an item only
// succeeds once it is stored in both places.
//
// Example:
//
//	bucket, _ := blob.OpenBucket(ctx, "s3://patents?region=eu-west-1")
//	f := &ioutils.BucketMirror{Fetcher: client, Bucket: bucket, Prefix: "batch-42/"}
type BucketMirror struct {
	Fetcher Fetcher
	Bucket  *blob.Bucket
	Prefix  string
}

// Fetch implements download.Fetcher.
func (m *BucketMirror) Fetch(ctx context.Context, url, destPath string) error {
	return m.DownloadFile(ctx, url, destPath, nil)
}

// DownloadFile fetches like Fetch, passing onProgress through when the inner
// Fetcher can report bytes. It implements download.ProgressFetcher.
func (m *BucketMirror) DownloadFile(ctx context.Context, url, destPath string, onProgress func(written, total int64)) error {
	var err error
	if pf, ok := m.Fetcher.(progressFetcher); ok && onProgress != nil {
		err = pf.DownloadFile(ctx, url, destPath, onProgress)
	} else {
		err = m.Fetcher.Fetch(ctx, url, destPath)
	}
	if err != nil {
		return err
	}

	f, err := os.Open(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	key := path.Join(m.Prefix, filepath.Base(destPath))
	opts := &blob.WriterOptions{ContentType: "application/pdf"}
	if err := m.Bucket.Upload(ctx, key, f, opts); err != nil {
		return fmt.Errorf("mirror %s: %w", key, err)
	}
	return nil
}

// OpenBucket opens the bucket at urlstr, e.g. "file:///srv/patents" or "mem://".
func OpenBucket(ctx context.Context, urlstr string) (*blob.Bucket, error) {
	bucket, err := blob.OpenBucket(ctx, urlstr)
	if err != nil {
		return nil, fmt.Errorf("open bucket %s: %w", urlstr, err)
	}
	return bucket, nil
}
