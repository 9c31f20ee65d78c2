// Package ioutils provides file system and storage utilities.
//
// This package contains functions for:
//   - Reading input files line by line
//   - Writing export files
//   - Directory creation
//   - Mirroring downloaded documents to a gocloud.dev blob bucket
//
// # File Operations
//
//	lines, err := ioutils.ReadLines("/docs/patents.txt")
//	err = ioutils.WriteLines("/docs/Failed.txt", lines)
//	err = ioutils.EnsureDir("/docs/out")
//
// # Bucket Mirror
//
// BucketMirror wraps a Fetcher and uploads each fetched file:
//
//	bucket, _ := ioutils.OpenBucket(ctx, "file:///srv/patents")
//	defer bucket.Close()
//	f := &ioutils.BucketMirror{Fetcher: client, Bucket: bucket}
package ioutils
