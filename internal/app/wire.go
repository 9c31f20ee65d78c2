package app

import (
	"context"
	"log/slog"

	slogctx "github.com/veqryn/slog-context"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"

	"github.com/handiism/patent-downloader/internal/config"
	"github.com/handiism/patent-downloader/internal/download"
	pdlhttp "github.com/handiism/patent-downloader/internal/http"
	ioutils "github.com/handiism/patent-downloader/internal/io"
	"github.com/handiism/patent-downloader/internal/patents"
)

// Open builds an App that resolves through Google Patents and fetches over
// HTTP. When settings.BucketURL is set every document is also mirrored to
// that bucket. The returned func releases the bucket.
func Open(ctx context.Context, settings *config.Settings) (*App, func() error, error) {
	if settings == nil {
		settings = config.DefaultSettings()
	}

	client := pdlhttp.NewClient(settings.ToHTTPOptions())
	resolver := patents.NewResolver(client, settings.ResolverBaseURL)

	var fetcher download.Fetcher = client
	closeFn := func() error { return nil }

	if settings.BucketURL != "" {
		bucket, err := ioutils.OpenBucket(ctx, settings.BucketURL)
		if err != nil {
			return nil, nil, err
		}
		slogctx.FromCtx(ctx).InfoContext(ctx, "mirroring documents", slog.String("bucket", settings.BucketURL))
		fetcher = &ioutils.BucketMirror{Fetcher: client, Bucket: bucket}
		closeFn = bucket.Close
	}

	return New(settings, resolver, fetcher), closeFn, nil
}
