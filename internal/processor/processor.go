package processor

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	errs "e6pools/pkg/errors"
	"e6pools/pkg/logger"
	"e6pools/pkg/site"
)

// Result is the outcome of processing one media item
type Result struct {
	Item     site.MediaItem
	Skipped  bool
	Error    error
	Duration time.Duration
}

// MediaCache is the part of the cache the processor writes to
type MediaCache interface {
	Has(postID int) bool
	RawPath(postID int, ext string) string
	CachePath(postID int) string
	TempPath(postID int) string
	Adopt(postID int, src string) error
}

// Fetcher downloads a URL to a file
type Fetcher interface {
	Fetch(ctx context.Context, url, out string) error
}

// Transcoder converts a downloaded file to webp
type Transcoder interface {
	Transcode(ctx context.Context, in, out string) error
}

// Processor downloads media items into the cache and transcodes them
type Processor struct {
	cache      MediaCache
	fetcher    Fetcher
	transcoder Transcoder
	logger     logger.Logger
}

// New creates a Processor
func New(cache MediaCache, fetcher Fetcher, transcoder Transcoder, log logger.Logger) *Processor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Processor{
		cache:      cache,
		fetcher:    fetcher,
		transcoder: transcoder,
		logger:     log,
	}
}

// Process makes sure the processed form of item is in the cache. webm files
// are stored as downloaded, everything else is transcoded.
func (p *Processor) Process(ctx context.Context, item site.MediaItem) Result {
	start := time.Now()
	result := Result{Item: item}
	defer func() {
		result.Duration = time.Since(start)
		logger.LogMediaItem(p.logger, item.PostID, item.Extension, result.Skipped, result.Error)
	}()

	if p.cache.Has(item.PostID) {
		result.Skipped = true
		return result
	}

	if item.SourceURL == "" {
		result.Error = errs.New(errs.ErrorTypeNotFound, "process",
			fmt.Sprintf("post %d has no file url", item.PostID))
		return result
	}

	ext := strings.ToLower(strings.TrimPrefix(item.Extension, "."))
	raw := p.cache.RawPath(item.PostID, ext)

	if err := p.fetcher.Fetch(ctx, item.SourceURL, raw); err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		return result
	}

	if ext == "webm" {
		if err := p.cache.Adopt(item.PostID, raw); err != nil {
			result.Error = errs.Wrap(errs.ErrorTypeProcess, "store", err)
		}
		return result
	}

	// Encode beside the entry and rename it in, so an interrupted encoder
	// never leaves a truncated file that looks processed.
	tmp := p.cache.TempPath(item.PostID)
	if err := p.transcoder.Transcode(ctx, raw, tmp); err != nil {
		result.Error = fmt.Errorf("transcode failed: %w", err)
		return result
	}
	if err := p.cache.Adopt(item.PostID, tmp); err != nil {
		os.Remove(tmp)
		result.Error = errs.Wrap(errs.ErrorTypeProcess, "store", err)
	}

	return result
}
