// Package processor turns one media item into its cache entry: download
// the source file, then transcode it to webp.
package processor
