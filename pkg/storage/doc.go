// Package storage manages the on-disk media cache.
//
// The cache lives under a single root directory:
//
//	<root>/files/<postID>.webp        processed media
//	<root>/files/raws/<postID>.<ext>  downloads awaiting transcoding
//
// A post whose .webp file exists is considered processed and is never
// downloaded again. Raw downloads are scratch space and are removed at the
// end of a run.
//
// Usage:
//
//	cache, err := storage.NewCache(cfg.Paths.CacheDir)
//	if err != nil {
//	    return err
//	}
//	if !cache.Has(postID) {
//	    // download into cache.RawPath(postID, ext), then transcode
//	    // into cache.CachePath(postID)
//	}
package storage
