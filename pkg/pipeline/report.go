package pipeline

import (
	"time"
)

// GalleryReport is the outcome of one packaged gallery.
type GalleryReport struct {
	ID      int
	Name    string
	Posts   int
	Archive string
	Missing []int
	Err     error
}

// SkippedGallery is a gallery whose metadata could not be used.
type SkippedGallery struct {
	ID  int
	Err error
}

// ItemFailure is a media item that could not be processed.
type ItemFailure struct {
	PostID int
	Err    error
}

// Report summarizes a run.
type Report struct {
	Requested   []int
	Galleries   []GalleryReport
	Skipped     []SkippedGallery
	Items       int
	Downloaded  int
	Cached      int
	FailedItems []ItemFailure
	StartedAt   time.Time
	Duration    time.Duration
}

// Archived counts the galleries packaged without error.
func (r *Report) Archived() int {
	n := 0
	for _, g := range r.Galleries {
		if g.Err == nil {
			n++
		}
	}
	return n
}

// FailureCount counts everything that did not complete: skipped galleries,
// failed items, failed packaging and pictures missing from archives.
func (r *Report) FailureCount() int {
	n := len(r.Skipped) + len(r.FailedItems)
	for _, g := range r.Galleries {
		if g.Err != nil {
			n++
		}
		n += len(g.Missing)
	}
	return n
}

// Failed reports whether anything went wrong.
func (r *Report) Failed() bool {
	return r.FailureCount() > 0
}
