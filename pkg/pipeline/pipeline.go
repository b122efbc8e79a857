// Package pipeline drives a whole run: sign in, collect gallery metadata,
// fill the media cache and package each gallery.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"e6pools/internal/processor"
	"e6pools/pkg/browser"
	"e6pools/pkg/catalog"
	"e6pools/pkg/logger"
	"e6pools/pkg/pack"
	"e6pools/pkg/session"
	"e6pools/pkg/site"
	"e6pools/pkg/taskqueue"
)

// Phases reported through Options.OnPhase.
const (
	PhaseMetadata = "metadata"
	PhaseDownload = "download"
	PhasePackage  = "package"
)

// Fetcher loads documents through a tab. *navigator.Navigator implements it.
type Fetcher interface {
	Fetch(ctx context.Context, page browser.Page, target string) ([]byte, error)
}

// Authenticator signs the browser in. *session.Manager implements it.
type Authenticator interface {
	Login(ctx context.Context, creds session.Credentials) error
}

// MediaProcessor fills one cache entry. *processor.Processor implements it.
type MediaProcessor interface {
	Process(ctx context.Context, item site.MediaItem) processor.Result
}

// Packager builds one archive. *pack.Packager implements it.
type Packager interface {
	Package(ctx context.Context, g *site.Gallery, name string) pack.Result
}

// Cache is the part of the media cache the driver consults.
type Cache interface {
	Ensure() error
	Has(postID int) bool
	RemoveRaws() error
}

// History records run outcomes. *catalog.Catalog implements it.
type History interface {
	RecordGallery(g catalog.Gallery) error
	RecordArchive(a catalog.Archive) error
	RecordFailure(f catalog.Failure) error
	ClearFailure(stage string, galleryID, postID int) error
}

// Options wires a Driver.
type Options struct {
	Browser     browser.Browser
	Navigator   Fetcher
	Session     Authenticator
	Credentials session.Credentials
	Endpoints   site.Endpoints
	PageSize    int
	Cache       Cache
	Processor   MediaProcessor
	Packager    Packager
	Queue       *taskqueue.Queue
	// History is optional.
	History History
	// OnPhase is told when a phase starts and how much work it has.
	OnPhase func(phase string, total int)
	Logger  logger.Logger
}

// Driver runs the pipeline.
type Driver struct {
	opts Options
	log  logger.Logger
}

// New returns a Driver.
func New(opts Options) *Driver {
	if opts.PageSize <= 0 {
		opts.PageSize = site.DefaultPageSize
	}
	if opts.Queue == nil {
		opts.Queue = taskqueue.New(taskqueue.Options{Logger: opts.Logger})
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &Driver{opts: opts, log: opts.Logger.WithField("component", "pipeline")}
}

// Run processes the galleries in ids. Individual failures are recorded in
// the report and do not stop the run; the returned error is reserved for
// failed authentication, cancellation and an unusable cache.
func (d *Driver) Run(ctx context.Context, ids []int) (*Report, error) {
	report := &Report{Requested: site.NormalizeIDs(ids), StartedAt: time.Now()}
	defer func() { report.Duration = time.Since(report.StartedAt) }()

	if d.opts.Session != nil && !d.opts.Credentials.Empty() {
		if err := d.opts.Session.Login(ctx, d.opts.Credentials); err != nil {
			return report, err
		}
	}

	galleries, items, err := d.collect(ctx, report)
	if err != nil {
		return report, err
	}

	if err := d.opts.Cache.Ensure(); err != nil {
		return report, err
	}
	if err := d.download(ctx, items, report); err != nil {
		return report, err
	}
	if err := d.packageAll(ctx, galleries, report); err != nil {
		return report, err
	}

	if err := d.opts.Cache.RemoveRaws(); err != nil {
		d.log.WithError(err).Warn("Failed to remove raw downloads")
	}

	d.log.InfoWithFields("Run finished", map[string]interface{}{
		"galleries": report.Archived(),
		"skipped":   len(report.Skipped),
		"items":     report.Items,
		"failures":  report.FailureCount(),
	})
	return report, nil
}

func (d *Driver) phase(name string, total int) {
	if d.opts.OnPhase != nil {
		d.opts.OnPhase(name, total)
	}
}

// collect fetches the metadata of every gallery in order. Galleries that
// cannot be read are skipped.
func (d *Driver) collect(ctx context.Context, report *Report) ([]*site.Gallery, []site.MediaItem, error) {
	d.phase(PhaseMetadata, len(report.Requested))

	var (
		galleries []*site.Gallery
		items     []site.MediaItem
	)
	for _, id := range report.Requested {
		g, posts, err := d.fetchGallery(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			d.log.WithError(err).WithField("gallery_id", id).Warn("Skipping gallery")
			report.Skipped = append(report.Skipped, SkippedGallery{ID: id, Err: err})
			d.record(func(h History) error {
				return h.RecordFailure(catalog.Failure{Stage: catalog.StageMetadata, GalleryID: id, Reason: err.Error()})
			})
			continue
		}

		logger.LogGallery(d.log, g.ID, g.Name, "Gallery metadata collected")
		d.record(func(h History) error {
			if err := h.RecordGallery(catalog.Gallery{ID: g.ID, Name: g.Name, PostCount: g.PostCount}); err != nil {
				return err
			}
			return h.ClearFailure(catalog.StageMetadata, g.ID, 0)
		})
		galleries = append(galleries, g)
		items = append(items, posts...)
	}
	return galleries, site.DedupeItems(items), nil
}

// fetchGallery reads the pool document and every listing page of it on a
// fresh exclusive tab.
func (d *Driver) fetchGallery(ctx context.Context, id int) (*site.Gallery, []site.MediaItem, error) {
	page, err := d.opts.Browser.Exclusive(ctx)
	if err != nil {
		return nil, nil, err
	}

	body, err := d.opts.Navigator.Fetch(ctx, page, d.opts.Endpoints.Pool(id))
	if err != nil {
		return nil, nil, err
	}
	g, err := site.ParseGallery(id, body)
	if err != nil {
		return nil, nil, err
	}

	var items []site.MediaItem
	for n := 1; n <= site.ListingPages(g.PostCount, d.opts.PageSize); n++ {
		body, err := d.opts.Navigator.Fetch(ctx, page, d.opts.Endpoints.Posts(id, n, d.opts.PageSize))
		if err != nil {
			return nil, nil, fmt.Errorf("listing page %d: %w", n, err)
		}
		posts, err := site.ParsePosts(body)
		if err != nil {
			return nil, nil, fmt.Errorf("listing page %d: %w", n, err)
		}
		items = append(items, posts...)
	}
	return g, items, nil
}

// download queues every item missing from the cache and waits for all of
// them.
func (d *Driver) download(ctx context.Context, items []site.MediaItem, report *Report) error {
	report.Items = len(items)

	queued := make(map[*taskqueue.Handle]site.MediaItem)
	for _, item := range items {
		if d.opts.Cache.Has(item.PostID) {
			report.Cached++
			continue
		}
		item := item
		h := d.opts.Queue.Enqueue(ctx, fmt.Sprintf("post-%d", item.PostID), func(ctx context.Context) error {
			return d.opts.Processor.Process(ctx, item).Error
		})
		queued[h] = item
	}
	d.phase(PhaseDownload, len(queued))

	settled, err := d.opts.Queue.Drain(ctx)
	for _, h := range settled {
		item := queued[h]
		if h.IsRejected() {
			report.FailedItems = append(report.FailedItems, ItemFailure{PostID: item.PostID, Err: h.Err()})
			d.record(func(hist History) error {
				return hist.RecordFailure(catalog.Failure{Stage: catalog.StageDownload, PostID: item.PostID, Reason: h.Err().Error()})
			})
			continue
		}
		report.Downloaded++
		d.record(func(hist History) error {
			return hist.ClearFailure(catalog.StageDownload, 0, item.PostID)
		})
	}
	return err
}

// packageAll builds the archives on the queue.
func (d *Driver) packageAll(ctx context.Context, galleries []*site.Gallery, report *Report) error {
	d.phase(PhasePackage, len(galleries))

	var mu sync.Mutex
	results := make(map[int]pack.Result, len(galleries))
	names := pack.DirNames(galleries)
	for _, g := range galleries {
		g, name := g, names[g.ID]
		d.opts.Queue.Enqueue(ctx, fmt.Sprintf("gallery-%d", g.ID), func(ctx context.Context) error {
			res := d.opts.Packager.Package(ctx, g, name)
			mu.Lock()
			results[g.ID] = res
			mu.Unlock()
			return res.Error
		})
	}

	_, err := d.opts.Queue.Drain(ctx)

	mu.Lock()
	defer mu.Unlock()
	for _, g := range galleries {
		res, ok := results[g.ID]
		if !ok {
			continue
		}
		report.Galleries = append(report.Galleries, GalleryReport{
			ID:      g.ID,
			Name:    res.Name,
			Posts:   len(g.PostIDs),
			Archive: res.Archive,
			Missing: res.Missing,
			Err:     res.Error,
		})
		if res.Error != nil {
			d.log.WithError(res.Error).WithField("gallery_id", g.ID).Error("Packaging failed")
			d.record(func(h History) error {
				return h.RecordFailure(catalog.Failure{Stage: catalog.StagePackage, GalleryID: g.ID, Reason: res.Error.Error()})
			})
			continue
		}
		d.record(func(h History) error {
			return h.RecordArchive(catalog.Archive{GalleryID: g.ID, Name: res.Name, Path: res.Archive, Pictures: res.Copied})
		})
	}
	return err
}

// record applies fn to the history store, if any. Failures to record are
// logged only.
func (d *Driver) record(fn func(h History) error) {
	if d.opts.History == nil {
		return
	}
	if err := fn(d.opts.History); err != nil {
		d.log.WithError(err).Warn("Failed to update catalog")
	}
}
