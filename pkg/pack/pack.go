// Package pack assembles a gallery's cached pictures and metadata into a
// zip archive in the destination directory.
package pack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"e6pools/pkg/logger"
	"e6pools/pkg/site"
	"golang.org/x/sync/errgroup"
)

const (
	picsDir  = "pics"
	metaFile = "meta.json"

	defaultCopyWorkers = 4
)

// Archiver turns dir into dir.zip.
type Archiver interface {
	Archive(ctx context.Context, dir string) error
}

// Source locates processed media by post ID.
type Source interface {
	CachePath(postID int) string
}

// Options configures a Packager.
type Options struct {
	DestDir  string
	Cache    Source
	Archiver Archiver
	// CopyWorkers bounds the concurrent picture copies of one gallery.
	CopyWorkers int
	Logger      logger.Logger
}

// Result describes one packaged gallery.
type Result struct {
	GalleryID int
	Name      string
	Archive   string
	Copied    int
	// Missing lists posts of the gallery without a cache entry. Their
	// sequence numbers are left unused.
	Missing []int
	Error   error
}

// Packager builds gallery archives.
type Packager struct {
	opts Options
}

// New returns a Packager.
func New(opts Options) *Packager {
	if opts.CopyWorkers <= 0 {
		opts.CopyWorkers = defaultCopyWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	return &Packager{opts: opts}
}

// Dir returns the staging directory for a gallery directory name.
func (p *Packager) Dir(name string) string {
	return filepath.Join(p.opts.DestDir, name)
}

// PictureName is the file name of the index-th picture (0-based).
func PictureName(index int) string {
	return fmt.Sprintf("%08d.webp", index+1)
}

// Package writes <dest>/<name>.zip containing pics/ and meta.json. An empty
// name means the sanitized gallery name. An existing archive is replaced.
// The staging directory is removed once the archive exists.
func (p *Packager) Package(ctx context.Context, g *site.Gallery, name string) Result {
	if name == "" {
		name = SanitizeName(g.Name, g.ID)
	}
	dir := p.Dir(name)
	result := Result{GalleryID: g.ID, Name: filepath.Base(dir), Archive: dir + ".zip"}
	log := p.opts.Logger.WithFields(map[string]interface{}{
		"gallery_id": g.ID,
		"gallery":    result.Name,
	})

	if err := os.RemoveAll(dir); err != nil {
		result.Error = fmt.Errorf("failed to clear %s: %w", dir, err)
		return result
	}
	pics := filepath.Join(dir, picsDir)
	if err := os.MkdirAll(pics, 0755); err != nil {
		result.Error = fmt.Errorf("failed to create %s: %w", pics, err)
		return result
	}
	if err := os.Remove(result.Archive); err != nil && !errors.Is(err, os.ErrNotExist) {
		result.Error = fmt.Errorf("failed to replace %s: %w", result.Archive, err)
		return result
	}

	copied, missing, err := p.copyPictures(ctx, g.PostIDs, pics)
	result.Copied, result.Missing = copied, missing
	if err != nil {
		result.Error = err
		return result
	}
	if len(missing) > 0 {
		log.WithField("missing", missing).Warn("Pictures missing from cache")
	}

	meta, err := g.MetaJSON()
	if err != nil {
		result.Error = err
		return result
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), meta, 0644); err != nil {
		result.Error = fmt.Errorf("failed to write %s: %w", metaFile, err)
		return result
	}

	if err := p.opts.Archiver.Archive(ctx, dir); err != nil {
		result.Error = err
		return result
	}
	if err := os.RemoveAll(dir); err != nil {
		log.WithError(err).Warn("Failed to remove staging directory")
	}

	logger.LogGallery(log, g.ID, result.Name, "Gallery packaged")
	return result
}

// copyPictures copies the cached entries of postIDs into dir, numbered by
// their position in the gallery.
func (p *Packager) copyPictures(ctx context.Context, postIDs []int, dir string) (int, []int, error) {
	var (
		mu      sync.Mutex
		copied  int
		missing []int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.CopyWorkers)
	for i, postID := range postIDs {
		i, postID := i, postID
		g.Go(func() error {
			src := p.opts.Cache.CachePath(postID)
			err := copyFile(gctx, src, filepath.Join(dir, PictureName(i)))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				copied++
				return nil
			case errors.Is(err, os.ErrNotExist):
				missing = append(missing, postID)
				return nil
			default:
				return err
			}
		})
	}
	err := g.Wait()
	sort.Ints(missing)
	return copied, missing, err
}

func copyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return out.Close()
}
