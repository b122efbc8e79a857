// Package catalog keeps the history of past runs in a bbolt database: the
// galleries seen, the archives produced and the work that failed.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketGalleries = []byte("galleries")
	bucketFailures  = []byte("failures")
	bucketArchives  = []byte("archives")
)

// Stage names where a failure happened.
const (
	StageMetadata = "metadata"
	StageDownload = "download"
	StagePackage  = "package"
)

// Gallery is what was last known about a pool.
type Gallery struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	PostCount int       `json:"post_count"`
	SeenAt    time.Time `json:"seen_at"`
}

// Archive is a produced zip file.
type Archive struct {
	GalleryID int       `json:"gallery_id"`
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	Pictures  int       `json:"pictures"`
	CreatedAt time.Time `json:"created_at"`
}

// Failure is work that did not complete. PostID is zero for gallery-level
// failures, GalleryID is zero for media shared between galleries.
type Failure struct {
	Stage     string    `json:"stage"`
	GalleryID int       `json:"gallery_id,omitempty"`
	PostID    int       `json:"post_id,omitempty"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// Key identifies the failure; a later failure of the same work replaces it.
func (f Failure) Key() string {
	return failureKey(f.Stage, f.GalleryID, f.PostID)
}

func failureKey(stage string, galleryID, postID int) string {
	return fmt.Sprintf("%s:%010d:%010d", stage, galleryID, postID)
}

func idKey(id int) []byte {
	return []byte(fmt.Sprintf("%010d", id))
}

// Catalog is the run history store.
type Catalog struct {
	db *bolt.DB
}

// Open opens or creates the catalog at path.
func Open(path string) (*Catalog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketGalleries, bucketFailures, bucketArchives} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Catalog{db: db}, nil
}

// Close releases the database. Closing twice is a no-op.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func (c *Catalog) put(bucket, key []byte, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put(key, data)
	})
}

// RecordGallery stores the latest metadata of a gallery.
func (c *Catalog) RecordGallery(g Gallery) error {
	if g.SeenAt.IsZero() {
		g.SeenAt = time.Now()
	}
	return c.put(bucketGalleries, idKey(g.ID), g)
}

// RecordArchive stores a produced archive and clears the gallery's
// packaging failure.
func (c *Catalog) RecordArchive(a Archive) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if err := c.put(bucketArchives, idKey(a.GalleryID), a); err != nil {
		return err
	}
	return c.ClearFailure(StagePackage, a.GalleryID, 0)
}

// RecordFailure stores f, replacing an earlier failure of the same work.
func (c *Catalog) RecordFailure(f Failure) error {
	if f.At.IsZero() {
		f.At = time.Now()
	}
	return c.put(bucketFailures, []byte(f.Key()), f)
}

// ClearFailure forgets a failure once the work succeeded.
func (c *Catalog) ClearFailure(stage string, galleryID, postID int) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketFailures).Delete([]byte(failureKey(stage, galleryID, postID)))
	})
}

func list[T any](c *Catalog, bucket []byte) ([]T, error) {
	var out []T
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).ForEach(func(k, v []byte) error {
			var item T
			if err := json.Unmarshal(v, &item); err != nil {
				return fmt.Errorf("corrupt entry %s/%s: %w", bucket, k, err)
			}
			out = append(out, item)
			return nil
		})
	})
	return out, err
}

// Galleries returns every known gallery by ascending ID.
func (c *Catalog) Galleries() ([]Gallery, error) {
	return list[Gallery](c, bucketGalleries)
}

// Archives returns every produced archive by ascending gallery ID.
func (c *Catalog) Archives() ([]Archive, error) {
	return list[Archive](c, bucketArchives)
}

// Failures returns outstanding failures, oldest first.
func (c *Catalog) Failures() ([]Failure, error) {
	failures, err := list[Failure](c, bucketFailures)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(failures, func(i, j int) bool {
		return failures[i].At.Before(failures[j].At)
	})
	return failures, nil
}
