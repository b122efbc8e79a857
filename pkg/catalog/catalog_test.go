package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Catalog, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "catalog.db")
	c, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, path
}

func TestGalleries(t *testing.T) {
	c, _ := openTemp(t)

	require.NoError(t, c.RecordGallery(Gallery{ID: 20, Name: "Second", PostCount: 3}))
	require.NoError(t, c.RecordGallery(Gallery{ID: 3, Name: "First", PostCount: 65}))
	require.NoError(t, c.RecordGallery(Gallery{ID: 20, Name: "Second renamed", PostCount: 4}))

	galleries, err := c.Galleries()
	require.NoError(t, err)
	require.Len(t, galleries, 2)
	assert.Equal(t, 3, galleries[0].ID)
	assert.Equal(t, "Second renamed", galleries[1].Name)
	assert.Equal(t, 4, galleries[1].PostCount)
	assert.False(t, galleries[1].SeenAt.IsZero())
}

func TestFailures(t *testing.T) {
	c, _ := openTemp(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, c.RecordFailure(Failure{Stage: StageDownload, PostID: 9, Reason: "404", At: base.Add(time.Minute)}))
	require.NoError(t, c.RecordFailure(Failure{Stage: StageMetadata, GalleryID: 7, Reason: "not found", At: base}))
	require.NoError(t, c.RecordFailure(Failure{Stage: StageDownload, PostID: 9, Reason: "timeout", At: base.Add(2 * time.Minute)}))

	failures, err := c.Failures()
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, StageMetadata, failures[0].Stage)
	assert.Equal(t, "timeout", failures[1].Reason)

	require.NoError(t, c.ClearFailure(StageDownload, 0, 9))
	failures, err = c.Failures()
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, 7, failures[0].GalleryID)
}

func TestArchiveClearsPackageFailure(t *testing.T) {
	c, _ := openTemp(t)

	require.NoError(t, c.RecordFailure(Failure{Stage: StagePackage, GalleryID: 5, Reason: "7z failed"}))
	require.NoError(t, c.RecordArchive(Archive{GalleryID: 5, Name: "Pool", Path: "/d/Pool.zip", Pictures: 12}))

	failures, err := c.Failures()
	require.NoError(t, err)
	assert.Empty(t, failures)

	archives, err := c.Archives()
	require.NoError(t, err)
	require.Len(t, archives, 1)
	assert.Equal(t, "/d/Pool.zip", archives[0].Path)
	assert.Equal(t, 12, archives[0].Pictures)
}

func TestReopenKeepsHistory(t *testing.T) {
	c, path := openTemp(t)
	require.NoError(t, c.RecordGallery(Gallery{ID: 1, Name: "kept"}))
	require.NoError(t, c.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	galleries, err := reopened.Galleries()
	require.NoError(t, err)
	require.Len(t, galleries, 1)
	assert.Equal(t, "kept", galleries[0].Name)
}
