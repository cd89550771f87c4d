package rename

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/huttdl/internal/filename"
	"github.com/starford/huttdl/internal/store"
	"github.com/starford/huttdl/internal/testutil"
)

var (
	oldPatterns = map[store.PostType]string{
		store.PostTypeVideo: "{type}/{post_id}/{link_id}",
		store.PostTypeImage: "{type}/{post_id}/{link_id}",
	}
	newPatterns = map[store.PostType]string{
		store.PostTypeVideo: "{type}/{post_id} - {link_id}",
		store.PostTypeImage: "{type}/{post_id} - {link_id}",
	}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedDownloaded inserts a post, places its file under the old pattern and
// marks the link downloaded. Returns the link and its current path.
func seedDownloaded(t *testing.T, db *store.DB, baseDir string, postID int64) (store.Link, string) {
	t.Helper()
	err := db.InsertPost(store.CreatePost{
		ID: postID, Title: "title", Creator: "c", Type: store.PostTypeImage,
		Links: []store.CreateLink{{
			URL:         "/images/1/big",
			ContentType: "image/jpeg",
			Source:      store.SourceImageGallery,
		}},
	})
	if err != nil {
		t.Fatalf("InsertPost: %v", err)
	}
	post, err := db.FetchByID(postID)
	if err != nil {
		t.Fatalf("FetchByID: %v", err)
	}
	link := post.Links[0]

	path := filename.Resolve(*post, link.ID, oldPatterns[post.Type], baseDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := db.UpdateStatus(link.ID, store.Downloaded(path, oldPatterns[post.Type])); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	return link, path
}

func TestRun_MovesDriftedFiles(t *testing.T) {
	db := testutil.TestStore(t)
	baseDir := t.TempDir()
	link, oldPath := seedDownloaded(t, db, baseDir, 1)

	c := NewCoordinator(db, newPatterns, baseDir, discardLogger())
	if err := c.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	post, _ := db.FetchByID(1)
	newPath := filename.Resolve(*post, link.ID, newPatterns[post.Type], baseDir)
	if post.Links[0].FilePath != newPath {
		t.Errorf("stored path = %q, want %q", post.Links[0].FilePath, newPath)
	}
	if post.Links[0].Pattern != newPatterns[post.Type] {
		t.Errorf("stored pattern = %q", post.Links[0].Pattern)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Errorf("file not at new path: %v", err)
	}
	if _, err := os.Stat(oldPath); !os.IsNotExist(err) {
		t.Errorf("file still at old path")
	}
}

func TestRun_NoopWhenPatternUnchanged(t *testing.T) {
	db := testutil.TestStore(t)
	baseDir := t.TempDir()
	_, path := seedDownloaded(t, db, baseDir, 1)

	c := NewCoordinator(db, oldPatterns, baseDir, discardLogger())
	if err := c.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file moved despite matching path: %v", err)
	}
}

func TestRun_DryRunMovesNothing(t *testing.T) {
	db := testutil.TestStore(t)
	baseDir := t.TempDir()
	_, oldPath := seedDownloaded(t, db, baseDir, 1)

	c := NewCoordinator(db, newPatterns, baseDir, discardLogger())
	if err := c.Run(context.Background(), true); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(oldPath); err != nil {
		t.Errorf("dry run moved the file: %v", err)
	}
	post, _ := db.FetchByID(1)
	if post.Links[0].FilePath != oldPath {
		t.Errorf("dry run mutated store: %q", post.Links[0].FilePath)
	}
}

func TestRun_MissingFileSkipped(t *testing.T) {
	db := testutil.TestStore(t)
	baseDir := t.TempDir()
	_, oldPath := seedDownloaded(t, db, baseDir, 1)
	if err := os.Remove(oldPath); err != nil {
		t.Fatal(err)
	}

	c := NewCoordinator(db, newPatterns, baseDir, discardLogger())
	if err := c.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	post, _ := db.FetchByID(1)
	if post.Links[0].FilePath != oldPath {
		t.Errorf("missing file's store entry changed: %q", post.Links[0].FilePath)
	}
}

type failingPathStore struct {
	*store.DB
}

func (f failingPathStore) UpdatePath(int64, string, string) error {
	return errors.New("database is locked")
}

func TestRun_RollbackWhenStoreUpdateFails(t *testing.T) {
	db := testutil.TestStore(t)
	baseDir := t.TempDir()
	_, oldPath := seedDownloaded(t, db, baseDir, 1)

	c := NewCoordinator(failingPathStore{db}, newPatterns, baseDir, discardLogger())
	err := c.Run(context.Background(), false)
	if err == nil {
		t.Fatal("Run succeeded despite store failure")
	}

	if _, statErr := os.Stat(oldPath); statErr != nil {
		t.Errorf("file not rolled back to original path: %v", statErr)
	}
	post, _ := db.FetchByID(1)
	if post.Links[0].FilePath != oldPath {
		t.Errorf("store path changed: %q", post.Links[0].FilePath)
	}
}

func TestRun_RemovesEmptiedDirectories(t *testing.T) {
	db := testutil.TestStore(t)
	baseDir := t.TempDir()
	_, oldPath := seedDownloaded(t, db, baseDir, 1)
	oldDir := filepath.Dir(oldPath)

	c := NewCoordinator(db, newPatterns, baseDir, discardLogger())
	if err := c.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if _, err := os.Stat(oldDir); !os.IsNotExist(err) {
		t.Errorf("emptied directory %s not removed", oldDir)
	}
	if _, err := os.Stat(baseDir); err != nil {
		t.Errorf("base directory removed: %v", err)
	}
}
