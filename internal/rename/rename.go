// Package rename relocates already-downloaded files after the filename
// pattern changed, keeping the store and the filesystem in agreement: a
// move whose store update fails is fully undone before the error surfaces.
package rename

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/starford/huttdl/internal/filename"
	"github.com/starford/huttdl/internal/store"
)

// Store is the state-store contract the coordinator requires. UpdatePath
// must fail cleanly, with no partial write, when the store is unreachable.
type Store interface {
	FetchAll() ([]store.Post, error)
	UpdatePath(linkID int64, filePath, pattern string) error
}

// Coordinator moves downloaded files whose resolved path drifted from their
// stored one.
type Coordinator struct {
	store    Store
	patterns map[store.PostType]string
	baseDir  string
	logger   *slog.Logger
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(st Store, patterns map[store.PostType]string, baseDir string, logger *slog.Logger) *Coordinator {
	return &Coordinator{store: st, patterns: patterns, baseDir: baseDir, logger: logger}
}

// Run recomputes the path of every downloaded link under the current
// pattern and moves files whose stored path differs. Missing source files
// are skipped with a warning. After a real pass, directories left empty
// under the base directory are removed; cleanup errors are fatal since an
// inconsistent tree after a rename pass indicates a deeper problem.
func (c *Coordinator) Run(ctx context.Context, dryRun bool) error {
	posts, err := c.store.FetchAll()
	if err != nil {
		return err
	}

	for _, post := range posts {
		for _, link := range post.Links {
			if link.Status != store.StatusDownloaded {
				continue
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			pattern := c.patterns[post.Type]
			newPath := filename.Resolve(post, link.ID, pattern, c.baseDir)
			if link.FilePath == newPath {
				continue
			}
			if info, err := os.Stat(link.FilePath); err != nil || !info.Mode().IsRegular() {
				c.logger.Warn("stored file missing, skipping",
					slog.Int64("link_id", link.ID),
					slog.String("path", link.FilePath))
				continue
			}

			c.logger.Info("renaming",
				slog.Int64("link_id", link.ID),
				slog.String("from", link.FilePath),
				slog.String("to", newPath))
			if dryRun {
				continue
			}
			if err := c.rename(link.ID, link.FilePath, newPath, pattern); err != nil {
				return err
			}
		}
	}

	if dryRun {
		return nil
	}
	return removeEmptyDirs(c.baseDir, c.logger)
}

// rename moves the file and stamps the new path in the store. If the store
// update fails the move is reversed, so filesystem and store never disagree
// about where the file lives.
func (c *Coordinator) rename(linkID int64, current, newPath, pattern string) error {
	if err := os.MkdirAll(filepath.Dir(newPath), 0o755); err != nil {
		return fmt.Errorf("rename: create dir for %s: %w", newPath, err)
	}
	if err := os.Rename(current, newPath); err != nil {
		return fmt.Errorf("rename: move %s: %w", current, err)
	}
	if err := c.store.UpdatePath(linkID, newPath, pattern); err != nil {
		c.logger.Warn("store update failed, rolling back rename",
			slog.Int64("link_id", linkID))
		if rbErr := os.Rename(newPath, current); rbErr != nil {
			return fmt.Errorf("rename: rollback of %s failed: %v (store error: %w)", newPath, rbErr, err)
		}
		return err
	}
	return nil
}

// removeEmptyDirs removes directories left empty under base, deepest first
// so a parent emptied by its children's removal is cleaned in the same
// pass. The base directory itself is kept.
func removeEmptyDirs(base string, logger *slog.Logger) error {
	var dirs []string
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() && path != base {
			dirs = append(dirs, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rename: walk %s: %w", base, err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return fmt.Errorf("rename: read dir %s: %w", dir, err)
		}
		if len(entries) == 0 {
			logger.Info("removing empty directory", slog.String("dir", dir))
			if err := os.Remove(dir); err != nil {
				return fmt.Errorf("rename: remove %s: %w", dir, err)
			}
		}
	}
	return nil
}
