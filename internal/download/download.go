// Package download drives the per-link download state machine: it selects
// every link not yet downloaded, resolves its destination path and either
// records an already-present file or fetches it, committing each link's
// outcome to the store before the next link is considered.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/huttdl/internal/filename"
	"github.com/starford/huttdl/internal/store"
)

// Store is the state-store contract the run loop requires. Operations are
// individually transactional; a crash between filesystem action and status
// write must never mark a link downloaded without a recorded path.
type Store interface {
	FetchAll() ([]store.Post, error)
	UpdateStatus(linkID int64, u store.StatusUpdate) error
}

// Fetcher retrieves one link's file to dest, succeeding or failing whole.
type Fetcher interface {
	Fetch(ctx context.Context, post store.Post, link store.Link, dest string) error
}

// Options controls a single run.
type Options struct {
	// DryRun resolves paths and logs intended actions without fetching or
	// mutating store state.
	DryRun bool
	// FailFast aborts the whole run on the first fetch error, after the
	// error has been recorded. Off, remaining links are still attempted.
	FailFast bool
}

// Stats summarizes a run.
type Stats struct {
	Succeeded int // fetched and recorded
	Skipped   int // destination already existed, recorded as success
	Failed    int // fetch errors recorded
	Planned   int // dry-run intents logged
}

// Runner iterates all pending work strictly sequentially, one link at a
// time.
type Runner struct {
	store    Store
	fetcher  Fetcher
	patterns map[store.PostType]string
	baseDir  string
	logger   *slog.Logger
}

// NewRunner creates a Runner over the given collaborators.
func NewRunner(st Store, f Fetcher, patterns map[store.PostType]string, baseDir string, logger *slog.Logger) *Runner {
	return &Runner{store: st, fetcher: f, patterns: patterns, baseDir: baseDir, logger: logger}
}

// Run processes every link whose status is not downloaded. Error links are
// selected identically to pending ones, so transient failures retry on the
// next run. Store-update failures are always fatal: silently losing a
// status write would break the path/downloaded invariant.
func (r *Runner) Run(ctx context.Context, opts Options) (Stats, error) {
	var stats Stats

	posts, err := r.store.FetchAll()
	if err != nil {
		return stats, err
	}

	pending := 0
	for _, post := range posts {
		for _, link := range post.Links {
			if link.Status != store.StatusDownloaded {
				pending++
			}
		}
	}
	r.logger.Info("starting download run",
		slog.Int("posts", len(posts)),
		slog.Int("pending_links", pending),
		slog.Bool("dry_run", opts.DryRun))

	for _, post := range posts {
		for _, link := range post.Links {
			if link.Status == store.StatusDownloaded {
				continue
			}
			if err := ctx.Err(); err != nil {
				return stats, err
			}

			pattern := r.patterns[post.Type]
			dest := filename.Resolve(post, link.ID, pattern, r.baseDir)
			log := r.logger.With(
				slog.Int64("post_id", post.ID),
				slog.Int64("link_id", link.ID),
				slog.String("dest", dest))

			if isRegularFile(dest) {
				if opts.DryRun {
					log.Info("dry run: file already exists, would record success")
					stats.Planned++
					continue
				}
				log.Info("file already exists, recording success")
				if err := r.store.UpdateStatus(link.ID, store.Downloaded(dest, pattern)); err != nil {
					return stats, err
				}
				stats.Skipped++
				continue
			}

			if opts.DryRun {
				log.Info("dry run: would download")
				stats.Planned++
				continue
			}

			if fetchErr := r.fetcher.Fetch(ctx, post, link, dest); fetchErr != nil {
				log.Warn("download failed", slog.String("error", fetchErr.Error()))
				if err := r.store.UpdateStatus(link.ID, store.Failed(fetchErr.Error())); err != nil {
					return stats, err
				}
				stats.Failed++
				if opts.FailFast {
					return stats, fmt.Errorf("download: link %d: %w", link.ID, fetchErr)
				}
				continue
			}

			if err := r.store.UpdateStatus(link.ID, store.Downloaded(dest, pattern)); err != nil {
				return stats, err
			}
			stats.Succeeded++
			log.Info("download complete",
				slog.Int("done", stats.Succeeded+stats.Skipped+stats.Failed),
				slog.Int("total", pending))
		}
	}

	return stats, nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
