package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/starford/huttdl/internal/store"
)

// Fixed subprocess flags: 3 parallel segment fetches, 3 retries, 120s
// between retries. Parallelism lives inside yt-dlp; the run loop itself is
// strictly sequential.
const (
	videoConcurrency = "3"
	videoRetries     = "3"
	videoRetrySleep  = "120"
)

// fetchVideo invokes yt-dlp with the required identity headers, working
// directory set to the destination's parent. A non-zero exit is a failure
// carrying the exit status; any file the process left at dest is removed so
// the next run retries cleanly.
func (f *Fetcher) fetchVideo(ctx context.Context, link store.Link, dest string) error {
	url := f.baseURL + link.URL
	dir := filepath.Dir(dest)

	cmd := exec.CommandContext(ctx, f.ytdlp,
		"--add-header", "Cookie: "+f.cookie,
		"--add-header", "User-Agent: "+f.userAgent,
		"--add-header", "Referer: "+f.referer,
		"-N", videoConcurrency,
		"-R", videoRetries,
		"--retry-sleep", videoRetrySleep,
		"-o", filepath.Base(dest),
		url,
	)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	f.logger.Info("starting video download",
		slog.String("url", url),
		slog.String("dest", dest))

	if err := cmd.Run(); err != nil {
		_ = os.Remove(dest) // never leave a partial file an existence check would trust
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return fmt.Errorf("fetch: yt-dlp exited with code %d for %s", exitErr.ExitCode(), link.URL)
		}
		return fmt.Errorf("fetch: run yt-dlp for %s: %w", link.URL, err)
	}

	f.logger.Info("downloaded video", slog.String("url", url), slog.String("dest", dest))
	return nil
}
