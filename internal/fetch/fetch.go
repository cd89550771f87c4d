// Package fetch retrieves a link's media file to a destination path,
// dispatching to an HTTP download for images and a yt-dlp subprocess for
// videos. A failed fetch never leaves a partial destination file behind.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/starford/huttdl/internal/store"
)

// DefaultBaseURL is the site origin link URLs are relative to.
const DefaultBaseURL = "https://hutt.co"

// DefaultUserAgent is sent with every request; the site rejects unknown
// clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Fetcher downloads media files using the session cookie and identity
// headers the site requires.
type Fetcher struct {
	client    *http.Client
	baseURL   string
	cookie    string
	userAgent string
	referer   string
	ytdlp     string
	logger    *slog.Logger
}

// New creates a Fetcher. The referer is derived from the creator's profile
// URL, which the video CDN checks.
func New(client *http.Client, baseURL, cookie, creatorName string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		client:    client,
		baseURL:   baseURL,
		cookie:    cookie,
		userAgent: DefaultUserAgent,
		referer:   baseURL + "/" + creatorName,
		ytdlp:     "yt-dlp",
		logger:    logger,
	}
}

// Fetch downloads the link's file to dest, creating parent directories as
// needed. The caller has already established that dest does not exist.
func (f *Fetcher) Fetch(ctx context.Context, post store.Post, link store.Link, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("fetch: create dir for %s: %w", dest, err)
	}
	if post.Type == store.PostTypeVideo {
		return f.fetchVideo(ctx, link, dest)
	}
	return f.fetchImage(ctx, link, dest)
}

// fetchImage streams a GET response body to dest via a temp file in the
// same directory (tmp, fsync, rename), so an interrupted transfer cannot be
// mistaken for a completed download by a later existence check.
func (f *Fetcher) fetchImage(ctx context.Context, link store.Link, dest string) error {
	url := f.baseURL + link.URL
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("fetch: build request for %s: %w", url, err)
	}
	req.Header.Set("Cookie", f.cookie)
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch: get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch: get %s: unexpected status %s", url, resp.Status)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".huttdl-tmp-*")
	if err != nil {
		return fmt.Errorf("fetch: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		return fmt.Errorf("fetch: stream %s: %w", url, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fetch: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("fetch: close temp: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("fetch: rename into place: %w", err)
	}
	success = true

	f.logger.Info("downloaded image",
		slog.String("url", url),
		slog.String("dest", dest))
	return nil
}
