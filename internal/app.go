// Package internal wires configuration, logging, the store and the
// transport into the components each CLI command drives. Dependencies are
// passed explicitly at construction; there is no shared mutable context.
package internal

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/huttdl/internal/download"
	"github.com/starford/huttdl/internal/fetch"
	"github.com/starford/huttdl/internal/rename"
	"github.com/starford/huttdl/internal/scrape"
	"github.com/starford/huttdl/internal/store"
)

// App holds the shared collaborators a command run needs.
type App struct {
	Config *Config
	Store  *store.DB
	Logger *slog.Logger
	Client *http.Client
}

// NewApp opens the store and initializes logging from the configuration.
func NewApp(cfg *Config) (*App, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	db, err := store.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	return &App{
		Config: cfg,
		Store:  db,
		Logger: logger,
		Client: &http.Client{},
	}, nil
}

// Close releases the store connection.
func (a *App) Close() error {
	return a.Store.Close()
}

// Fetcher builds the download executor with the creator's auth headers.
func (a *App) Fetcher() *fetch.Fetcher {
	return fetch.New(a.Client, fetch.DefaultBaseURL, a.Config.Creator.Cookie, a.Config.Creator.Name, a.Logger)
}

// Harvester builds the metadata harvester.
func (a *App) Harvester() *scrape.Harvester {
	return scrape.New(a.Client, a.Store, fetch.DefaultBaseURL, a.Config.Creator.Cookie,
		a.Config.Creator.ID, a.Config.Creator.Name, a.Logger)
}

// DownloadRunner builds the download run loop.
func (a *App) DownloadRunner() *download.Runner {
	return download.NewRunner(a.Store, a.Fetcher(), a.Config.FilenamePatterns(),
		a.Config.Download.Directory, a.Logger)
}

// RenameCoordinator builds the rename coordinator.
func (a *App) RenameCoordinator() *rename.Coordinator {
	return rename.NewCoordinator(a.Store, a.Config.FilenamePatterns(),
		a.Config.Download.Directory, a.Logger)
}

// BackupPath derives a timestamped sibling path for a database backup,
// e.g. ./hutt.2026-08-23_14-05-02.sqlite3.
func (a *App) BackupPath(now time.Time) string {
	path := a.Config.SQLite.Path
	ext := filepath.Ext(path)
	stamp := now.UTC().Format("2006-01-02_15-04-05")
	return strings.TrimSuffix(path, ext) + "." + stamp + ext
}
