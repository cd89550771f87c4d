// Package api exposes a read-only HTTP view of the archive for the serve
// command: status report and post listing.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/starford/huttdl/internal/report"
	"github.com/starford/huttdl/internal/store"
)

// Store is the read-only contract the handlers require.
type Store interface {
	FetchAll() ([]store.Post, error)
}

// Handler holds API route handlers.
type Handler struct {
	store Store
}

// NewHandler creates a new Handler.
func NewHandler(st Store) *Handler {
	return &Handler{store: st}
}

// PostResponse is the wire form of a post with its links.
type PostResponse struct {
	ID        int64          `json:"id"`
	Title     string         `json:"title"`
	Creator   string         `json:"creator"`
	Tags      []string       `json:"tags"`
	Type      string         `json:"type"`
	LikeCount int64          `json:"like_count"`
	CreatedAt string         `json:"created_at,omitempty"`
	Links     []LinkResponse `json:"links"`
}

// LinkResponse is the wire form of a link.
type LinkResponse struct {
	ID       int64  `json:"id"`
	URL      string `json:"url"`
	Source   string `json:"source"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	FilePath string `json:"file_path,omitempty"`
}

// Report handles GET /api/report.
func (h *Handler) Report(w http.ResponseWriter, _ *http.Request) {
	posts, err := h.store.FetchAll()
	if err != nil {
		slog.Error("report failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, report.Build(posts))
}

// Posts handles GET /api/posts.
func (h *Handler) Posts(w http.ResponseWriter, _ *http.Request) {
	posts, err := h.store.FetchAll()
	if err != nil {
		slog.Error("list posts failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	out := make([]PostResponse, 0, len(posts))
	for _, p := range posts {
		pr := PostResponse{
			ID:        p.ID,
			Title:     p.Title,
			Creator:   p.Creator,
			Tags:      p.Tags,
			Type:      string(p.Type),
			LikeCount: p.LikeCount,
		}
		if !p.CreatedAt.IsZero() {
			pr.CreatedAt = p.CreatedAt.Format(time.DateOnly)
		}
		for _, l := range p.Links {
			pr.Links = append(pr.Links, LinkResponse{
				ID:       l.ID,
				URL:      l.URL,
				Source:   string(l.Source),
				Status:   string(l.Status),
				Error:    l.Error,
				FilePath: l.FilePath,
			})
		}
		out = append(out, pr)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"posts": out,
		"total": len(out),
	})
}
