// Package report aggregates per-link download state into status counts.
package report

import (
	"fmt"
	"io"

	"github.com/starford/huttdl/internal/store"
)

// Summary holds link counts by status over the whole archive.
type Summary struct {
	Total      int `json:"total"`
	Downloaded int `json:"downloaded"`
	Errored    int `json:"errored"`
	Pending    int `json:"pending"`
}

// Build computes a Summary over the given posts.
func Build(posts []store.Post) Summary {
	var s Summary
	for _, post := range posts {
		for _, link := range post.Links {
			s.Total++
			switch link.Status {
			case store.StatusDownloaded:
				s.Downloaded++
			case store.StatusError:
				s.Errored++
			default:
				s.Pending++
			}
		}
	}
	return s
}

// Print writes the human-readable report.
func (s Summary) Print(w io.Writer) {
	fmt.Fprintf(w, "Total links: %d\n", s.Total)
	fmt.Fprintf(w, "Downloaded links: %d\n", s.Downloaded)
	fmt.Fprintf(w, "Error links: %d\n", s.Errored)
	fmt.Fprintf(w, "Pending links: %d\n", s.Pending)
}
