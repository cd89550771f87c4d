// Package dates backfills post creation dates by interpolating a range
// across the archive's fetch order: the first post gets the start date and
// later posts advance proportionally towards the end date.
package dates

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/huttdl/internal/store"
)

const dateFormat = "2006-01-02"

// Store is the persistence contract the backfill requires.
type Store interface {
	FetchAll() ([]store.Post, error)
	SetPostDate(postID int64, date time.Time) error
}

// ParseRange parses start and end as YYYY-MM-DD and rejects inverted
// ranges. Malformed input is unconditionally fatal, never recovered.
func ParseRange(start, end string) (time.Time, time.Time, error) {
	s, err := time.Parse(dateFormat, start)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("dates: parse start %q: %w", start, err)
	}
	e, err := time.Parse(dateFormat, end)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("dates: parse end %q: %w", end, err)
	}
	if s.After(e) {
		return time.Time{}, time.Time{}, fmt.Errorf("dates: end date must not be before start date")
	}
	return s, e, nil
}

// Lerp returns the date at the given fraction between start and end,
// rounded down to whole days.
func Lerp(start, end time.Time, fraction float64) time.Time {
	days := float64(end.Sub(start) / (24 * time.Hour))
	return start.AddDate(0, 0, int(days*fraction))
}

// Backfill sets an interpolated date on every post.
func Backfill(ctx context.Context, st Store, start, end time.Time, logger *slog.Logger) error {
	posts, err := st.FetchAll()
	if err != nil {
		return err
	}
	total := float64(len(posts))
	for i, post := range posts {
		if err := ctx.Err(); err != nil {
			return err
		}
		date := Lerp(start, end, float64(i)/total)
		logger.Info("setting post date",
			slog.Int64("post_id", post.ID),
			slog.String("date", date.Format(dateFormat)))
		if err := st.SetPostDate(post.ID, date); err != nil {
			return err
		}
	}
	return nil
}
