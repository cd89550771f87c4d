package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const dateFormat = "2006-01-02"

const fetchColumns = `
	p.id, p.title, p.creator, p.tags, p.post_type, p.like_count, p.generated_title, p.created_at,
	pl.id, pl.url, pl.content_type, pl.source, pl.status, pl.error, pl.file_path, pl.file_path_pattern`

// InsertPost inserts a post and its links within a transaction, links
// starting pending. A post id already present is ignored together with its
// links, so re-running the harvester never duplicates rows.
func (db *DB) InsertPost(p CreatePost) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags, err := json.Marshal(p.Tags)
	if err != nil {
		return fmt.Errorf("store: encode tags: %w", err)
	}

	res, err := tx.Exec(`
		INSERT OR IGNORE INTO posts (id, title, creator, tags, post_type, like_count)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Title, p.Creator, string(tags), string(p.Type), p.LikeCount)
	if err != nil {
		return fmt.Errorf("store: insert post %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tx.Commit() // already harvested
	}

	stmt, err := tx.Prepare(`
		INSERT INTO post_links (url, content_type, source, post_id, status)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("store: prepare link insert: %w", err)
	}
	defer stmt.Close()
	for _, l := range p.Links {
		if _, err := stmt.Exec(l.URL, l.ContentType, string(l.Source), p.ID, string(StatusPending)); err != nil {
			return fmt.Errorf("store: insert link for post %d: %w", p.ID, err)
		}
	}

	return tx.Commit()
}

// FetchAll returns every post ascending by id, each with its links in
// insertion order. This is the single source of work items per run.
func (db *DB) FetchAll() ([]Post, error) {
	rows, err := db.conn.Query(`
		SELECT ` + fetchColumns + `
		FROM posts p INNER JOIN post_links pl ON p.id = pl.post_id
		ORDER BY p.id ASC, pl.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("store: fetch all: %w", err)
	}
	defer rows.Close()
	return scanPosts(rows)
}

// FetchByID returns a single post with its links.
func (db *DB) FetchByID(id int64) (*Post, error) {
	rows, err := db.conn.Query(`
		SELECT `+fetchColumns+`
		FROM posts p INNER JOIN post_links pl ON p.id = pl.post_id
		WHERE p.id = ?
		ORDER BY pl.id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("store: fetch post %d: %w", id, err)
	}
	defer rows.Close()
	posts, err := scanPosts(rows)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, fmt.Errorf("store: post %d not found", id)
	}
	return &posts[0], nil
}

// UpdateStatus records the outcome for a link. Each variant is a single
// UPDATE so the status transition commits atomically:
//   - Downloaded sets status, file_path and file_path_pattern, clears error.
//   - Failed sets status and error.
//   - Requeued clears file_path, file_path_pattern and error.
func (db *DB) UpdateStatus(linkID int64, u StatusUpdate) error {
	var err error
	switch u.status {
	case StatusDownloaded:
		_, err = db.conn.Exec(`
			UPDATE post_links
			SET status = ?, file_path = ?, file_path_pattern = ?, error = NULL
			WHERE id = ?
		`, string(StatusDownloaded), u.filePath, u.pattern, linkID)
	case StatusError:
		_, err = db.conn.Exec(`
			UPDATE post_links SET status = ?, error = ? WHERE id = ?
		`, string(StatusError), u.message, linkID)
	case StatusPending:
		_, err = db.conn.Exec(`
			UPDATE post_links
			SET status = ?, error = NULL, file_path = NULL, file_path_pattern = NULL
			WHERE id = ?
		`, string(StatusPending), linkID)
	default:
		return fmt.Errorf("store: invalid status update %q", u.status)
	}
	if err != nil {
		return fmt.Errorf("store: update status for link %d: %w", linkID, err)
	}
	return nil
}

// UpdatePath re-stamps file_path and file_path_pattern after a rename.
func (db *DB) UpdatePath(linkID int64, filePath, pattern string) error {
	_, err := db.conn.Exec(`
		UPDATE post_links SET file_path = ?, file_path_pattern = ? WHERE id = ?
	`, filePath, pattern, linkID)
	if err != nil {
		return fmt.Errorf("store: update path for link %d: %w", linkID, err)
	}
	return nil
}

// ResetDownloads resets every link to pending, clearing path, pattern and
// error so the invariant "file_path present iff downloaded" holds.
func (db *DB) ResetDownloads() error {
	_, err := db.conn.Exec(`
		UPDATE post_links
		SET status = ?, error = NULL, file_path = NULL, file_path_pattern = NULL
	`, string(StatusPending))
	if err != nil {
		return fmt.Errorf("store: reset downloads: %w", err)
	}
	return nil
}

// SetPostDate sets a post's creation date.
func (db *DB) SetPostDate(postID int64, date time.Time) error {
	_, err := db.conn.Exec(`UPDATE posts SET created_at = ? WHERE id = ?`,
		date.Format(dateFormat), postID)
	if err != nil {
		return fmt.Errorf("store: set date for post %d: %w", postID, err)
	}
	return nil
}

// SetGeneratedTitle sets a post's generated title override.
func (db *DB) SetGeneratedTitle(postID int64, title string) error {
	_, err := db.conn.Exec(`UPDATE posts SET generated_title = ? WHERE id = ?`,
		title, postID)
	if err != nil {
		return fmt.Errorf("store: set generated title for post %d: %w", postID, err)
	}
	return nil
}

func scanPosts(rows *sql.Rows) ([]Post, error) {
	var posts []Post
	for rows.Next() {
		var (
			id, likeCount          int64
			title, creator, tags   string
			postType               string
			generatedTitle         sql.NullString
			createdAt              sql.NullString
			linkID                 int64
			url, contentType       string
			source, status         string
			errMsg, filePath, pat  sql.NullString
		)
		if err := rows.Scan(
			&id, &title, &creator, &tags, &postType, &likeCount, &generatedTitle, &createdAt,
			&linkID, &url, &contentType, &source, &status, &errMsg, &filePath, &pat,
		); err != nil {
			return nil, fmt.Errorf("store: scan row: %w", err)
		}

		link, err := buildLink(linkID, url, contentType, source, status, errMsg, filePath, pat)
		if err != nil {
			return nil, err
		}

		if len(posts) > 0 && posts[len(posts)-1].ID == id {
			p := &posts[len(posts)-1]
			p.Links = append(p.Links, link)
			continue
		}

		p, err := buildPost(id, title, creator, tags, postType, likeCount, generatedTitle, createdAt)
		if err != nil {
			return nil, err
		}
		p.Links = append(p.Links, link)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func buildPost(id int64, title, creator, tags, postType string, likeCount int64, generatedTitle, createdAt sql.NullString) (Post, error) {
	pt, err := ParsePostType(postType)
	if err != nil {
		return Post{}, fmt.Errorf("store: post %d: %w", id, err)
	}
	var tagList []string
	if err := json.Unmarshal([]byte(tags), &tagList); err != nil {
		return Post{}, fmt.Errorf("store: post %d: decode tags: %w", id, err)
	}
	p := Post{
		ID:             id,
		Title:          title,
		Creator:        creator,
		Tags:           tagList,
		Type:           pt,
		LikeCount:      likeCount,
		GeneratedTitle: generatedTitle.String,
	}
	if createdAt.Valid && createdAt.String != "" {
		t, err := time.Parse(dateFormat, createdAt.String)
		if err != nil {
			return Post{}, fmt.Errorf("store: post %d: parse created_at: %w", id, err)
		}
		p.CreatedAt = t
	}
	return p, nil
}

func buildLink(id int64, url, contentType, source, status string, errMsg, filePath, pattern sql.NullString) (Link, error) {
	src, err := ParseLinkSource(source)
	if err != nil {
		return Link{}, fmt.Errorf("store: link %d: %w", id, err)
	}
	st, err := ParseLinkStatus(status)
	if err != nil {
		return Link{}, fmt.Errorf("store: link %d: %w", id, err)
	}
	return Link{
		ID:          id,
		URL:         url,
		ContentType: contentType,
		Source:      src,
		Status:      st,
		Error:       errMsg.String,
		FilePath:    filePath.String,
		Pattern:     pattern.String,
	}, nil
}
