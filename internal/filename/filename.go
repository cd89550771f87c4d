// Package filename derives destination paths for downloaded media from post
// metadata and a user-supplied pattern string. Everything here is pure:
// no I/O, no state, and Resolve never fails — bad input is absorbed by
// sanitization.
package filename

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/starford/huttdl/internal/store"
)

// maxTitleLen caps the derived display title, counted over token characters.
const maxTitleLen = 50

// Resolve computes the destination path for a link by substituting
// {post_id}, {title}, {link_id} and {type} in pattern, sanitizing each
// /-separated segment independently, joining under baseDir and forcing the
// extension for the post type (mp4 for videos, jpeg for images).
func Resolve(post store.Post, linkID int64, pattern, baseDir string) string {
	typeName := "Images"
	ext := "jpeg"
	if post.Type == store.PostTypeVideo {
		typeName = "Videos"
		ext = "mp4"
	}

	name := strings.NewReplacer(
		"{post_id}", strconv.FormatInt(post.ID, 10),
		"{title}", Title(post),
		"{link_id}", strconv.FormatInt(linkID, 10),
		"{type}", typeName,
	).Replace(pattern)

	segments := make([]string, 0, 4)
	for _, part := range strings.Split(name, "/") {
		s := sanitizeSegment(part)
		if s == "" {
			continue
		}
		segments = append(segments, s)
	}

	path := filepath.Join(append([]string{baseDir}, segments...)...)
	return setExtension(path, ext)
}

// Title derives the display title for a post: tokens of the raw title minus
// URL-looking ones, greedily accumulated up to the length cap; falling back
// to the tags, then to "no title".
func Title(post store.Post) string {
	var tokens []string
	for _, tok := range strings.Fields(post.Title) {
		if strings.HasPrefix(tok, "http") {
			continue
		}
		// Slashes inside a token must never create directory levels.
		tok = strings.TrimSpace(strings.ReplaceAll(tok, "/", " "))
		if tok == "" {
			continue
		}
		tokens = append(tokens, tok)
	}

	title := limitLength(tokens, maxTitleLen)
	if title == "" {
		title = limitLength(post.Tags, maxTitleLen)
	}
	if title == "" {
		title = "no title"
	}
	return strings.TrimSpace(title)
}

// limitLength space-joins tokens while the cumulative token length stays
// within max. A token that would cross the limit is excluded whole; there is
// no mid-token truncation.
func limitLength(tokens []string, max int) string {
	var kept []string
	length := 0
	for _, tok := range tokens {
		if length+len(tok) > max {
			break
		}
		length += len(tok)
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// sanitizeSegment strips filesystem-illegal characters from one path
// segment, replacing each with a single space, then trims surrounding
// whitespace and trailing dots.
func sanitizeSegment(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r < 0x20, r == 0x7f:
			b.WriteRune(' ')
		case strings.ContainsRune(`/\?<>:*|"`, r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	out = strings.TrimRight(out, ". ")
	return out
}

// setExtension replaces any extension implied by the pattern with ext. A
// dot-suffix containing spaces is title text, not an extension, and is kept.
func setExtension(path, ext string) string {
	if old := filepath.Ext(path); old != "" && len(old) <= 6 && !strings.Contains(old, " ") {
		path = strings.TrimSuffix(path, old)
	}
	return path + "." + ext
}
