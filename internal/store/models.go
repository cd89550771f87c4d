package store

import (
	"fmt"
	"time"
)

// PostType determines which fetch strategy and file extension apply to all
// links of a post. Fixed at creation.
type PostType string

const (
	PostTypeVideo PostType = "video"
	PostTypeImage PostType = "image"
)

// ParsePostType parses a stored post type. Unknown values are an error, not
// a panic; the caller surfaces them as a store read error.
func ParsePostType(s string) (PostType, error) {
	switch s {
	case "video", "Video":
		return PostTypeVideo, nil
	case "image", "Image":
		return PostTypeImage, nil
	}
	return "", fmt.Errorf("store: unknown post type %q", s)
}

// LinkStatus is the per-link download state machine: pending (initial),
// downloaded (terminal success), error (failed but retried on the next run).
type LinkStatus string

const (
	StatusPending    LinkStatus = "pending"
	StatusDownloaded LinkStatus = "downloaded"
	StatusError      LinkStatus = "error"
)

// ParseLinkStatus parses a stored link status.
func ParseLinkStatus(s string) (LinkStatus, error) {
	switch s {
	case "pending", "Pending":
		return StatusPending, nil
	case "downloaded", "Downloaded":
		return StatusDownloaded, nil
	case "error", "Error":
		return StatusError, nil
	}
	return "", fmt.Errorf("store: unknown link status %q", s)
}

// LinkSource records where the harvester found a link. Informational only;
// it never drives control flow.
type LinkSource string

const (
	SourceImageGallery LinkSource = "image-gallery"
	SourceVideoPost    LinkSource = "video-post"
	SourceHTMLString   LinkSource = "html-string"
)

// ParseLinkSource parses a stored link source.
func ParseLinkSource(s string) (LinkSource, error) {
	switch s {
	case "image-gallery", "ImageGallery":
		return SourceImageGallery, nil
	case "video-post", "VideoPost":
		return SourceVideoPost, nil
	case "html-string", "HtmlString":
		return SourceHTMLString, nil
	}
	return "", fmt.Errorf("store: unknown link source %q", s)
}

// Post is one content item from the creator, owning its links in insertion
// order. The id is externally assigned by the site, not generated.
type Post struct {
	ID             int64
	Title          string
	Creator        string
	Tags           []string
	Type           PostType
	LikeCount      int64
	Links          []Link
	GeneratedTitle string    // empty when unset
	CreatedAt      time.Time // zero when unset
}

// Link is one fetchable media asset belonging to a post.
//
// Invariant: FilePath is non-empty iff Status is StatusDownloaded; Error is
// non-empty only when Status is StatusError. Pattern records the filename
// pattern that produced FilePath when it was last written.
type Link struct {
	ID          int64
	URL         string // relative to the site origin
	ContentType string
	Source      LinkSource
	Status      LinkStatus
	Error       string
	FilePath    string
	Pattern     string
}

// CreatePost is the harvester's input for InsertPost.
type CreatePost struct {
	ID        int64
	Title     string
	Creator   string
	Tags      []string
	Type      PostType
	LikeCount int64
	Links     []CreateLink
}

// CreateLink is a link to be inserted alongside its post, starting pending.
type CreateLink struct {
	URL         string
	ContentType string
	Source      LinkSource
}

// StatusUpdate is the outcome recorded for a link by UpdateStatus. Construct
// one with Downloaded, Failed or Requeued.
type StatusUpdate struct {
	status   LinkStatus
	filePath string
	pattern  string
	message  string
}

// Downloaded marks a link successfully fetched to filePath using pattern.
func Downloaded(filePath, pattern string) StatusUpdate {
	return StatusUpdate{status: StatusDownloaded, filePath: filePath, pattern: pattern}
}

// Failed marks a link errored with the given message. The link stays
// eligible for re-processing on a later run.
func Failed(message string) StatusUpdate {
	return StatusUpdate{status: StatusError, message: message}
}

// Requeued resets a link to pending, clearing path, pattern and error.
func Requeued() StatusUpdate {
	return StatusUpdate{status: StatusPending}
}
