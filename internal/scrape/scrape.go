// Package scrape harvests post and link metadata from the creator's paged
// post listing into the store. Malformed records are skipped with a log,
// never fatal: one broken post must not abort a harvest run.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/starford/huttdl/internal/fetch"
	"github.com/starford/huttdl/internal/store"
)

// Store is the persistence contract the harvester requires.
type Store interface {
	InsertPost(p store.CreatePost) error
}

var (
	galleryRe = regexp.MustCompile(`dynamicEl:\s+(.*),`)
	htmlSrcRe = regexp.MustCompile(`src="(.*?)"`)
)

// Harvester pages through the creator's posts and inserts them.
type Harvester struct {
	client     *http.Client
	store      Store
	baseURL    string
	cookie     string
	userAgent  string
	creatorID  int64
	creator    string
	limiter    *rate.Limiter
	retryDelay time.Duration
	logger     *slog.Logger
}

// New creates a Harvester. Page fetches are rate-limited to stay under the
// site's threshold; a 429 still backs off for two minutes before retrying.
func New(client *http.Client, st Store, baseURL, cookie string, creatorID int64, creatorName string, logger *slog.Logger) *Harvester {
	return &Harvester{
		client:     client,
		store:      st,
		baseURL:    baseURL,
		cookie:     cookie,
		userAgent:  fetch.DefaultUserAgent,
		creatorID:  creatorID,
		creator:    creatorName,
		limiter:    rate.NewLimiter(rate.Every(2*time.Second), 1),
		retryDelay: 2 * time.Minute,
		logger:     logger,
	}
}

// Run fetches pages starting at 0 until one comes back without posts,
// inserting every scraped post. Store errors are fatal.
func (h *Harvester) Run(ctx context.Context) error {
	for page := 0; ; {
		if err := h.limiter.Wait(ctx); err != nil {
			return err
		}

		posts, rateLimited, err := h.fetchPage(ctx, page)
		if err != nil {
			return err
		}
		if rateLimited {
			h.logger.Warn("rate limited, backing off",
				slog.Duration("delay", h.retryDelay))
			select {
			case <-time.After(h.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if len(posts) == 0 {
			h.logger.Info("no more posts, stopping", slog.Int("pages", page))
			return nil
		}

		for _, p := range posts {
			if err := h.store.InsertPost(p); err != nil {
				return err
			}
		}
		page++
	}
}

func (h *Harvester) fetchPage(ctx context.Context, page int) ([]store.CreatePost, bool, error) {
	url := fmt.Sprintf("%s/hutts/ajax-posts?page=%d&view=view&id=%d", h.baseURL, page, h.creatorID)
	h.logger.Info("fetching page",
		slog.Int("page", page),
		slog.String("creator", h.creator))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("scrape: build request: %w", err)
	}
	req.Header.Set("Cookie", h.cookie)
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("scrape: get page %d: %w", page, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, true, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("scrape: get page %d: unexpected status %s", page, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("scrape: parse page %d: %w", page, err)
	}
	return h.scrapePosts(doc), false, nil
}

// scrapePosts extracts every post wrapper on the page. Records missing an
// id, type or links are skipped with a log.
func (h *Harvester) scrapePosts(doc *goquery.Document) []store.CreatePost {
	var posts []store.CreatePost

	doc.Find(".huttPost.has-media").Each(func(_ int, sel *goquery.Selection) {
		rawID, ok := sel.Attr("id")
		if !ok {
			h.logger.Info("post without id attribute, skipping")
			return
		}
		id, err := strconv.ParseInt(strings.TrimPrefix(rawID, "post-"), 10, 64)
		if err != nil {
			h.logger.Warn("unparseable post id, skipping", slog.String("id", rawID))
			return
		}

		postType, ok := extractPostType(sel)
		if !ok {
			h.logger.Warn("no post type found, skipping", slog.Int64("post_id", id))
			return
		}
		links := h.extractLinks(sel, postType)
		if len(links) == 0 {
			h.logger.Info("no links found, skipping", slog.Int64("post_id", id))
			return
		}

		posts = append(posts, store.CreatePost{
			ID:        id,
			Title:     extractTitle(sel),
			Creator:   h.creator,
			Tags:      extractTags(sel),
			Type:      postType,
			LikeCount: extractLikeCount(sel),
			Links:     links,
		})
	})

	return posts
}

func extractPostType(sel *goquery.Selection) (store.PostType, bool) {
	if sel.Find("figure.hutt-video").Length() > 0 {
		return store.PostTypeVideo, true
	}
	if sel.Find(".img-responsive").Length() > 0 {
		return store.PostTypeImage, true
	}
	return "", false
}

func extractTitle(sel *goquery.Selection) string {
	text := sel.Find(".post-text")
	if text.Length() == 0 {
		return "Untitled"
	}
	return text.First().Text()
}

func extractTags(sel *goquery.Selection) []string {
	var tags []string
	sel.Find(".tags a.label").Each(func(_ int, tagSel *goquery.Selection) {
		tag := strings.TrimSpace(tagSel.Text())
		if tag == "" {
			return
		}
		tags = append(tags, strings.TrimPrefix(tag, "#"))
	})
	return tags
}

func extractLikeCount(sel *goquery.Selection) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(sel.Find(".likes-count").First().Text()), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// galleryImage is one entry of the lightGallery dynamicEl JSON embedded in
// image posts; src is a direct image, html an embedded video player.
type galleryImage struct {
	Src  string `json:"src"`
	HTML string `json:"html"`
}

func (h *Harvester) extractLinks(sel *goquery.Selection, postType store.PostType) []store.CreateLink {
	if postType == store.PostTypeVideo {
		src, ok := sel.Find("video source").First().Attr("src")
		if !ok {
			h.logger.Warn("no video source element found")
			return nil
		}
		return []store.CreateLink{{URL: src, ContentType: "video/mp4", Source: store.SourceVideoPost}}
	}

	script := sel.Find("script").First().Text()
	m := galleryRe.FindStringSubmatch(script)
	if m == nil {
		h.logger.Warn("no gallery json found in script element")
		return nil
	}
	galleryJSON := strings.ReplaceAll(m[1], `\>`, " ")

	var images []galleryImage
	if err := json.Unmarshal([]byte(galleryJSON), &images); err != nil {
		h.logger.Warn("failed to parse gallery json", slog.String("error", err.Error()))
		return nil
	}

	var links []store.CreateLink
	for _, img := range images {
		if img.Src != "" {
			links = append(links, store.CreateLink{
				URL:         img.Src,
				ContentType: "image/jpeg",
				Source:      store.SourceImageGallery,
			})
		}
		if img.HTML != "" {
			if sm := htmlSrcRe.FindStringSubmatch(img.HTML); sm != nil {
				links = append(links, store.CreateLink{
					URL:         sm[1],
					ContentType: "video/mp4",
					Source:      store.SourceHTMLString,
				})
			}
		}
	}
	return links
}
