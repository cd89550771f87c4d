package store

import "testing"

func TestParsePostType(t *testing.T) {
	cases := []struct {
		in      string
		want    PostType
		wantErr bool
	}{
		{"video", PostTypeVideo, false},
		{"Video", PostTypeVideo, false},
		{"image", PostTypeImage, false},
		{"Image", PostTypeImage, false},
		{"audio", "", true},
		{"", "", true},
	}
	for _, c := range cases {
		got, err := ParsePostType(c.in)
		if c.wantErr != (err != nil) {
			t.Errorf("ParsePostType(%q) err = %v, wantErr = %v", c.in, err, c.wantErr)
			continue
		}
		if got != c.want {
			t.Errorf("ParsePostType(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestParseLinkStatus(t *testing.T) {
	for in, want := range map[string]LinkStatus{
		"pending":    StatusPending,
		"Pending":    StatusPending,
		"downloaded": StatusDownloaded,
		"Downloaded": StatusDownloaded,
		"error":      StatusError,
		"Error":      StatusError,
	} {
		got, err := ParseLinkStatus(in)
		if err != nil || got != want {
			t.Errorf("ParseLinkStatus(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseLinkStatus("done"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestParseLinkSource(t *testing.T) {
	for in, want := range map[string]LinkSource{
		"image-gallery": SourceImageGallery,
		"ImageGallery":  SourceImageGallery,
		"video-post":    SourceVideoPost,
		"VideoPost":     SourceVideoPost,
		"html-string":   SourceHTMLString,
		"HtmlString":    SourceHTMLString,
	} {
		got, err := ParseLinkSource(in)
		if err != nil || got != want {
			t.Errorf("ParseLinkSource(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseLinkSource("rss"); err == nil {
		t.Error("expected error for unknown source")
	}
}
