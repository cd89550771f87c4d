package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/huttdl/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func imagePost() (store.Post, store.Link) {
	post := store.Post{ID: 1, Title: "t", Type: store.PostTypeImage}
	link := store.Link{ID: 10, URL: "/images/1234/big", ContentType: "image/jpeg"}
	return post, link
}

func TestFetchImage_WritesDestination(t *testing.T) {
	var gotCookie, gotAgent, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotAgent = r.Header.Get("User-Agent")
		gotPath = r.URL.Path
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	f := New(srv.Client(), srv.URL, "session=abc", "creator", discardLogger())
	post, link := imagePost()
	dest := filepath.Join(t.TempDir(), "Images", "1234.jpeg")

	if err := f.Fetch(context.Background(), post, link, dest); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read dest: %v", err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("dest content = %q", data)
	}
	if gotPath != link.URL {
		t.Errorf("request path = %q, want %q", gotPath, link.URL)
	}
	if gotCookie != "session=abc" {
		t.Errorf("cookie header = %q", gotCookie)
	}
	if gotAgent != DefaultUserAgent {
		t.Errorf("user-agent = %q", gotAgent)
	}
}

func TestFetchImage_ErrorStatusLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	f := New(srv.Client(), srv.URL, "session=abc", "creator", discardLogger())
	post, link := imagePost()
	dir := t.TempDir()
	dest := filepath.Join(dir, "1234.jpeg")

	err := f.Fetch(context.Background(), post, link, dest)
	if err == nil {
		t.Fatal("Fetch succeeded on 403")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error does not name the status: %v", err)
	}
	assertNoLeftovers(t, dir)
}

func TestFetchImage_TransportErrorCleansUpTemp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		w.Write([]byte("short"))
	}))
	defer srv.Close()

	f := New(srv.Client(), srv.URL, "session=abc", "creator", discardLogger())
	post, link := imagePost()
	dir := t.TempDir()
	dest := filepath.Join(dir, "1234.jpeg")

	if err := f.Fetch(context.Background(), post, link, dest); err == nil {
		t.Fatal("Fetch succeeded on truncated body")
	}
	assertNoLeftovers(t, dir)
}

func TestFetch_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	f := New(srv.Client(), srv.URL, "session=abc", "creator", discardLogger())
	post, link := imagePost()
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := f.Fetch(ctx, post, link, filepath.Join(dir, "1234.jpeg")); err == nil {
		t.Fatal("Fetch succeeded with cancelled context")
	}
	assertNoLeftovers(t, dir)
}

// assertNoLeftovers fails if dir contains any file, destination or temp.
func assertNoLeftovers(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		t.Errorf("leftover file after failed fetch: %s", e.Name())
	}
}
