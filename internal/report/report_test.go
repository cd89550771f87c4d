package report

import (
	"strings"
	"testing"

	"github.com/starford/huttdl/internal/store"
)

func TestBuild(t *testing.T) {
	posts := []store.Post{
		{Links: []store.Link{
			{Status: store.StatusDownloaded},
			{Status: store.StatusPending},
		}},
		{Links: []store.Link{
			{Status: store.StatusError},
			{Status: store.StatusDownloaded},
			{Status: store.StatusPending},
		}},
	}

	s := Build(posts)
	want := Summary{Total: 5, Downloaded: 2, Errored: 1, Pending: 2}
	if s != want {
		t.Errorf("Build = %+v, want %+v", s, want)
	}
}

func TestBuild_Empty(t *testing.T) {
	if s := Build(nil); s != (Summary{}) {
		t.Errorf("Build(nil) = %+v", s)
	}
}

func TestPrint(t *testing.T) {
	var buf strings.Builder
	Summary{Total: 4, Downloaded: 2, Errored: 1, Pending: 1}.Print(&buf)

	want := "Total links: 4\nDownloaded links: 2\nError links: 1\nPending links: 1\n"
	if buf.String() != want {
		t.Errorf("Print output:\n%q\nwant:\n%q", buf.String(), want)
	}
}
