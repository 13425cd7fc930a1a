package extract

import (
	"testing"
	"time"
)

const searxngPage = `<html><body><div id="urls">
<article class="result">
  <h3><a href="https://example.com/go">The Go Programming Language</a></h3>
  <p class="content">Go is an open source language.</p>
  <time class="published_date">2 hours ago</time>
</article>
<article class="result">
  <h3><a href="https://example.com/rust">Rust</a></h3>
</article>
<article class="result">
  <h3><a>No link here</a></h3>
  <p class="content">Orphan card.</p>
</article>
<article class="result">
  <h3><a href="https://example.com/untitled"></a></h3>
  <p class="content">Card without a title.</p>
</article>
</div></body></html>`

func TestExtractSearXNG(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)
	results := ExtractAt(searxngPage, SearXNG, now)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := results[0]
	if first.Title != "The Go Programming Language" {
		t.Errorf("unexpected title: %s", first.Title)
	}
	if first.URL != "https://example.com/go" {
		t.Errorf("unexpected url: %s", first.URL)
	}
	if first.Snippet != "Go is an open source language." {
		t.Errorf("unexpected snippet: %s", first.Snippet)
	}
	if first.PublishedAt != "March 15, 2026" {
		t.Errorf("unexpected date: %s", first.PublishedAt)
	}

	// Second card has both title and URL but no snippet: kept, empty snippet.
	second := results[1]
	if second.Snippet != "" {
		t.Errorf("expected empty snippet, got %q", second.Snippet)
	}
	if second.PublishedAt != DateUnknown {
		t.Errorf("expected unknown date, got %q", second.PublishedAt)
	}
}

func TestExtract4get(t *testing.T) {
	html := `<html><body><div class="left">
<div class="text-result">
  <a class="hover" href="https://example.com/a"><div class="title">Result A</div></a>
  <div class="description">Snippet A</div>
</div>
</div></body></html>`

	results := Extract(html, FourGet)
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Title != "Result A" || results[0].URL != "https://example.com/a" {
		t.Errorf("unexpected result: %+v", results[0])
	}
}

func TestExtractOrderPreserved(t *testing.T) {
	html := `<div>
<div class="result"><h3><a href="u1">first</a></h3></div>
<div class="result"><h3><a href="u2">second</a></h3></div>
<div class="result"><h3><a href="u3">third</a></h3></div>
</div>`

	results := Extract(html, SearXNG)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []string{"first", "second", "third"} {
		if results[i].Title != want {
			t.Errorf("result %d: expected %q, got %q", i, want, results[i].Title)
		}
	}
}

func TestNormalizeDate(t *testing.T) {
	now := time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		raw  string
		want string
	}{
		{"2 hours ago", "March 15, 2026"},
		{"30 minutes ago", "March 15, 2026"},
		{"3 days ago", "March 12, 2026"},
		{"1 week ago", "March 8, 2026"},
		{"2 months ago", "January 15, 2026"},
		{"1 year ago", "March 15, 2025"},
		{"Jan 2, 24", "January 2, 2024"},
		{"Jan 2, 2024", "January 2, 2024"},
		{"2025-12-31", "December 31, 2025"},
		{"", DateUnknown},
		{"yesterday-ish", DateUnknown},
		{"some hours ago", DateUnknown},
	}

	for _, c := range cases {
		if got := NormalizeDate(c.raw, now); got != c.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}
