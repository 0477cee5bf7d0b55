package feed

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"NewsCaster/internal/domain"
)

var testPodcast = domain.Podcast{
	Title:       "Hírek percről percre",
	Link:        "https://example.com",
	Description: "Narrated news & markets",
	ImageURL:    "https://example.com/cover.jpg",
	Language:    "hu-HU",
	Author:      "NewsCaster",
	OwnerName:   "NewsCaster",
	OwnerEmail:  "podcast@example.com",
	Category:    "News",
}

func testEpisodes() []domain.Episode {
	return []domain.Episode{
		{
			Article: domain.Article{
				ID:          "a2",
				Title:       "Forint & euró",
				Description: "Az euró 410 forint fölé ment & tovább.",
				Link:        "https://news.example/2",
				PublishedAt: time.Date(2025, 11, 8, 11, 0, 0, 0, time.UTC),
			},
			Audio: domain.AudioArtifact{URL: "https://cdn.example/audio/forint-a2.mp3", Length: 4096, DurationMinutes: 1.5},
		},
		{
			Article: domain.Article{ID: "a1", Title: "Tőzsde", Link: "https://news.example/1"},
			Audio:   domain.AudioArtifact{URL: "https://cdn.example/audio/tozsde-a1.mp3", Length: 2048, DurationMinutes: 0.33},
		},
	}
}

func TestRenderRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC)
	out, err := Render(testPodcast, testEpisodes(), now)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("rendered feed does not parse: %v\n%s", err, out)
	}
	if parsed.Title != testPodcast.Title || parsed.Description != testPodcast.Description {
		t.Fatalf("unexpected channel: %q %q", parsed.Title, parsed.Description)
	}
	if parsed.ITunesExt == nil || parsed.ITunesExt.Author != "NewsCaster" || parsed.ITunesExt.Explicit != "false" {
		t.Fatalf("missing itunes channel metadata: %+v", parsed.ITunesExt)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(parsed.Items))
	}

	first := parsed.Items[0]
	if first.Title != "Forint & euró" {
		t.Fatalf("title not escaped correctly: %q", first.Title)
	}
	if len(first.Enclosures) != 1 {
		t.Fatalf("expected one enclosure")
	}
	enc := first.Enclosures[0]
	if enc.URL != "https://cdn.example/audio/forint-a2.mp3" || enc.Type != "audio/mpeg" || enc.Length != "4096" {
		t.Fatalf("unexpected enclosure: %+v", enc)
	}
	if first.GUID != enc.URL {
		t.Fatalf("guid should be the audio url, got %q", first.GUID)
	}
	if first.ITunesExt == nil || first.ITunesExt.Duration != "00:01:30" {
		t.Fatalf("unexpected duration: %+v", first.ITunesExt)
	}
	if first.PublishedParsed == nil || !first.PublishedParsed.Equal(time.Date(2025, 11, 8, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected pub date: %v", first.Published)
	}

	second := parsed.Items[1]
	if second.PublishedParsed == nil || !second.PublishedParsed.Equal(now) {
		t.Fatalf("zero pub date should render as now, got %v", second.Published)
	}
	if second.Description != "Tőzsde" {
		t.Fatalf("empty description should fall back to title, got %q", second.Description)
	}
}

func TestRenderDeclaresNamespaceOnce(t *testing.T) {
	t.Parallel()

	out, err := Render(testPodcast, testEpisodes(), time.Now())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	doc := string(out)
	if n := strings.Count(doc, "xmlns:itunes="); n != 1 {
		t.Fatalf("expected one itunes namespace declaration, got %d", n)
	}
	if n := strings.Count(doc, "<?xml"); n != 1 {
		t.Fatalf("expected one xml header, got %d", n)
	}
	if n := strings.Count(doc, "<rss "); n != 1 {
		t.Fatalf("expected one rss root, got %d", n)
	}
	if !strings.Contains(doc, `<guid isPermaLink="false">`) {
		t.Fatalf("guid must not be a permalink")
	}
}

func TestRenderIsIdempotent(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 11, 8, 12, 0, 0, 0, time.UTC)
	first, err := Render(testPodcast, testEpisodes(), now)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	second, err := Render(testPodcast, testEpisodes(), now)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("rendering is not deterministic")
	}
}

func TestRenderRequiresTitle(t *testing.T) {
	t.Parallel()

	if _, err := Render(domain.Podcast{}, nil, time.Now()); err == nil {
		t.Fatalf("expected error without title")
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	cases := map[float64]string{0: "00:00:00", 1.5: "00:01:30", 0.33: "00:00:20", 61.25: "01:01:15", -2: "00:00:00"}
	for in, want := range cases {
		if got := FormatDuration(in); got != want {
			t.Errorf("FormatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}
