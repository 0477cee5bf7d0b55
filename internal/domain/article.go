package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultCategory labels entries whose source does not provide one.
const DefaultCategory = "Uncategorized"

// Article is a core entity describing a news item picked up from a source.
type Article struct {
	ID          string
	Title       string
	Description string
	FullText    string
	Link        string
	PublishedAt time.Time
	Category    string
	Source      string
	CreatedAt   time.Time
}

// Validate rejects records that must never be persisted partially.
func (a Article) Validate() error {
	var missing []string
	if strings.TrimSpace(a.ID) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(a.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(a.Link) == "" {
		missing = append(missing, "link")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidArticle, strings.Join(missing, ", "))
	}
	return nil
}

// NarrationText picks the richest text available for synthesis.
func (a Article) NarrationText() string {
	body := strings.TrimSpace(a.FullText)
	if body == "" {
		body = strings.TrimSpace(a.Description)
	}
	title := strings.TrimSpace(a.Title)
	switch {
	case body == "":
		return title
	case title == "":
		return body
	default:
		return title + ".\n\n" + body
	}
}

// Episode pairs an article with its published audio.
type Episode struct {
	Article Article
	Audio   AudioArtifact
}

// EpisodeQuery narrows the feed selection. Zero Since selects all episodes.
type EpisodeQuery struct {
	Since    time.Time
	Category string
	Limit    int
}

// Podcast holds channel-level metadata for the rendered feed.
type Podcast struct {
	Title       string `yaml:"title"`
	Link        string `yaml:"link"`
	Description string `yaml:"description"`
	ImageURL    string `yaml:"imageUrl"`
	Language    string `yaml:"language"`
	Author      string `yaml:"author"`
	OwnerName   string `yaml:"ownerName"`
	OwnerEmail  string `yaml:"ownerEmail"`
	Explicit    bool   `yaml:"explicit"`
	Category    string `yaml:"category"`
}
