package domain

import "time"

// ArticleReady is emitted once a new article has been persisted.
type ArticleReady struct {
	ArticleID   string `json:"article_id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	FullText    string `json:"full_text,omitempty"`
	PubDate     string `json:"pub_date"`
	Link        string `json:"link"`
}

// NewArticleReady builds the message for a stored article.
func NewArticleReady(a Article) ArticleReady {
	return ArticleReady{
		ArticleID:   a.ID,
		Title:       a.Title,
		Description: a.Description,
		FullText:    a.FullText,
		PubDate:     a.PublishedAt.UTC().Format(time.RFC3339),
		Link:        a.Link,
	}
}

// AudioReady is emitted once an audio artifact has been persisted.
type AudioReady struct {
	ArticleID string  `json:"article_id"`
	AudioURL  string  `json:"audio_url"`
	Length    int64   `json:"length"`
	Duration  float64 `json:"duration"`
}

// Task is one unit of audio-generation work, safe to deliver more than once.
type Task struct {
	ArticleID  string    `json:"article_id"`
	Attempt    int       `json:"attempt"`
	EnqueuedAt time.Time `json:"enqueued_at"`
	LastError  string    `json:"last_error,omitempty"`
}
