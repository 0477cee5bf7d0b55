// Package feed renders podcast RSS documents with iTunes metadata.
package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"NewsCaster/internal/domain"
)

// ITunesNamespace is declared once on the root element.
const ITunesNamespace = "http://www.itunes.com/dtds/podcast-1.0.dtd"

type rssDocument struct {
	XMLName  xml.Name `xml:"rss"`
	Version  string   `xml:"version,attr"`
	ITunesNS string   `xml:"xmlns:itunes,attr"`
	Channel  channel  `xml:"channel"`
}

type channel struct {
	Title          string          `xml:"title"`
	Link           string          `xml:"link"`
	Description    string          `xml:"description"`
	Language       string          `xml:"language,omitempty"`
	LastBuildDate  string          `xml:"lastBuildDate"`
	Image          *image          `xml:"image,omitempty"`
	ITunesImage    *itunesImage    `xml:"itunes:image,omitempty"`
	ITunesAuthor   string          `xml:"itunes:author,omitempty"`
	ITunesOwner    *itunesOwner    `xml:"itunes:owner,omitempty"`
	ITunesExplicit string          `xml:"itunes:explicit"`
	ITunesCategory *itunesCategory `xml:"itunes:category,omitempty"`
	Items          []item          `xml:"item"`
}

type image struct {
	URL   string `xml:"url"`
	Title string `xml:"title"`
	Link  string `xml:"link"`
}

type itunesImage struct {
	Href string `xml:"href,attr"`
}

type itunesOwner struct {
	Name  string `xml:"itunes:name,omitempty"`
	Email string `xml:"itunes:email,omitempty"`
}

type itunesCategory struct {
	Text string `xml:"text,attr"`
}

type item struct {
	Title          string    `xml:"title"`
	Description    string    `xml:"description"`
	Link           string    `xml:"link,omitempty"`
	Enclosure      enclosure `xml:"enclosure"`
	GUID           guid      `xml:"guid"`
	PubDate        string    `xml:"pubDate"`
	ITunesDuration string    `xml:"itunes:duration"`
	ITunesExplicit string    `xml:"itunes:explicit"`
}

type enclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length int64  `xml:"length,attr"`
}

type guid struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// Render builds the feed document. Episodes keep their given order; a zero
// publication date is rendered as now. Apart from lastBuildDate and those
// fallbacks, equal input yields identical bytes.
func Render(podcast domain.Podcast, episodes []domain.Episode, now time.Time) ([]byte, error) {
	if strings.TrimSpace(podcast.Title) == "" {
		return nil, errors.New("podcast title is required")
	}

	explicit := boolText(podcast.Explicit)
	ch := channel{
		Title:          podcast.Title,
		Link:           podcast.Link,
		Description:    podcast.Description,
		Language:       podcast.Language,
		LastBuildDate:  now.UTC().Format(time.RFC1123Z),
		ITunesAuthor:   podcast.Author,
		ITunesExplicit: explicit,
		Items:          make([]item, 0, len(episodes)),
	}
	if podcast.ImageURL != "" {
		ch.Image = &image{URL: podcast.ImageURL, Title: podcast.Title, Link: podcast.Link}
		ch.ITunesImage = &itunesImage{Href: podcast.ImageURL}
	}
	if podcast.OwnerName != "" || podcast.OwnerEmail != "" {
		ch.ITunesOwner = &itunesOwner{Name: podcast.OwnerName, Email: podcast.OwnerEmail}
	}
	if podcast.Category != "" {
		ch.ITunesCategory = &itunesCategory{Text: podcast.Category}
	}

	for _, ep := range episodes {
		if ep.Audio.URL == "" {
			continue
		}
		published := ep.Article.PublishedAt
		if published.IsZero() {
			published = now
		}
		description := ep.Article.Description
		if strings.TrimSpace(description) == "" {
			description = ep.Article.Title
		}
		ch.Items = append(ch.Items, item{
			Title:          ep.Article.Title,
			Description:    description,
			Link:           ep.Article.Link,
			Enclosure:      enclosure{URL: ep.Audio.URL, Type: domain.AudioMIMEType, Length: ep.Audio.Length},
			GUID:           guid{IsPermaLink: "false", Value: ep.Audio.URL},
			PubDate:        published.UTC().Format(time.RFC1123Z),
			ITunesDuration: FormatDuration(ep.Audio.DurationMinutes),
			ITunesExplicit: explicit,
		})
	}

	doc := rssDocument{Version: "2.0", ITunesNS: ITunesNamespace, Channel: ch}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode feed: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// FormatDuration renders minutes as HH:MM:SS.
func FormatDuration(minutes float64) string {
	if minutes < 0 || math.IsNaN(minutes) {
		minutes = 0
	}
	total := int64(math.Round(minutes * 60))
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, total%3600/60, total%60)
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
