package main

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/feed"
)

const titleWidth = 48

func renderEpisodes(episodes []domain.Episode) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Published", "Category", "Title", "Duration", "Size", "URL"})
	for _, ep := range episodes {
		tw.AppendRow(table.Row{
			ep.Article.PublishedAt.UTC().Format(time.DateTime),
			ep.Article.Category,
			text.Trim(ep.Article.Title, titleWidth),
			feed.FormatDuration(ep.Audio.DurationMinutes),
			humanBytes(ep.Audio.Length),
			ep.Audio.URL,
		})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
	})
	return tw.Render()
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGT"[exp])
}
