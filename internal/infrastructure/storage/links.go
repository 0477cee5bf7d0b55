package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// ExistingLinks returns the subset of links already stored.
func (r *Repository) ExistingLinks(ctx context.Context, links []string) (map[string]bool, error) {
	result := make(map[string]bool, len(links))
	if len(links) == 0 {
		return result, nil
	}

	query := r.builder.Select("a.link").From("articles a").Where(sq.Eq{"a.link": links})
	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}

	for rows.Next() {
		var link string
		if err := rows.Scan(&link); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan link: %w", err)
		}
		result[link] = true
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}
	return result, nil
}
