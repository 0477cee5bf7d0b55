package storage

import (
	"context"
	"fmt"
	"strings"
)

// The link and article_id uniqueness constraints are the dedup and claim guards.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS articles (
    id          TEXT PRIMARY KEY,
    title       TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    full_text   TEXT NOT NULL DEFAULT '',
    link        TEXT NOT NULL UNIQUE,
    pub_date    {{timestamp}} NOT NULL,
    category    TEXT NOT NULL DEFAULT '',
    source      TEXT NOT NULL DEFAULT '',
    created_at  {{timestamp}} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_articles_pub_date ON articles (pub_date);
CREATE TABLE IF NOT EXISTS audio_files (
    id               TEXT PRIMARY KEY,
    article_id       TEXT NOT NULL UNIQUE REFERENCES articles (id),
    url              TEXT NOT NULL DEFAULT '',
    byte_length      {{bigint}} NOT NULL DEFAULT 0,
    duration_minutes {{float}} NOT NULL DEFAULT 0,
    status           TEXT NOT NULL,
    claim_token      TEXT NOT NULL,
    claimed_at       {{timestamp}} NOT NULL,
    attempts         INTEGER NOT NULL DEFAULT 0,
    last_error       TEXT NOT NULL DEFAULT '',
    updated_at       {{timestamp}} NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audio_files_status ON audio_files (status)
`

func renderSchema(d Dialect) []string {
	replacer := strings.NewReplacer(
		"{{timestamp}}", d.timestampType,
		"{{bigint}}", d.bigintType,
		"{{float}}", d.floatType,
	)
	var statements []string
	for _, stmt := range strings.Split(replacer.Replace(schemaTemplate), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			statements = append(statements, stmt)
		}
	}
	return statements
}

// Migrate creates tables and indexes when they are missing.
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range renderSchema(r.dialect) {
		if err := r.execRaw(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
