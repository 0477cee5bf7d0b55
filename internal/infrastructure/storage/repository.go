package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"NewsCaster/internal/domain"
	"NewsCaster/internal/ports"
)

// Repository persists articles and audio artifacts in a relational store.
type Repository struct {
	db      *sql.DB
	dialect Dialect
	builder sq.StatementBuilderType
}

var (
	_ ports.ArticleStore  = (*Repository)(nil)
	_ ports.AudioStore    = (*Repository)(nil)
	_ ports.EpisodeReader = (*Repository)(nil)
)

var articleColumns = []string{
	"a.id", "a.title", "a.description", "a.full_text", "a.link",
	"a.pub_date", "a.category", "a.source", "a.created_at",
}

var audioColumns = []string{
	"f.id", "f.article_id", "f.url", "f.byte_length", "f.duration_minutes",
	"f.status", "f.claim_token", "f.claimed_at", "f.attempts", "f.last_error", "f.updated_at",
}

// New wires a sql.DB implementation with its dialect.
func New(db *sql.DB, dialect Dialect) *Repository {
	return &Repository{
		db:      db,
		dialect: dialect,
		builder: sq.StatementBuilder.PlaceholderFormat(dialect.placeholder),
	}
}

// Dialect reports which engine backs the repository.
func (r *Repository) Dialect() string {
	return r.dialect.Name
}

// Close closes the underlying database connection.
func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Ping checks connectivity for health probes.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InsertArticle stores a new article. The link constraint, not a pre-check, detects duplicates.
func (r *Repository) InsertArticle(ctx context.Context, article domain.Article) error {
	if err := article.Validate(); err != nil {
		return err
	}
	if article.Category == "" {
		article.Category = domain.DefaultCategory
	}
	if article.CreatedAt.IsZero() {
		article.CreatedAt = time.Now()
	}

	query := r.builder.Insert("articles").
		Columns("id", "title", "description", "full_text", "link", "pub_date", "category", "source", "created_at").
		Values(
			article.ID,
			article.Title,
			article.Description,
			article.FullText,
			article.Link,
			dbTime(article.PublishedAt),
			article.Category,
			article.Source,
			dbTime(article.CreatedAt),
		)

	if _, err := r.exec(ctx, query); err != nil {
		if r.dialect.isUnique(err) {
			return fmt.Errorf("article %s: %w", article.Link, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("insert article: %w", err)
	}
	return nil
}

// GetArticle loads a single article by id.
func (r *Repository) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	query := r.builder.Select(articleColumns...).From("articles a").Where(sq.Eq{"a.id": id})
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return domain.Article{}, fmt.Errorf("build query: %w", err)
	}

	article, err := scanArticle(r.db.QueryRowContext(ctx, sqlStr, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, fmt.Errorf("article %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Article{}, fmt.Errorf("select article: %w", err)
	}
	return article, nil
}

// ArticlesWithoutAudio lists articles created since the given time that have no ready artifact.
// It lets a sweep re-dispatch work whose notification was lost.
func (r *Repository) ArticlesWithoutAudio(ctx context.Context, since time.Time, limit int) ([]domain.Article, error) {
	query := r.builder.Select(articleColumns...).
		From("articles a").
		LeftJoin("audio_files f ON f.article_id = a.id").
		Where(sq.Or{sq.Eq{"f.id": nil}, sq.NotEq{"f.status": string(domain.ClaimReady)}}).
		Where(sq.GtOrEq{"a.created_at": dbTime(since)}).
		OrderBy("a.created_at ASC", "a.id ASC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query backlog: %w", err)
	}

	var result []domain.Article
	for rows.Next() {
		article, scanErr := scanArticle(rows)
		if scanErr != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan article: %w", scanErr)
		}
		result = append(result, article)
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

// EligibleEpisodes returns ready artifacts joined with their articles in one statement,
// newest publication first.
func (r *Repository) EligibleEpisodes(ctx context.Context, q domain.EpisodeQuery) ([]domain.Episode, error) {
	columns := append(append([]string{}, articleColumns...), audioColumns...)
	query := r.builder.Select(columns...).
		From("articles a").
		Join("audio_files f ON f.article_id = a.id").
		Where(sq.Eq{"f.status": string(domain.ClaimReady)}).
		OrderBy("a.pub_date DESC", "a.id ASC")

	if !q.Since.IsZero() {
		query = query.Where(sq.GtOrEq{"a.pub_date": dbTime(q.Since)})
	}
	if q.Category != "" {
		query = query.Where(sq.Eq{"a.category": q.Category})
	}
	if q.Limit > 0 {
		query = query.Limit(uint64(q.Limit))
	}

	rows, err := r.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}

	var episodes []domain.Episode
	for rows.Next() {
		var (
			ep     domain.Episode
			status string
		)
		a := &ep.Article
		f := &ep.Audio
		scanErr := rows.Scan(
			&a.ID, &a.Title, &a.Description, &a.FullText, &a.Link,
			&a.PublishedAt, &a.Category, &a.Source, &a.CreatedAt,
			&f.ID, &f.ArticleID, &f.URL, &f.Length, &f.DurationMinutes,
			&status, &f.ClaimToken, &f.ClaimedAt, &f.Attempts, &f.LastError, &f.UpdatedAt,
		)
		if scanErr != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan episode: %w", scanErr)
		}
		f.Status = domain.ClaimStatus(status)
		normalizeArticleTimes(a)
		episodes = append(episodes, ep)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}
	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}
	return episodes, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var a domain.Article
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.FullText, &a.Link,
		&a.PublishedAt, &a.Category, &a.Source, &a.CreatedAt)
	if err != nil {
		return domain.Article{}, err
	}
	normalizeArticleTimes(&a)
	return a, nil
}

func normalizeArticleTimes(a *domain.Article) {
	a.PublishedAt = a.PublishedAt.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
}

// dbTime stores every timestamp as whole-second UTC so text-backed engines compare correctly.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func (r *Repository) exec(ctx context.Context, query sq.Sqlizer) (sql.Result, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var res sql.Result
	err = r.retryOnBusy(ctx, func() error {
		var execErr error
		res, execErr = r.db.ExecContext(ctx, sqlStr, args...)
		return execErr
	})
	return res, err
}

func (r *Repository) execRaw(ctx context.Context, stmt string) error {
	return r.retryOnBusy(ctx, func() error {
		_, err := r.db.ExecContext(ctx, stmt)
		return err
	})
}

func (r *Repository) query(ctx context.Context, query sq.Sqlizer) (*sql.Rows, error) {
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return r.db.QueryContext(ctx, sqlStr, args...)
}
