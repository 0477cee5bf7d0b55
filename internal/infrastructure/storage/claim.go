package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"NewsCaster/internal/domain"
)

// ClaimAudio establishes exclusive ownership of audio generation for one article.
// The INSERT guarded by the article_id constraint is the ownership proof. When the
// insert loses, a failed or stale pending row may be taken over with a compare-and-swap
// on its previous token; a ready row reports domain.ErrAlreadyExists.
func (r *Repository) ClaimAudio(ctx context.Context, articleID, token string, ttl time.Duration, now time.Time) (domain.Claim, error) {
	now = dbTime(now)
	insert := r.builder.Insert("audio_files").
		Columns("id", "article_id", "status", "claim_token", "claimed_at", "attempts", "updated_at").
		Values(uuid.NewString(), articleID, string(domain.ClaimPending), token, now, 1, now)

	_, err := r.exec(ctx, insert)
	if err == nil {
		return domain.Claim{ArticleID: articleID, Token: token, ClaimedAt: now, Attempt: 1}, nil
	}
	if !r.dialect.isUnique(err) {
		return domain.Claim{}, fmt.Errorf("insert claim: %w", err)
	}

	existing, err := r.GetAudio(ctx, articleID)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("load existing claim: %w", err)
	}

	switch existing.Status {
	case domain.ClaimReady:
		return domain.Claim{}, domain.ErrAlreadyExists
	case domain.ClaimPending:
		if ttl <= 0 || now.Sub(existing.ClaimedAt) < ttl {
			return domain.Claim{}, domain.ErrClaimHeld
		}
	}

	takeover := r.builder.Update("audio_files").
		Set("status", string(domain.ClaimPending)).
		Set("claim_token", token).
		Set("claimed_at", now).
		Set("attempts", sq.Expr("attempts + 1")).
		Set("updated_at", now).
		Where(sq.Eq{
			"article_id":  articleID,
			"claim_token": existing.ClaimToken,
			"status":      string(existing.Status),
		})

	res, err := r.exec(ctx, takeover)
	if err != nil {
		return domain.Claim{}, fmt.Errorf("take over claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Claim{}, domain.ErrClaimHeld
	}
	return domain.Claim{ArticleID: articleID, Token: token, ClaimedAt: now, Attempt: existing.Attempts + 1}, nil
}

// CompleteAudio turns the held claim into the article's artifact.
func (r *Repository) CompleteAudio(ctx context.Context, claim domain.Claim, result domain.AudioResult) (domain.AudioArtifact, error) {
	update := r.builder.Update("audio_files").
		Set("status", string(domain.ClaimReady)).
		Set("url", result.URL).
		Set("byte_length", result.Length).
		Set("duration_minutes", domain.RoundDuration(result.DurationMinutes)).
		Set("last_error", "").
		Set("updated_at", dbTime(time.Now())).
		Where(sq.Eq{
			"article_id":  claim.ArticleID,
			"claim_token": claim.Token,
			"status":      string(domain.ClaimPending),
		})

	res, err := r.exec(ctx, update)
	if err != nil {
		return domain.AudioArtifact{}, fmt.Errorf("complete claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.AudioArtifact{}, domain.ErrClaimLost
	}
	return r.GetAudio(ctx, claim.ArticleID)
}

const maxReasonBytes = 1000

// ReleaseAudio marks the held claim as failed so a later attempt can take it over.
func (r *Repository) ReleaseAudio(ctx context.Context, claim domain.Claim, reason string) error {
	reason = domain.ClipReason(reason, maxReasonBytes)
	update := r.builder.Update("audio_files").
		Set("status", string(domain.ClaimFailed)).
		Set("last_error", reason).
		Set("updated_at", dbTime(time.Now())).
		Where(sq.Eq{
			"article_id":  claim.ArticleID,
			"claim_token": claim.Token,
			"status":      string(domain.ClaimPending),
		})

	res, err := r.exec(ctx, update)
	if err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrClaimLost
	}
	return nil
}

// GetAudio returns the audio row of an article whatever its status.
func (r *Repository) GetAudio(ctx context.Context, articleID string) (domain.AudioArtifact, error) {
	query := r.builder.Select(audioColumns...).From("audio_files f").Where(sq.Eq{"f.article_id": articleID})
	sqlStr, args, err := query.ToSql()
	if err != nil {
		return domain.AudioArtifact{}, fmt.Errorf("build query: %w", err)
	}

	var (
		f      domain.AudioArtifact
		status string
	)
	err = r.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&f.ID, &f.ArticleID, &f.URL, &f.Length, &f.DurationMinutes,
		&status, &f.ClaimToken, &f.ClaimedAt, &f.Attempts, &f.LastError, &f.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.AudioArtifact{}, fmt.Errorf("audio for %s: %w", articleID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.AudioArtifact{}, fmt.Errorf("select audio: %w", err)
	}
	f.Status = domain.ClaimStatus(status)
	f.ClaimedAt = f.ClaimedAt.UTC()
	f.UpdatedAt = f.UpdatedAt.UTC()
	return f, nil
}
