package domain

import (
	"errors"
	"unicode/utf8"
)

var (
	// ErrAlreadyExists reports a lost race on a uniqueness constraint. Callers treat it as success.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound reports a missing record.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArticle reports a record missing required fields.
	ErrInvalidArticle = errors.New("invalid article")
	// ErrClaimHeld reports that another worker currently owns the claim.
	ErrClaimHeld = errors.New("claim held by another worker")
	// ErrClaimLost reports that the claim was taken over before completion.
	ErrClaimLost = errors.New("claim lost")
	// ErrNoEpisodes aborts feed publishing when nothing is eligible.
	ErrNoEpisodes = errors.New("no eligible episodes")
)

// ClipReason shortens a failure reason to at most maxBytes without splitting a UTF-8 sequence.
func ClipReason(s string, maxBytes int) string {
	if maxBytes <= 0 {
		return ""
	}
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
