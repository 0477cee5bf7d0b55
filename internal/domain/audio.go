package domain

import (
	"math"
	"time"
)

// ClaimStatus enumerates the lifecycle of an audio_files row.
type ClaimStatus string

const (
	ClaimPending ClaimStatus = "pending"
	ClaimReady   ClaimStatus = "ready"
	ClaimFailed  ClaimStatus = "failed"
)

// AudioMIMEType is the enclosure type of every generated episode.
const AudioMIMEType = "audio/mpeg"

// AudioArtifact is the single audio record owned by one article.
// Rows in ClaimPending or ClaimFailed are claims, only ClaimReady rows are artifacts.
type AudioArtifact struct {
	ID              string
	ArticleID       string
	URL             string
	Length          int64
	DurationMinutes float64
	Status          ClaimStatus
	ClaimToken      string
	ClaimedAt       time.Time
	Attempts        int
	LastError       string
	UpdatedAt       time.Time
}

// Claim is the proof of exclusive ownership returned by a successful claim.
type Claim struct {
	ArticleID string
	Token     string
	ClaimedAt time.Time
	Attempt   int
}

// AudioResult carries the measured properties of the stored audio.
type AudioResult struct {
	URL             string
	Length          int64
	DurationMinutes float64
}

// RoundDuration rounds a duration in minutes to two decimals.
func RoundDuration(minutes float64) float64 {
	return math.Round(minutes*100) / 100
}

// MinutesOf converts d to minutes rounded to two decimals.
func MinutesOf(d time.Duration) float64 {
	return RoundDuration(d.Minutes())
}
