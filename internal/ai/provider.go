// Package ai generates natural-language digests of recorded sightings.
package ai

import (
	"context"
	"time"

	"github.com/kozaktomas/facewatch/internal/config"
	"github.com/kozaktomas/facewatch/internal/sightings"
)

// SightingsWindow is the report period handed to a provider. Counts
// cover the whole period even when Entries is capped.
type SightingsWindow struct {
	From    time.Time
	To      time.Time
	Counts  map[string]int
	Entries []sightings.Sighting
}

// PersonDigest describes one person's activity in the window.
type PersonDigest struct {
	Label string `json:"label"`
	Count int    `json:"count"`
	Note  string `json:"note"`
}

// Summary is the model's digest of a sightings window.
type Summary struct {
	Overview  string         `json:"overview"`
	PerPerson []PersonDigest `json:"per_person"`
	Usage     Usage          `json:"-"`
}

// Provider defines the interface for AI summary backends.
type Provider interface {
	Name() string
	SummarizeSightings(ctx context.Context, window SightingsWindow) (*Summary, error)
}

// Usage reports the token spend of a summarization call, including
// retries.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	Cost             float64 // in USD
}

func (u *Usage) add(promptTokens, completionTokens int, pricing config.RequestPricing) {
	u.PromptTokens += promptTokens
	u.CompletionTokens += completionTokens
	u.Cost += float64(promptTokens) / 1_000_000 * pricing.Input
	u.Cost += float64(completionTokens) / 1_000_000 * pricing.Output
}
