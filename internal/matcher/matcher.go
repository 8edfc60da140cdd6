// Package matcher defines the contract with the generative song-matching
// service and its Gemini-backed implementation.
package matcher

import (
	"context"

	"tarareo.app/internal/audio"
)

// Request is one matching instruction. Audio, when present, is inlined
// alongside the instruction text.
type Request struct {
	Instruction string
	System      string
	Audio       *audio.Payload
}

// Record mirrors the remote response schema. IDs are not trusted to be
// unique; normalization happens downstream.
type Record struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	MatchType   string  `json:"matchType"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description,omitempty"`
}

// Matcher performs exactly one identification attempt per call. Any failure
// (transport, malformed response, empty response) comes back as a single
// error; partial results are never returned.
type Matcher interface {
	Match(ctx context.Context, req Request) ([]Record, error)
}
