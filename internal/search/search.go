// Package search orchestrates one identification cycle: input validation,
// prompt construction, the single remote call, and result normalization.
package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"tarareo.app/internal/audio"
	"tarareo.app/internal/matcher"
	"tarareo.app/internal/song"
)

var (
	// ErrEmptyQuery means neither text nor audio was supplied. No remote
	// call is made; the caller surfaces this inline.
	ErrEmptyQuery = errors.New("no text or audio to search with")

	// ErrBusy means a search is already in flight. The remote service is
	// invoked at most once at a time.
	ErrBusy = errors.New("a search is already in progress")
)

// errMensaje is the single user-facing message for any remote failure.
const errMensaje = "No se pudo completar la búsqueda. Inténtalo de nuevo."

// State is the search lifecycle as observed by the UI: loading, then
// exactly one terminal update with either results or an error message.
type State struct {
	Loading bool        `json:"loading"`
	Err     string      `json:"error,omitempty"`
	Results []song.Song `json:"results"`
}

// Service runs searches against a Matcher. Safe for concurrent use; a
// second Search while one is in flight fails fast with ErrBusy.
type Service struct {
	matcher  matcher.Matcher
	minIDLen int

	mu    sync.RWMutex
	state State
}

// New creates a search service. minIDLen is the shortest remote ID accepted
// as globally unique; shorter ones get replaced during normalization.
func New(m matcher.Matcher, minIDLen int) *Service {
	if minIDLen <= 0 {
		minIDLen = 8
	}
	return &Service{matcher: m, minIDLen: minIDLen}
}

// State returns a snapshot of the current lifecycle state.
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	st.Results = append([]song.Song(nil), s.state.Results...)
	return st
}

// Search issues exactly one identification request. Results are
// all-or-nothing: any remote failure yields an error and an empty result
// state, never a partial list.
func (s *Service) Search(ctx context.Context, text string, payload *audio.Payload) ([]song.Song, error) {
	text = strings.TrimSpace(text)
	hasAudio := payload != nil && !payload.Empty()
	if text == "" && !hasAudio {
		return nil, ErrEmptyQuery
	}

	s.mu.Lock()
	if s.state.Loading {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.state = State{Loading: true}
	s.mu.Unlock()

	req := matcher.Request{
		Instruction: buildInstruction(text, hasAudio),
		System:      systemPrompt,
	}
	if hasAudio {
		p := *payload
		if p.MIMEType == "" {
			p.MIMEType = audio.MIMETypeOgg
		}
		req.Audio = &p
	}

	records, err := s.matcher.Match(ctx, req)
	if err != nil {
		log.Printf("Search failed: %v", err)
		s.setState(State{Err: errMensaje})
		return nil, fmt.Errorf("match request: %w", err)
	}

	songs := make([]song.Song, len(records))
	for i, r := range records {
		songs[i] = song.Song{
			ID:          r.ID,
			Title:       r.Title,
			Artist:      r.Artist,
			MatchType:   r.MatchType,
			Confidence:  clampConfidence(r.Confidence),
			Description: r.Description,
		}
	}
	song.NormalizeBatch(songs, s.minIDLen)

	s.setState(State{Results: songs})
	return songs, nil
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
