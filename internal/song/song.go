package song

import (
	"net/url"

	"github.com/google/uuid"
)

// Match type values as shown to the user. The matching service is prompted
// to pick exactly one per candidate; unknown values are kept verbatim since
// the field is display-only.
const (
	MatchLetra    = "Letra"    // identified from lyrics / text description
	MatchMelodia  = "Melodía"  // identified from the recorded melody
	MatchContexto = "Contexto" // identified from situational context
)

// Song is one candidate returned by a search, after ID normalization.
type Song struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Artist      string  `json:"artist"`
	MatchType   string  `json:"matchType"`
	Confidence  float64 `json:"confidence"` // 0-100, may be absent (zero)
	Description string  `json:"description,omitempty"`
}

// IsKnownMatchType reports whether t is one of the three fixed categories.
func IsKnownMatchType(t string) bool {
	return t == MatchLetra || t == MatchMelodia || t == MatchContexto
}

// NormalizeID returns id if it is long enough to be trusted as globally
// unique, otherwise a fresh UUID. Short IDs ("1", "2", ...) are what the
// matching service tends to emit when it numbers a list.
func NormalizeID(id string, minLen int) string {
	if len([]rune(id)) >= minLen {
		return id
	}
	return uuid.NewString()
}

// NormalizeBatch rewrites the IDs of songs in place so that every ID is at
// least minLen runes and unique within the batch. Favorites and result
// rendering key off ID equality, so collisions are never allowed through.
func NormalizeBatch(songs []Song, minLen int) {
	seen := make(map[string]bool, len(songs))
	for i := range songs {
		id := NormalizeID(songs[i].ID, minLen)
		for seen[id] {
			id = uuid.NewString()
		}
		seen[id] = true
		songs[i].ID = id
	}
}

// SearchURL builds the external web search deep link for a candidate.
func SearchURL(title, artist string) string {
	q := url.Values{}
	q.Set("q", title+" "+artist)
	return "https://www.google.com/search?" + q.Encode()
}
