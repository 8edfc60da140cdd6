package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tarareo.app/internal/audio"
	"tarareo.app/internal/matcher"
)

type stubMatcher struct {
	records []matcher.Record
	err     error

	calls   int
	lastReq matcher.Request
	release chan struct{} // when non-nil, Match blocks until closed
}

func (m *stubMatcher) Match(ctx context.Context, req matcher.Request) ([]matcher.Record, error) {
	m.calls++
	m.lastReq = req
	if m.release != nil {
		<-m.release
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.records, nil
}

func TestSearchEmptyInputsIsValidationError(t *testing.T) {
	m := &stubMatcher{}
	s := New(m, 8)

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := s.Search(context.Background(), text, nil); !errors.Is(err, ErrEmptyQuery) {
			t.Errorf("Search(%q, nil) = %v, want ErrEmptyQuery", text, err)
		}
	}
	// Empty payload counts as no audio
	empty := audio.Encode(nil, audio.MIMETypeOgg)
	if _, err := s.Search(context.Background(), "", &empty); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("Search with empty payload = %v, want ErrEmptyQuery", err)
	}

	if m.calls != 0 {
		t.Errorf("Remote service called %d times for invalid input, want 0", m.calls)
	}
	if st := s.State(); st.Loading || st.Err != "" || len(st.Results) != 0 {
		t.Errorf("Validation failure mutated state: %+v", st)
	}
}

func TestSearchTextOnly(t *testing.T) {
	m := &stubMatcher{records: []matcher.Record{{
		ID:         "1",
		Title:      "Time",
		Artist:     "Hans Zimmer",
		MatchType:  "Contexto",
		Confidence: 88,
	}}}
	s := New(m, 8)

	songs, err := s.Search(context.Background(), "sad piano song from Inception", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if m.calls != 1 {
		t.Fatalf("Remote service called %d times, want exactly 1", m.calls)
	}

	if len(songs) != 1 {
		t.Fatalf("Got %d songs, want 1", len(songs))
	}
	got := songs[0]
	if got.Title != "Time" || got.Artist != "Hans Zimmer" {
		t.Errorf("Song = %q by %q, want stub values", got.Title, got.Artist)
	}
	if got.MatchType != "Contexto" {
		t.Errorf("MatchType = %q, want Contexto", got.MatchType)
	}
	if got.Confidence != 88 {
		t.Errorf("Confidence = %v, want 88 preserved", got.Confidence)
	}
	if got.ID == "1" {
		t.Error("Short remote ID was not normalized")
	}

	// Text-only request carries no audio and the text-only prompt shape
	if m.lastReq.Audio != nil {
		t.Error("Text-only search attached audio")
	}
	if m.lastReq.Instruction != buildInstruction("sad piano song from Inception", false) {
		t.Errorf("Instruction = %q, want text-only variant", m.lastReq.Instruction)
	}
	if m.lastReq.System == "" {
		t.Error("System persona missing from request")
	}

	st := s.State()
	if st.Loading || st.Err != "" || len(st.Results) != 1 {
		t.Errorf("Terminal state = %+v, want settled results", st)
	}
}

func TestSearchAudioOnlyUsesMelodyPrompt(t *testing.T) {
	m := &stubMatcher{records: []matcher.Record{{ID: "x", Title: "t", Artist: "a", MatchType: "Melodía"}}}
	s := New(m, 8)

	p := audio.Payload{Data: "AAAA", MIMEType: "audio/webm"}
	if _, err := s.Search(context.Background(), "", &p); err != nil {
		t.Fatalf("Search: %v", err)
	}

	if m.lastReq.Instruction != buildInstruction("", true) {
		t.Errorf("Instruction = %q, want audio-only variant", m.lastReq.Instruction)
	}
	if m.lastReq.Audio == nil {
		t.Fatal("Audio payload missing from request")
	}
	if m.lastReq.Audio.Data != "AAAA" || m.lastReq.Audio.MIMEType != "audio/webm" {
		t.Errorf("Audio = %+v, want payload passed through", m.lastReq.Audio)
	}
}

func TestSearchAudioAndTextUsesCombinedPrompt(t *testing.T) {
	m := &stubMatcher{records: []matcher.Record{}}
	s := New(m, 8)

	p := audio.Payload{Data: "AAAA", MIMEType: "audio/ogg"}
	if _, err := s.Search(context.Background(), "una balada de los 80", &p); err != nil {
		t.Fatalf("Search: %v", err)
	}

	want := buildInstruction("una balada de los 80", true)
	if m.lastReq.Instruction != want {
		t.Errorf("Instruction = %q, want combined variant", m.lastReq.Instruction)
	}
}

func TestSearchDefaultsMediaType(t *testing.T) {
	m := &stubMatcher{records: []matcher.Record{}}
	s := New(m, 8)

	p := audio.Payload{Data: "AAAA"} // no declared type
	if _, err := s.Search(context.Background(), "", &p); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if m.lastReq.Audio.MIMEType != audio.MIMETypeOgg {
		t.Errorf("MIMEType = %q, want default %q", m.lastReq.Audio.MIMEType, audio.MIMETypeOgg)
	}
	// The caller's payload is not mutated
	if p.MIMEType != "" {
		t.Error("Search mutated the caller's payload")
	}
}

func TestSearchRemoteFailure(t *testing.T) {
	m := &stubMatcher{err: errors.New("connection reset")}
	s := New(m, 8)

	_, err := s.Search(context.Background(), "any song", nil)
	if err == nil {
		t.Fatal("Search should surface the remote failure")
	}

	st := s.State()
	if st.Loading {
		t.Error("Loading still true after failure")
	}
	if st.Err == "" {
		t.Error("Error message missing after failure")
	}
	if len(st.Results) != 0 {
		t.Errorf("Results = %d after failure, want none", len(st.Results))
	}

	// The user may retry
	m.err = nil
	m.records = []matcher.Record{{ID: "long-enough-id-kept", Title: "t", Artist: "a", MatchType: "Letra"}}
	if _, err := s.Search(context.Background(), "any song", nil); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if st := s.State(); st.Err != "" || len(st.Results) != 1 {
		t.Errorf("State after retry = %+v", st)
	}
}

func TestSearchBusyGuard(t *testing.T) {
	m := &stubMatcher{release: make(chan struct{})}
	s := New(m, 8)

	done := make(chan error, 1)
	go func() {
		_, err := s.Search(context.Background(), "first", nil)
		done <- err
	}()

	// Wait for the first call to take the loading slot
	deadline := time.After(2 * time.Second)
	for !s.State().Loading {
		select {
		case <-deadline:
			t.Fatal("First search never entered loading state")
		case <-time.After(time.Millisecond):
		}
	}

	if _, err := s.Search(context.Background(), "second", nil); !errors.Is(err, ErrBusy) {
		t.Errorf("Overlapping search = %v, want ErrBusy", err)
	}

	close(m.release)
	if err := <-done; err != nil {
		t.Fatalf("First search: %v", err)
	}
	if m.calls != 1 {
		t.Errorf("Remote service called %d times, want 1 (second call gated)", m.calls)
	}
}

func TestSearchNormalizesBatch(t *testing.T) {
	m := &stubMatcher{records: []matcher.Record{
		{ID: "1", Title: "a", Artist: "x", MatchType: "Letra"},
		{ID: "1", Title: "b", Artist: "y", MatchType: "Melodía"},
		{ID: "a-sufficiently-long-id", Title: "c", Artist: "z", MatchType: "Contexto"},
	}}
	s := New(m, 8)

	songs, err := s.Search(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	seen := make(map[string]bool)
	for _, sg := range songs {
		if seen[sg.ID] {
			t.Errorf("Duplicate ID in results: %q", sg.ID)
		}
		seen[sg.ID] = true
	}
	if songs[2].ID != "a-sufficiently-long-id" {
		t.Errorf("Trustworthy ID rewritten: %q", songs[2].ID)
	}
}

func TestSearchClampsConfidence(t *testing.T) {
	m := &stubMatcher{records: []matcher.Record{
		{ID: "id-number-00000001", Title: "a", Artist: "x", MatchType: "Letra", Confidence: 250},
		{ID: "id-number-00000002", Title: "b", Artist: "y", MatchType: "Letra", Confidence: -5},
	}}
	s := New(m, 8)

	songs, err := s.Search(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if songs[0].Confidence != 100 {
		t.Errorf("Confidence = %v, want clamped to 100", songs[0].Confidence)
	}
	if songs[1].Confidence != 0 {
		t.Errorf("Confidence = %v, want clamped to 0", songs[1].Confidence)
	}
}

func TestPromptVariantsAreDistinct(t *testing.T) {
	textOnly := buildInstruction("algo", false)
	audioOnly := buildInstruction("", true)
	combined := buildInstruction("algo", true)

	if textOnly == audioOnly || audioOnly == combined || textOnly == combined {
		t.Error("Prompt variants must be mutually exclusive shapes")
	}
	if !strings.Contains(combined, "algo") {
		t.Error("Combined prompt lost the disambiguating text")
	}
	if strings.Contains(audioOnly, "algo") {
		t.Error("Audio-only prompt should carry no user text")
	}
}
