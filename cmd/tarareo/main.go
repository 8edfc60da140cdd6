package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"tarareo.app/internal/audio"
	"tarareo.app/internal/capture"
	"tarareo.app/internal/config"
	"tarareo.app/internal/favorites"
	"tarareo.app/internal/kvstore"
	"tarareo.app/internal/matcher"
	"tarareo.app/internal/recorder"
	"tarareo.app/internal/search"
	"tarareo.app/internal/song"
	"tarareo.app/internal/web"
)

// songView is a Song plus the derived external search link.
type songView struct {
	song.Song
	SearchURL string `json:"searchUrl"`
}

func withLinks(songs []song.Song) []songView {
	views := make([]songView, len(songs))
	for i, sg := range songs {
		views[i] = songView{Song: sg, SearchURL: song.SearchURL(sg.Title, sg.Artist)}
	}
	return views
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// newMux wires every HTTP route.
func newMux(rec *recorder.Recorder, mic *capture.Handler, searcher *search.Service, favs *favorites.Store, model string) *http.ServeMux {
	mux := http.NewServeMux()

	// Web UI
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(web.IndexHTML)
	})

	// Browser microphone (WebRTC offer/answer)
	mux.Handle("/offer", mic)

	// API endpoints
	mux.HandleFunc("/api/record/start", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		if err := rec.Start(r.Context()); err != nil {
			if errors.Is(err, capture.ErrNoMicrophone) {
				http.Error(w, "no microphone connected", http.StatusConflict)
				return
			}
			log.Printf("Record start: %v", err)
			http.Error(w, "could not start recording", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/record/stop", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		rec.Stop()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/record/reset", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		rec.Reset()
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	mux.HandleFunc("/api/record/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "GET required", http.StatusMethodNotAllowed)
			return
		}
		_, hasAudio := rec.Payload()
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   rec.Status(),
			"elapsed":  rec.Elapsed(),
			"hasAudio": hasAudio,
			"micReady": mic.Connected(),
		})
	})

	mux.HandleFunc("/api/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}

		var payload *audio.Payload
		if p, ok := rec.Payload(); ok {
			payload = &p
		}
		songs, err := searcher.Search(r.Context(), req.Text, payload)
		switch {
		case errors.Is(err, search.ErrEmptyQuery):
			http.Error(w, "describe la canción o graba una melodía", http.StatusBadRequest)
			return
		case errors.Is(err, search.ErrBusy):
			http.Error(w, "search already in progress", http.StatusConflict)
			return
		case err != nil:
			// The state snapshot carries the user-facing message
			st := searcher.State()
			writeJSON(w, http.StatusBadGateway, map[string]any{"error": st.Err, "results": []songView{}})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": withLinks(songs)})
	})

	mux.HandleFunc("/api/favorites", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "GET required", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, withLinks(favs.List()))
	})

	mux.HandleFunc("/api/favorites/toggle", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST required", http.StatusMethodNotAllowed)
			return
		}
		var sg song.Song
		if err := json.NewDecoder(r.Body).Decode(&sg); err != nil || sg.ID == "" {
			http.Error(w, "invalid request", http.StatusBadRequest)
			return
		}
		saved, err := favs.Toggle(sg)
		if err != nil {
			log.Printf("Favorites toggle: %v", err)
			http.Error(w, "could not save favorite", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"favorite": saved})
	})

	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "GET required", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"recorder":  rec.Status(),
			"elapsed":   rec.Elapsed(),
			"micReady":  mic.Connected(),
			"search":    searcher.State(),
			"favorites": len(favs.List()),
			"model":     model,
		})
	})

	return mux
}

func main() {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Println("tarareo starting up...")

	if cfg.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY not set")
	}
	gemini, err := matcher.NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatalf("Gemini client: %v", err)
	}
	log.Printf("Gemini connected: %s", gemini.Model())

	store, err := kvstore.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("Open database %s: %v", cfg.DBPath, err)
	}
	defer store.Close()

	favs := favorites.Load(store)
	log.Printf("Loaded %d favorites from %s", len(favs.List()), cfg.DBPath)

	mic := capture.NewHandler()
	rec := recorder.New(mic, recorder.WithMaxDuration(cfg.MaxRecordSeconds))
	searcher := search.New(gemini, cfg.MinIDLength)

	mux := newMux(rec, mic, searcher, favs, gemini.Model())

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		server.Close()
	}()

	log.Printf("tarareo live on %s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("HTTP server error: %v", err)
	}
}
