// Package capture ingests the browser microphone over WebRTC and exposes it
// as a capture device for the recorder. The inbound opus track is boxed into
// an Ogg stream; no transcoding happens on the way through.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/pion/webrtc/v4"

	"tarareo.app/internal/recorder"
)

// ErrNoMicrophone is the capability error: recording was requested but no
// browser microphone connection is active.
var ErrNoMicrophone = errors.New("no active microphone connection")

const (
	oggSampleRate = 48000
	oggChannels   = 2
)

// Handler negotiates WebRTC SDP offers posted by the browser and hands the
// resulting audio stream to the recorder via Acquire. At most one
// microphone connection is held at a time; a new offer replaces the old one.
type Handler struct {
	mu     sync.Mutex
	active *micStream
}

// NewHandler creates a microphone capture handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Acquire implements recorder.Device. It detaches the pending microphone
// connection and starts boxing its packets into an Ogg stream. Once
// acquired, the stream belongs to the recorder until Close.
func (h *Handler) Acquire(ctx context.Context) (recorder.Stream, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active == nil {
		return nil, ErrNoMicrophone
	}
	s := h.active
	h.active = nil
	if err := s.arm(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Connected reports whether a microphone connection is waiting to be
// acquired.
func (h *Handler) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active != nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusOK)
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}

	var offer webrtc.SessionDescription
	if err := json.NewDecoder(r.Body).Decode(&offer); err != nil {
		http.Error(w, "invalid SDP offer", http.StatusBadRequest)
		return
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		http.Error(w, "create peer connection failed", http.StatusInternalServerError)
		return
	}

	if _, err := pc.AddTransceiverFromKind(
		webrtc.RTPCodecTypeAudio,
		webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly},
	); err != nil {
		pc.Close()
		http.Error(w, "add audio transceiver failed", http.StatusInternalServerError)
		return
	}

	s := newMicStream(pc)

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if track.Codec().MimeType != webrtc.MimeTypeOpus {
			return
		}
		log.Printf("Microphone track connected (codec: %s)", track.Codec().MimeType)
		for {
			pkt, _, err := track.ReadRTP()
			if err != nil {
				return
			}
			s.writePacket(pkt)
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		http.Error(w, "set remote description failed", http.StatusBadRequest)
		return
	}

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		http.Error(w, "create answer failed", http.StatusInternalServerError)
		return
	}

	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		http.Error(w, "set local description failed", http.StatusInternalServerError)
		return
	}

	// Wait for ICE gathering to complete
	gatherComplete := webrtc.GatheringCompletePromise(pc)
	<-gatherComplete

	h.mu.Lock()
	prev := h.active
	h.active = s
	h.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	log.Println("WebRTC microphone offer accepted")

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		if state == webrtc.PeerConnectionStateFailed ||
			state == webrtc.PeerConnectionStateClosed ||
			state == webrtc.PeerConnectionStateDisconnected {
			h.drop(s)
		}
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	json.NewEncoder(w).Encode(pc.LocalDescription())
}

// drop discards a pending stream when its peer goes away before Acquire.
func (h *Handler) drop(s *micStream) {
	h.mu.Lock()
	if h.active == s {
		h.active = nil
	}
	h.mu.Unlock()
	s.Close()
	log.Println("WebRTC microphone disconnected")
}
