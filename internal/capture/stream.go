package capture

import (
	"fmt"
	"log"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// micStream is one browser microphone connection. Until arm it discards
// inbound packets; after arm every packet is written into an Ogg container
// whose bytes flow out on the chunk channel.
type micStream struct {
	pc *webrtc.PeerConnection

	mu     sync.Mutex
	ogg    *oggwriter.OggWriter
	ch     chan []byte
	closed bool

	closeOnce sync.Once
	closeErr  error
}

func newMicStream(pc *webrtc.PeerConnection) *micStream {
	return &micStream{
		pc: pc,
		ch: make(chan []byte, 256), // plenty while the recorder drains continuously
	}
}

// Chunks implements recorder.Stream.
func (s *micStream) Chunks() <-chan []byte { return s.ch }

// arm starts the Ogg container. The header pages flow out immediately, so a
// fresh container always begins at the moment of acquisition.
func (s *micStream) arm() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrNoMicrophone
	}
	ogg, err := oggwriter.NewWith(&chunkWriter{s: s}, oggSampleRate, oggChannels)
	if err != nil {
		return fmt.Errorf("start ogg container: %w", err)
	}
	s.ogg = ogg
	return nil
}

// writePacket boxes one opus packet. Packets arriving before arm or after
// Close are dropped.
func (s *micStream) writePacket(pkt *rtp.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ogg == nil {
		return
	}
	if err := s.ogg.WriteRTP(pkt); err != nil {
		log.Printf("Capture: ogg write error: %v", err)
	}
}

// Close implements recorder.Stream. It finalizes the container, closes the
// chunk channel, and revokes the microphone by closing the peer connection.
// Safe to call more than once; only the first call does anything.
func (s *micStream) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.ogg != nil {
			if err := s.ogg.Close(); err != nil {
				log.Printf("Capture: ogg close error: %v", err)
			}
			s.ogg = nil
		}
		s.closed = true
		close(s.ch)
		s.mu.Unlock()

		if s.pc != nil {
			s.closeErr = s.pc.Close()
		}
	})
	return s.closeErr
}

// chunkWriter forwards container bytes onto the stream's chunk channel. The
// Ogg writer only invokes it while the stream's lock is held, so it reads
// stream state without locking itself.
type chunkWriter struct {
	s *micStream
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	if w.s.closed {
		return len(p), nil
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case w.s.ch <- buf:
	default:
		// consumer too slow; drop rather than stall the RTP read loop
	}
	return len(p), nil
}
