// Package recorder owns the microphone capture session: acquisition, chunk
// accumulation, elapsed-time tracking, and finalization into an encoded
// payload.
package recorder

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"tarareo.app/internal/audio"
)

// Status is the recorder session state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRecording Status = "recording"
	StatusFinished  Status = "finished"
)

// Stream is an active microphone capture. Chunks delivers container bytes
// as they arrive; the channel is closed after Close.
type Stream interface {
	Chunks() <-chan []byte
	Close() error
}

// Device grants access to the microphone. Acquire blocks until the
// capability is granted or fails with a capability error.
type Device interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithTickInterval overrides the elapsed-seconds tick interval.
func WithTickInterval(d time.Duration) Option {
	return func(r *Recorder) { r.tick = d }
}

// WithMaxDuration caps a recording at n elapsed ticks, after which the
// session auto-stops. Zero means no cap.
func WithMaxDuration(n int) Option {
	return func(r *Recorder) { r.maxTicks = n }
}

// Recorder is a strict Idle -> Recording -> Finished -> (reset) -> Idle
// state machine. The state value is the only guard: calling an operation
// from an invalid state is a no-op, so duplicate UI triggers are harmless.
type Recorder struct {
	dev      Device
	tick     time.Duration
	maxTicks int

	mu       sync.RWMutex
	status   Status
	starting bool // Start in flight, device not yet granted
	stopping bool // Stop in flight, payload not yet finalized
	elapsed  int
	chunks   [][]byte
	payload  audio.Payload
	hasData  bool

	stream      Stream
	stopTick    chan struct{}
	collectDone chan struct{}
}

// New creates an idle recorder bound to the given capture device.
func New(dev Device, opts ...Option) *Recorder {
	r := &Recorder{
		dev:    dev,
		tick:   time.Second,
		status: StatusIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Status returns the current session state.
func (r *Recorder) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.status
}

// Elapsed returns the elapsed-seconds counter. Only meaningful while
// Recording; fixed at 0 after any reset.
func (r *Recorder) Elapsed() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.elapsed
}

// Payload returns the finalized recording. ok is false unless the session
// is Finished; Reset invalidates any previously returned payload.
func (r *Recorder) Payload() (audio.Payload, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.payload, r.hasData
}

// Start requests microphone access and begins recording. Valid only from
// Idle; from any other state it is a no-op. On a capability failure the
// recorder stays Idle and the error is returned for the caller to surface.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.status != StatusIdle || r.starting {
		r.mu.Unlock()
		return nil
	}
	r.starting = true
	r.mu.Unlock()

	stream, err := r.dev.Acquire(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.starting = false
	if err != nil {
		return fmt.Errorf("acquire microphone: %w", err)
	}

	r.status = StatusRecording
	r.elapsed = 0
	r.chunks = nil
	r.payload = audio.Payload{}
	r.hasData = false
	r.stream = stream
	r.stopTick = make(chan struct{})
	r.collectDone = make(chan struct{})

	go r.collect(stream.Chunks(), r.collectDone)
	go r.tickLoop(r.stopTick)
	return nil
}

// Stop finalizes the capture: the tick halts, the device is released
// exactly once, remaining chunks are drained, and the concatenated bytes
// become the session's encoded payload. Valid only from Recording.
func (r *Recorder) Stop() {
	r.mu.Lock()
	if r.status != StatusRecording || r.stopping {
		r.mu.Unlock()
		return
	}
	r.stopping = true
	stream := r.stream
	stopTick := r.stopTick
	done := r.collectDone
	r.mu.Unlock()

	close(stopTick)
	if err := stream.Close(); err != nil {
		// the capture is over either way; whatever chunks arrived are the clip
		log.Printf("Recorder: release microphone: %v", err)
	}
	<-done

	r.mu.Lock()
	defer r.mu.Unlock()
	var size int
	for _, c := range r.chunks {
		size += len(c)
	}
	raw := make([]byte, 0, size)
	for _, c := range r.chunks {
		raw = append(raw, c...)
	}
	r.payload = audio.Encode(raw, audio.MIMETypeOgg)
	r.hasData = true
	r.chunks = nil
	r.stream = nil
	r.stopping = false
	r.status = StatusFinished
}

// Reset discards the accumulated session and returns to Idle. Valid from
// Finished; from Idle it is a no-op, and it never interrupts a Recording.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusRecording || r.stopping || r.starting {
		return
	}
	r.status = StatusIdle
	r.elapsed = 0
	r.chunks = nil
	r.payload = audio.Payload{}
	r.hasData = false
}

// collect accumulates capture chunks until the stream closes its channel.
func (r *Recorder) collect(ch <-chan []byte, done chan struct{}) {
	defer close(done)
	for chunk := range ch {
		buf := make([]byte, len(chunk))
		copy(buf, chunk)
		r.mu.Lock()
		r.chunks = append(r.chunks, buf)
		r.mu.Unlock()
	}
}

// tickLoop increments elapsed once per tick until the session leaves
// Recording. The stop channel is closed exactly at the exit transition, so
// no tick can survive it.
func (r *Recorder) tickLoop(stop chan struct{}) {
	t := time.NewTicker(r.tick)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if r.bumpElapsed() {
				r.Stop()
				return
			}
		}
	}
}

// bumpElapsed advances the counter by exactly 1 while Recording and reports
// whether the max-duration cap was reached.
func (r *Recorder) bumpElapsed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRecording || r.stopping {
		return false
	}
	r.elapsed++
	return r.maxTicks > 0 && r.elapsed >= r.maxTicks
}
