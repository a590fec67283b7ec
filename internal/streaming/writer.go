package streaming

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"image-viewer/internal/logging"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write operation exceeded the configured timeout.
	// This typically occurs when a client is receiving data too slowly.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected before the stream ended.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamClosed is returned by writes after Close or after MaxDuration.
	ErrStreamClosed = errors.New("stream closed")

	// ErrFlushUnsupported means the response writer cannot flush, so events
	// would sit in a buffer instead of reaching the client.
	ErrFlushUnsupported = errors.New("response writer does not support flushing")
)

// Config configures an event stream.
type Config struct {
	// WriteTimeout bounds a single event write including its flush.
	WriteTimeout time.Duration
	// KeepAlive is the interval for comment lines that keep proxies from
	// closing an idle stream. Zero disables them.
	KeepAlive time.Duration
	// MaxDuration ends the stream after this long (0 = unlimited). Clients
	// reconnect on their own.
	MaxDuration time.Duration
	// Retry is sent as the reconnection delay hint when positive.
	Retry time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		KeepAlive:    15 * time.Second,
		MaxDuration:  0,
		Retry:        2 * time.Second,
	}
}

// EventStream writes Server-Sent Events to an http.ResponseWriter with
// timeout protection. It is not safe for concurrent use except for Close.
type EventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	ctx     context.Context
	cancel  context.CancelFunc
	config  Config
	start   time.Time

	mu     sync.Mutex
	closed bool
	events int64
	bytes  int64
}

// NewEventStream sends the event-stream headers and returns a stream bound
// to ctx, normally the request context.
func NewEventStream(ctx context.Context, w http.ResponseWriter, config Config) (*EventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrFlushUnsupported
	}

	var cancel context.CancelFunc
	if config.MaxDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, config.MaxDuration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	s := &EventStream{
		w:       w,
		flusher: flusher,
		ctx:     ctx,
		cancel:  cancel,
		config:  config,
		start:   time.Now(),
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	var preamble bytes.Buffer
	if config.Retry > 0 {
		fmt.Fprintf(&preamble, "retry: %d\n\n", config.Retry.Milliseconds())
	} else {
		preamble.WriteString(": connected\n\n")
	}
	if err := s.write(preamble.Bytes()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// Done is closed when the client goes away, a write times out, MaxDuration
// passes or Close is called.
func (s *EventStream) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Send writes one event with v encoded as JSON in its data field.
func (s *EventStream) Send(event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if err := s.write(formatEvent(event, string(data))); err != nil {
		return err
	}
	s.mu.Lock()
	s.events++
	s.mu.Unlock()
	return nil
}

// Comment writes a comment line, which clients ignore.
func (s *EventStream) Comment(text string) error {
	return s.write([]byte(": " + sanitizeLine(text) + "\n\n"))
}

func formatEvent(event, data string) []byte {
	var b bytes.Buffer
	if event != "" {
		b.WriteString("event: ")
		b.WriteString(sanitizeLine(event))
		b.WriteByte('\n')
	}
	for _, line := range strings.Split(data, "\n") {
		b.WriteString("data: ")
		b.WriteString(strings.TrimSuffix(line, "\r"))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.Bytes()
}

// sanitizeLine keeps a field on a single line.
func sanitizeLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// write performs a single write and flush with timeout
func (s *EventStream) write(p []byte) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return ErrStreamClosed
	}

	select {
	case <-s.ctx.Done():
		return s.contextError()
	default:
	}

	type writeResult struct {
		n   int
		err error
	}
	resultCh := make(chan writeResult, 1)

	go func() {
		n, err := s.w.Write(p)
		if err == nil {
			s.flusher.Flush()
		}
		resultCh <- writeResult{n, err}
	}()

	var timeout <-chan time.Time
	if s.config.WriteTimeout > 0 {
		timer := time.NewTimer(s.config.WriteTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case result := <-resultCh:
		if result.err != nil {
			s.cancel()
			return fmt.Errorf("%w: %v", ErrClientGone, result.err)
		}
		s.mu.Lock()
		s.bytes += int64(result.n)
		s.mu.Unlock()
		return nil

	case <-timeout:
		logging.Warn("Event stream write timed out after %v", s.config.WriteTimeout)
		s.cancel()
		return ErrWriteTimeout

	case <-s.ctx.Done():
		return s.contextError()
	}
}

// contextError returns an appropriate error based on context state
func (s *EventStream) contextError() error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	switch {
	case closed, errors.Is(s.ctx.Err(), context.DeadlineExceeded):
		return ErrStreamClosed
	default:
		return ErrClientGone
	}
}

// Close marks the stream as closed
func (s *EventStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()
	return nil
}

// Stats returns the number of events and bytes written and the stream age.
func (s *EventStream) Stats() (events, bytesWritten int64, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events, s.bytes, time.Since(s.start)
}
