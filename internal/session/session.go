// Package session drives one fortune reading end to end from the client
// side: open the streaming endpoint, surface tokens to the caller as they
// arrive, and persist the completed text exactly once.
//
// A Session is single-use. The state machine makes the lifecycle explicit
// instead of tracking it with ad-hoc booleans:
//
//	NotStarted → Streaming → Completed
//	                 ↘ Failed
//
// Generate moves NotStarted → Streaming under a mutex before any network
// I/O, so two concurrent calls cannot both stream — the loser gets
// ErrAlreadyStarted immediately. Failed is terminal: a session that errored
// is thrown away, not retried.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// State is the lifecycle position of a Session.
type State int

const (
	StateNotStarted State = iota
	StateStreaming
	StateCompleted
	StateFailed
)

// String implements fmt.Stringer for log output.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrAlreadyStarted is returned by Generate when the session has left
// NotStarted. Sessions are one-shot; create a new one per reading.
var ErrAlreadyStarted = errors.New("session: generation already started")

// ErrSaveFailed marks a reading that streamed fully but could not be
// persisted. The text is still available via Response(), so callers can
// show it and offer a retry of the save alone.
var ErrSaveFailed = errors.New("session: saving reading failed")

// Saver persists a completed reading and returns its ID. readingType is
// the catalogue name exactly as it was streamed ("Tarot Card Reading");
// the implementation maps it to whatever identifier its store needs.
// The server-backed implementation lives in this package (APISaver);
// tests substitute their own.
type Saver interface {
	Save(ctx context.Context, readingType, question, response string) (string, error)
}

// ViewFunc observes the reading as it streams. It is called after every
// chunk with the full accumulated text, which only ever grows — a later
// call's argument always has the previous call's argument as a prefix.
type ViewFunc func(accumulated string)

// Session runs one streaming reading against a fortuneai server.
type Session struct {
	client  *http.Client
	baseURL string
	saver   Saver
	view    ViewFunc

	mu        sync.Mutex
	state     State
	buf       strings.Builder
	readingID string
}

// Option configures a Session.
type Option func(*Session)

// WithHTTPClient substitutes the HTTP client. The default has no timeout
// because a reading streams for as long as the model talks; use the context
// passed to Generate to bound the whole session.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Session) { s.client = c }
}

// WithView registers the streaming observer.
func WithView(v ViewFunc) Option {
	return func(s *Session) { s.view = v }
}

// New creates a Session targeting the server at baseURL (no trailing slash,
// e.g. "http://localhost:8080"). saver may be nil, in which case the
// completed reading is not persisted.
func New(baseURL string, saver Saver, opts ...Option) *Session {
	s := &Session{
		client:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		saver:   saver,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Response returns the text accumulated so far. Safe to call at any point,
// including after a save failure.
func (s *Session) Response() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// ReadingID returns the persisted reading's ID, or "" if the session has
// not completed a successful save.
func (s *Session) ReadingID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readingID
}

// generateRequest is the relay endpoint's request body.
type generateRequest struct {
	ReadingType  string `json:"readingType"`
	UserQuestion string `json:"userQuestion"`
}

// Generate streams one reading for the named type and question.
//
// It blocks until the stream ends, calling the view function after each
// chunk. On a clean end of stream the Saver is invoked exactly once with
// the accumulated text. A cancelled context or a mid-stream read error
// moves the session to Failed without saving — an aborted reading is never
// persisted.
func (s *Session) Generate(ctx context.Context, readingType, question string) error {
	s.mu.Lock()
	if s.state != StateNotStarted {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStreaming
	s.mu.Unlock()

	body, err := json.Marshal(generateRequest{
		ReadingType:  readingType,
		UserQuestion: question,
	})
	if err != nil {
		s.fail()
		return fmt.Errorf("session: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/chatgpt", bytes.NewReader(body))
	if err != nil {
		s.fail()
		return fmt.Errorf("session: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.fail()
		return fmt.Errorf("session: requesting reading: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.fail()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("session: server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if err := s.pump(resp.Body); err != nil {
		s.fail()
		return err
	}

	return s.finish(ctx, readingType, question)
}

// pump reads the response body chunk by chunk into the buffer, notifying
// the view after every append.
func (s *Session) pump(body io.Reader) error {
	chunk := make([]byte, 4096)
	for {
		n, err := body.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf.Write(chunk[:n])
			accumulated := s.buf.String()
			s.mu.Unlock()
			if s.view != nil {
				s.view(accumulated)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("session: reading stream: %w", err)
		}
	}
}

// finish persists the completed reading and settles the final state.
func (s *Session) finish(ctx context.Context, readingType, question string) error {
	response := s.Response()

	if s.saver == nil {
		s.complete("")
		return nil
	}

	// The stream context may already be cancelled by the time the last
	// chunk lands; the save gets its own short deadline so a finished
	// reading still gets a chance to persist.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	id, err := s.saver.Save(saveCtx, readingType, question, response)
	if err != nil {
		s.fail()
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	s.complete(id)
	return nil
}

func (s *Session) fail() {
	s.mu.Lock()
	s.state = StateFailed
	s.mu.Unlock()
}

func (s *Session) complete(readingID string) {
	s.mu.Lock()
	s.state = StateCompleted
	s.readingID = readingID
	s.mu.Unlock()
}
