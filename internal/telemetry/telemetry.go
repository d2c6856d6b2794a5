// Package telemetry provides the error-recording collaborator injected into
// the service layer.
//
// Recording is deliberately an interface rather than a process-wide error
// log: services receive a Recorder the same way they receive a logger, and
// tests substitute a capturing implementation without any global state
// leaking between cases.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
)

// Recorder records errors worth surfacing to operators. Implementations must
// be safe for concurrent use; Record is fire-and-forget and must never fail
// the calling operation.
type Recorder interface {
	Record(ctx context.Context, err error, attrs ...slog.Attr)
}

// SlogRecorder records errors through a structured logger.
type SlogRecorder struct {
	logger *slog.Logger
}

func NewSlogRecorder(logger *slog.Logger) *SlogRecorder {
	return &SlogRecorder{logger: logger}
}

func (r *SlogRecorder) Record(ctx context.Context, err error, attrs ...slog.Attr) {
	if err == nil {
		return
	}
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("error", err.Error()))
	for _, a := range attrs {
		args = append(args, a)
	}
	r.logger.ErrorContext(ctx, "error recorded", args...)
}

// Capture is a Recorder that stores every recorded error in memory.
// Test-oriented: assertions read Errors() after exercising the code under
// test.
type Capture struct {
	mu     sync.Mutex
	errors []error
}

func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) Record(_ context.Context, err error, _ ...slog.Attr) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errors = append(c.errors, err)
}

// Errors returns a copy of everything recorded so far.
func (c *Capture) Errors() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]error, len(c.errors))
	copy(out, c.errors)
	return out
}
