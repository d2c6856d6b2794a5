package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/fortuneai/internal/telemetry"
)

// TokenStream yields response tokens one at a time. Recv returns io.EOF on
// a clean end of stream.
type TokenStream interface {
	Recv() (string, error)
	Close() error
}

// Streamer opens a token stream for a reading. The production
// implementation wraps the OpenAI client; tests substitute a scripted one.
type Streamer interface {
	Stream(ctx context.Context, readingType, question string) (TokenStream, error)
}

// FortuneHandler relays the upstream completion stream to the client
// token by token. It holds no state and persists nothing — saving a
// finished reading is a separate, explicit POST /api/readings call.
type FortuneHandler struct {
	streamer Streamer
	logger   *slog.Logger
	recorder telemetry.Recorder
}

// NewFortuneHandler creates a FortuneHandler.
func NewFortuneHandler(streamer Streamer, logger *slog.Logger, recorder telemetry.Recorder) *FortuneHandler {
	return &FortuneHandler{
		streamer: streamer,
		logger:   logger,
		recorder: recorder,
	}
}

type generateRequest struct {
	ReadingType  string `json:"readingType"`
	UserQuestion string `json:"userQuestion"`
}

// Generate handles POST /api/chatgpt.
//
// The response is not SSE — it is a plain text/plain body written
// incrementally, flushed after every token so the client sees the reading
// grow. Once streaming starts the 200 status is committed; a mid-stream
// upstream failure can only be logged, the client simply sees the stream
// end early.
func (h *FortuneHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid request body"})
		return
	}

	req.ReadingType = strings.TrimSpace(req.ReadingType)
	req.UserQuestion = strings.TrimSpace(req.UserQuestion)
	if req.ReadingType == "" || req.UserQuestion == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Reading type and user question are required"})
		return
	}

	stream, err := h.streamer.Stream(r.Context(), req.ReadingType, req.UserQuestion)
	if err != nil {
		h.recorder.Record(r.Context(), err,
			slog.String("handler", "fortune.generate"),
			slog.String("readingType", req.ReadingType),
		)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Failed to generate fortune reading"})
		return
	}
	defer stream.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)

	for {
		token, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			// Status is already committed; record the failure and stop.
			h.recorder.Record(r.Context(), err,
				slog.String("handler", "fortune.generate"),
				slog.String("phase", "mid-stream"),
			)
			return
		}
		if _, err := io.WriteString(w, token); err != nil {
			// Client went away.
			h.logger.Debug("client disconnected mid-stream",
				slog.String("error", err.Error()),
			)
			return
		}
		if canFlush {
			flusher.Flush()
		}
	}
}
