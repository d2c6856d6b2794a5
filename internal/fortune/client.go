// Package fortune wraps the OpenAI chat-completions API in streaming mode
// and exposes each delta as soon as the provider delivers it.
//
// STREAMING TRANSPORT:
// With "stream": true the API responds with Server-Sent Events — one
// "data: {json}" line per delta, terminated by "data: [DONE]". We decode
// lines with a bufio.Reader and hand each delta's content to the caller
// immediately; there is no buffering beyond the line being decoded.
//
// The caller must be able to tell a stream that ended normally from one the
// provider abandoned: Recv returns io.EOF only after the [DONE] sentinel,
// and ErrInterrupted if the connection closes before it.
package fortune

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	chatModel      = "gpt-4o"

	// A fortune reading is 2-3 paragraphs; 500 tokens is a hard ceiling,
	// and 0.8 keeps the output varied without losing coherence.
	maxResponseTokens = 500
	temperature       = 0.8
)

// ErrInterrupted is returned by Recv when the provider's stream ends without
// the completion sentinel — the reading was cut off, not finished.
var ErrInterrupted = errors.New("fortune: stream interrupted before completion")

// Client issues streaming completion requests.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client against the real OpenAI endpoint.
//
// The http.Client carries no Timeout: a streaming response legitimately
// stays open for the whole generation, and per-request deadlines belong to
// the caller's context.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{},
	}
}

// NewClientWithBaseURL creates a client against an alternate completions
// endpoint. Used by tests to point the client at a stub server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = baseURL
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// streamChunk is one SSE data frame of a streaming completion.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// apiError is OpenAI's error envelope, returned on non-200 responses.
type apiError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Stream makes one streaming completion request for a fortune reading and
// returns the live token stream. The request fixes the persona (a mystical
// but bounded fortune teller for the given reading type) and the sampling
// parameters; only the reading type and the question vary per call.
//
// An error return here means the provider failed before producing any
// output — callers translate that into a structured error response rather
// than an empty stream.
func (c *Client) Stream(ctx context.Context, readingType, question string) (*Stream, error) {
	systemPrompt := fmt.Sprintf(
		"You are a mystical fortune teller with deep wisdom and insight. "+
			"You specialize in %s readings and provide personalized, "+
			"meaningful guidance that feels authentic and mystical.",
		readingType,
	)
	userPrompt := fmt.Sprintf(
		"The user is asking: %q\n\n"+
			"Provide a detailed, mystical fortune reading that:\n"+
			"- Feels personal and relevant to their question\n"+
			"- Uses mystical language and imagery\n"+
			"- Offers practical guidance\n"+
			"- Maintains a mysterious, wise tone\n"+
			"- Is 2-3 paragraphs long",
		question,
	)

	body, err := json.Marshal(chatRequest{
		Model: chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream:      true,
		MaxTokens:   maxResponseTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("fortune: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fortune: creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fortune: calling completion API: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var envelope apiError
		if decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&envelope); decodeErr == nil && envelope.Error.Message != "" {
			return nil, fmt.Errorf("fortune: provider returned status %d: %s", resp.StatusCode, envelope.Error.Message)
		}
		return nil, fmt.Errorf("fortune: provider returned status %d", resp.StatusCode)
	}

	return &Stream{
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// Stream is a live, non-restartable sequence of text fragments.
// Not safe for concurrent use; one consumer reads it to completion.
type Stream struct {
	body   io.ReadCloser
	reader *bufio.Reader
	done   bool
}

// Recv returns the next text fragment in arrival order.
//
// Terminal conditions:
//   - io.EOF          — the provider finished the reading ([DONE] seen)
//   - ErrInterrupted  — the connection closed before [DONE]
//   - anything else   — a transport or decode failure mid-stream
func (s *Stream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			s.done = true
			if err == io.EOF {
				return "", ErrInterrupted
			}
			return "", fmt.Errorf("fortune: reading stream: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data: ") {
			// SSE keep-alive comments and blank separators.
			continue
		}

		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			s.done = true
			return "", fmt.Errorf("fortune: decoding stream chunk: %w", err)
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			// Role-announcement and finish frames carry no content.
			continue
		}
		return content, nil
	}
}

// Close releases the underlying connection. Safe to call at any point,
// including after Recv returned a terminal condition.
func (s *Stream) Close() error {
	return s.body.Close()
}
