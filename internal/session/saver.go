package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// APISaver persists completed readings through the server's
// POST /api/readings endpoint, authenticating with a session cookie.
//
// The save endpoint keys readings on the catalogue ID, not the display
// name the user streams with, so the saver resolves the name through the
// public GET /api/reading-types endpoint. The catalogue is fetched once
// and cached for the saver's lifetime.
type APISaver struct {
	client  *http.Client
	baseURL string
	token   string

	mu      sync.Mutex
	typeIDs map[string]string // catalogue name → ID
}

// NewAPISaver creates an APISaver for the server at baseURL. token is the
// JWT session cookie value obtained from a login.
func NewAPISaver(baseURL, token string) *APISaver {
	return &APISaver{
		client:  &http.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

type saveRequest struct {
	ReadingTypeID string `json:"readingTypeId"`
	Prompt        string `json:"prompt"`
	AIResponse    string `json:"aiResponse"`
}

type saveResponse struct {
	Success   bool   `json:"success"`
	ReadingID string `json:"readingId"`
	Error     string `json:"error"`
}

type catalogueResponse struct {
	ReadingTypes []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"readingTypes"`
}

// Save implements Saver.
func (a *APISaver) Save(ctx context.Context, readingType, question, response string) (string, error) {
	typeID, err := a.resolveTypeID(ctx, readingType)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(saveRequest{
		ReadingTypeID: typeID,
		Prompt:        question,
		AIResponse:    response,
	})
	if err != nil {
		return "", fmt.Errorf("session: encoding save request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/readings", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("session: building save request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "token", Value: a.token})

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("session: saving reading: %w", err)
	}
	defer resp.Body.Close()

	var out saveResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out); err != nil {
		return "", fmt.Errorf("session: decoding save response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusCreated || !out.Success {
		if out.Error != "" {
			return "", fmt.Errorf("session: server rejected save: %s", out.Error)
		}
		return "", fmt.Errorf("session: server rejected save with status %d", resp.StatusCode)
	}

	return out.ReadingID, nil
}

// resolveTypeID maps a reading-type name to its catalogue ID, fetching the
// catalogue on the first call.
func (a *APISaver) resolveTypeID(ctx context.Context, name string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.typeIDs == nil {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/api/reading-types", nil)
		if err != nil {
			return "", fmt.Errorf("session: building catalogue request: %w", err)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("session: fetching reading types: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("session: reading-types request returned status %d", resp.StatusCode)
		}

		var catalogue catalogueResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&catalogue); err != nil {
			return "", fmt.Errorf("session: decoding reading types: %w", err)
		}

		a.typeIDs = make(map[string]string, len(catalogue.ReadingTypes))
		for _, rt := range catalogue.ReadingTypes {
			a.typeIDs[rt.Name] = rt.ID
		}
	}

	id, ok := a.typeIDs[name]
	if !ok {
		return "", fmt.Errorf("session: unknown reading type %q", name)
	}
	return id, nil
}
