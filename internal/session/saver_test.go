package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// newSaverStub serves the two endpoints APISaver talks to: the public
// catalogue and the authenticated save. It records what the save receives.
type saverStub struct {
	server *httptest.Server

	catalogueHits atomic.Int32
	savedTypeID   string
	savedPrompt   string
	saveHits      atomic.Int32
}

func newSaverStub(t *testing.T) *saverStub {
	t.Helper()
	stub := &saverStub{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/reading-types", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		stub.catalogueHits.Add(1)
		fmt.Fprint(w, `{"readingTypes":[
			{"id":"c9xq0example1","name":"Tarot Card Reading"},
			{"id":"c9xq0example2","name":"Palm Reading"}
		]}`)
	})
	mux.HandleFunc("/api/readings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		stub.saveHits.Add(1)
		if c, err := r.Cookie("token"); err != nil || c.Value != "session-jwt" {
			t.Errorf("save request carried cookie %v, %v", c, err)
		}
		var req struct {
			ReadingTypeID string `json:"readingTypeId"`
			Prompt        string `json:"prompt"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decoding save body: %v", err)
		}
		stub.savedTypeID = req.ReadingTypeID
		stub.savedPrompt = req.Prompt
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"success":true,"readingId":"reading-7"}`)
	})

	stub.server = httptest.NewServer(mux)
	t.Cleanup(stub.server.Close)
	return stub
}

func TestAPISaver_ResolvesTypeNameToID(t *testing.T) {
	stub := newSaverStub(t)
	saver := NewAPISaver(stub.server.URL, "session-jwt")

	// Save receives the catalogue name the user streamed with; the server
	// wants the ID.
	id, err := saver.Save(context.Background(), "Tarot Card Reading", "Will I travel soon?", "The cards reveal a journey ahead.")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if id != "reading-7" {
		t.Errorf("Save() id = %q, want reading-7", id)
	}
	if stub.savedTypeID != "c9xq0example1" {
		t.Errorf("save request readingTypeId = %q, want the catalogue ID", stub.savedTypeID)
	}
	if stub.savedPrompt != "Will I travel soon?" {
		t.Errorf("save request prompt = %q", stub.savedPrompt)
	}
}

func TestAPISaver_CataloguesFetchedOnce(t *testing.T) {
	stub := newSaverStub(t)
	saver := NewAPISaver(stub.server.URL, "session-jwt")

	if _, err := saver.Save(context.Background(), "Tarot Card Reading", "q1", "r1"); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	if _, err := saver.Save(context.Background(), "Palm Reading", "q2", "r2"); err != nil {
		t.Fatalf("second Save() error = %v", err)
	}

	if got := stub.catalogueHits.Load(); got != 1 {
		t.Errorf("catalogue fetched %d times, want 1", got)
	}
	if stub.savedTypeID != "c9xq0example2" {
		t.Errorf("second save readingTypeId = %q, want Palm Reading's ID", stub.savedTypeID)
	}
}

func TestAPISaver_UnknownTypeName(t *testing.T) {
	stub := newSaverStub(t)
	saver := NewAPISaver(stub.server.URL, "session-jwt")

	_, err := saver.Save(context.Background(), "Tea Leaf Reading", "q", "r")
	if err == nil {
		t.Fatal("Save() should fail for a name not in the catalogue")
	}
	if got := stub.saveHits.Load(); got != 0 {
		t.Errorf("save endpoint hit %d times for an unknown type, want 0", got)
	}
}
