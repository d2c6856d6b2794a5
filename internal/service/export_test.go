package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sakif/fortuneai/internal/apperror"
	"github.com/sakif/fortuneai/internal/model"
)

func exportTestReading(t *testing.T, readings *fakeReadingRepo) *model.Reading {
	t.Helper()
	title := "Career crossroads"
	reading := &model.Reading{
		UserID:        "owner",
		ReadingTypeID: "type-tarot",
		Prompt:        "Should I change jobs?",
		AIResponse:    "The cards reveal a <fork> in the road.",
		Title:         &title,
		Tags:          []string{"career", "tarot"},
	}
	if err := readings.Create(context.Background(), reading); err != nil {
		t.Fatalf("creating test reading: %v", err)
	}
	return reading
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "json", want: FormatJSON},
		{in: "TEXT", want: FormatText},
		{in: " html ", want: FormatHTML},
		{in: "pdf", wantErr: true},
		{in: "", wantErr: true},
		{in: "yaml", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("ParseFormat(%q) error = %v, want ErrValidation", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = (%v, %v), want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestExport_ReturnsDownloadRef(t *testing.T) {
	readings := newFakeReadingRepo()
	svc := NewExportService(readings)
	reading := exportTestReading(t, readings)

	ref, err := svc.Export(context.Background(), "owner", reading.ID, FormatJSON)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	want := "/api/readings/" + reading.ID + "/export?format=json"
	if ref.DownloadURL != want {
		t.Errorf("DownloadURL = %q, want %q", ref.DownloadURL, want)
	}
}

func TestExport_OwnershipAndFormatGating(t *testing.T) {
	readings := newFakeReadingRepo()
	svc := NewExportService(readings)
	reading := exportTestReading(t, readings)
	ctx := context.Background()

	if _, err := svc.Export(ctx, "intruder", reading.ID, FormatJSON); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("Export() for non-owner error = %v, want ErrNotFound", err)
	}
	if _, err := svc.Export(ctx, "owner", reading.ID, Format("pdf")); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("Export() with bad format error = %v, want ErrValidation", err)
	}
	if _, err := svc.Export(ctx, "", reading.ID, FormatJSON); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("Export() with no user error = %v, want ErrUnauthorized", err)
	}
}

func TestRender_JSON(t *testing.T) {
	readings := newFakeReadingRepo()
	svc := NewExportService(readings)
	reading := exportTestReading(t, readings)

	doc, err := svc.Render(context.Background(), "owner", reading.ID, FormatJSON)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if doc.ContentType != "application/json" {
		t.Errorf("ContentType = %q", doc.ContentType)
	}
	if doc.Filename != "reading-"+reading.ID+".json" {
		t.Errorf("Filename = %q", doc.Filename)
	}

	var view struct {
		ID         string   `json:"id"`
		Title      *string  `json:"title"`
		Prompt     string   `json:"prompt"`
		AIResponse string   `json:"aiResponse"`
		Tags       []string `json:"tags"`
	}
	if err := json.Unmarshal(doc.Bytes, &view); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if view.ID != reading.ID || view.Prompt != "Should I change jobs?" {
		t.Errorf("JSON export content wrong: %+v", view)
	}
	if view.Title == nil || *view.Title != "Career crossroads" {
		t.Errorf("JSON export title = %v", view.Title)
	}

	// sharing internals never leave through an export
	if strings.Contains(string(doc.Bytes), "shareToken") {
		t.Error("JSON export leaks share fields")
	}
}

func TestRender_Text(t *testing.T) {
	readings := newFakeReadingRepo()
	svc := NewExportService(readings)
	reading := exportTestReading(t, readings)

	doc, err := svc.Render(context.Background(), "owner", reading.ID, FormatText)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	text := string(doc.Bytes)
	for _, want := range []string{
		"Career crossroads",
		"Should I change jobs?",
		"The cards reveal a <fork> in the road.",
		"Tags: career, tarot",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text export missing %q:\n%s", want, text)
		}
	}
}

func TestRender_HTMLEscapesContent(t *testing.T) {
	readings := newFakeReadingRepo()
	svc := NewExportService(readings)
	reading := exportTestReading(t, readings)

	doc, err := svc.Render(context.Background(), "owner", reading.ID, FormatHTML)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	html := string(doc.Bytes)

	if doc.ContentType != "text/html; charset=utf-8" {
		t.Errorf("ContentType = %q", doc.ContentType)
	}
	// the <fork> in the response must arrive escaped, not as markup
	if strings.Contains(html, "<fork>") {
		t.Error("HTML export did not escape reading content")
	}
	if !strings.Contains(html, "&lt;fork&gt;") {
		t.Error("HTML export missing the escaped content")
	}
	if !strings.Contains(html, "Career crossroads") {
		t.Error("HTML export missing the title")
	}
}

func TestRender_UntitledUsesFallback(t *testing.T) {
	readings := newFakeReadingRepo()
	svc := NewExportService(readings)
	reading := &model.Reading{
		UserID: "owner", ReadingTypeID: "type-tarot",
		Prompt: "q", AIResponse: "r",
	}
	if err := readings.Create(context.Background(), reading); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	doc, err := svc.Render(context.Background(), "owner", reading.ID, FormatText)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.HasPrefix(string(doc.Bytes), "Fortune Reading\n") {
		t.Errorf("untitled export does not use the fallback title:\n%s", doc.Bytes)
	}
}
