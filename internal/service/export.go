package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/sakif/fortuneai/internal/apperror"
	"github.com/sakif/fortuneai/internal/model"
	"github.com/sakif/fortuneai/internal/repository"
)

// Format is one of the closed set of export encodings. Anything else is a
// validation error — there is no default fallback.
type Format string

const (
	FormatJSON Format = "json" // structured data
	FormatText Format = "text" // plain text
	FormatHTML Format = "html" // formatted, printable document
)

// ParseFormat validates a user-supplied format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	case FormatHTML:
		return FormatHTML, nil
	default:
		return "", apperror.ValidationFailed("format",
			fmt.Sprintf("format must be one of %s, %s, %s", FormatJSON, FormatText, FormatHTML))
	}
}

// ExportRef points the caller at the rendered document. The export flow is
// two-step: Export validates and returns the reference, then the caller
// fetches the bytes from DownloadURL.
type ExportRef struct {
	DownloadURL string `json:"downloadUrl"`
}

// Document is a rendered export.
type Document struct {
	Bytes       []byte
	ContentType string
	Filename    string
}

// ExportService renders a persisted reading into one of the supported
// encodings, gated by the same ownership rules as every other reading read.
type ExportService struct {
	readings repository.ReadingRepository
	tmpl     *template.Template
}

func NewExportService(readings repository.ReadingRepository) *ExportService {
	return &ExportService{
		readings: readings,
		tmpl:     template.Must(template.New("export").Parse(exportHTMLTemplate)),
	}
}

// Export verifies the format and the caller's ownership of the reading, and
// returns the download reference. The reading itself is not rendered yet.
func (s *ExportService) Export(ctx context.Context, userID, readingID string, format Format) (*ExportRef, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("please sign in")
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}

	// Ownership check doubles as the existence check; someone else's
	// reading is NotFound here like everywhere else.
	if _, err := s.readings.GetOwned(ctx, userID, readingID); err != nil {
		return nil, err
	}

	return &ExportRef{
		DownloadURL: fmt.Sprintf("/api/readings/%s/export?format=%s", readingID, format),
	}, nil
}

// exportView is the projection written into every export format. It matches
// what the owner sees on the detail page: content and organization fields,
// no sharing internals.
type exportView struct {
	ID         string    `json:"id"`
	Title      *string   `json:"title"`
	Prompt     string    `json:"prompt"`
	AIResponse string    `json:"aiResponse"`
	Tags       []string  `json:"tags"`
	IsFavorite bool      `json:"isFavorite"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newExportView(r *model.Reading) exportView {
	return exportView{
		ID:         r.ID,
		Title:      r.Title,
		Prompt:     r.Prompt,
		AIResponse: r.AIResponse,
		Tags:       r.Tags,
		IsFavorite: r.IsFavorite,
		CreatedAt:  r.CreatedAt,
	}
}

func (v exportView) DisplayTitle() string {
	if v.Title != nil && *v.Title != "" {
		return *v.Title
	}
	return "Fortune Reading"
}

// Render produces the export bytes for a reading the caller owns.
func (s *ExportService) Render(ctx context.Context, userID, readingID string, format Format) (*Document, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("please sign in")
	}
	if _, err := ParseFormat(string(format)); err != nil {
		return nil, err
	}

	reading, err := s.readings.GetOwned(ctx, userID, readingID)
	if err != nil {
		return nil, err
	}
	view := newExportView(reading)

	switch format {
	case FormatJSON:
		b, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("rendering JSON export: %w", err)
		}
		return &Document{
			Bytes:       b,
			ContentType: "application/json",
			Filename:    "reading-" + reading.ID + ".json",
		}, nil

	case FormatText:
		var b strings.Builder
		fmt.Fprintf(&b, "%s\n", view.DisplayTitle())
		fmt.Fprintf(&b, "%s\n\n", view.CreatedAt.Format("January 2, 2006"))
		fmt.Fprintf(&b, "Question:\n%s\n\n", view.Prompt)
		fmt.Fprintf(&b, "Reading:\n%s\n", view.AIResponse)
		if len(view.Tags) > 0 {
			fmt.Fprintf(&b, "\nTags: %s\n", strings.Join(view.Tags, ", "))
		}
		return &Document{
			Bytes:       []byte(b.String()),
			ContentType: "text/plain; charset=utf-8",
			Filename:    "reading-" + reading.ID + ".txt",
		}, nil

	case FormatHTML:
		var buf bytes.Buffer
		if err := s.tmpl.Execute(&buf, view); err != nil {
			return nil, fmt.Errorf("rendering HTML export: %w", err)
		}
		return &Document{
			Bytes:       buf.Bytes(),
			ContentType: "text/html; charset=utf-8",
			Filename:    "reading-" + reading.ID + ".html",
		}, nil
	}

	// Unreachable: ParseFormat rejected everything else above.
	return nil, apperror.ValidationFailed("format", "unsupported format")
}

// exportHTMLTemplate is the printable document layout. html/template
// escapes all reading content, so user-authored prompts cannot inject
// markup into the export.
const exportHTMLTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.DisplayTitle}}</title>
<style>
  body { font-family: Georgia, serif; max-width: 42rem; margin: 2rem auto; color: #222; }
  h1 { font-size: 1.6rem; border-bottom: 1px solid #ccc; padding-bottom: .5rem; }
  .date { color: #666; font-size: .9rem; }
  .question { font-style: italic; margin: 1.5rem 0; }
  .response { white-space: pre-wrap; line-height: 1.6; }
  .tags { margin-top: 2rem; color: #666; font-size: .9rem; }
</style>
</head>
<body>
<h1>{{.DisplayTitle}}</h1>
<p class="date">{{.CreatedAt.Format "January 2, 2006"}}</p>
<p class="question">{{.Prompt}}</p>
<div class="response">{{.AIResponse}}</div>
{{if .Tags}}<p class="tags">Tags: {{range $i, $t := .Tags}}{{if $i}}, {{end}}{{$t}}{{end}}</p>{{end}}
</body>
</html>
`
