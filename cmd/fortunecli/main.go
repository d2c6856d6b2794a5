// Package main is a terminal client for a running fortuneai server: it
// streams one reading into the terminal as the tokens arrive and, when a
// session token is supplied, saves the finished reading to the user's
// history.
//
// Usage:
//
//	fortunecli -type "Tarot Card Reading" -question "What does this week hold?"
//	fortunecli -server https://fortuneai.example.com -token <jwt> -type "Palm Reading" -question "..."
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/lipgloss"

	"github.com/sakif/fortuneai/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF00FF"))

	questionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FFFF"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF0000"))
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "fortuneai server base URL")
	readingType := flag.String("type", "", "reading type name, e.g. \"Tarot Card Reading\"")
	question := flag.String("question", "", "the question to ask")
	token := flag.String("token", "", "session token; when set the reading is saved to your history")
	flag.Parse()

	if *readingType == "" || *question == "" {
		fmt.Fprintln(os.Stderr, errorStyle.Render("both -type and -question are required"))
		flag.Usage()
		os.Exit(2)
	}

	// Ctrl+C cancels the stream; an aborted reading is never saved.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var saver session.Saver
	if *token != "" {
		saver = session.NewAPISaver(*serverURL, *token)
	}

	fmt.Println(titleStyle.Render("🔮 " + *readingType))
	fmt.Println(questionStyle.Render(*question))
	fmt.Println()

	// The view callback receives the full accumulated text each time; we
	// only print the tail we have not written yet.
	printed := 0
	sess := session.New(*serverURL, saver, session.WithView(func(accumulated string) {
		fmt.Print(accumulated[printed:])
		printed = len(accumulated)
	}))

	err := sess.Generate(ctx, *readingType, *question)
	fmt.Println()
	fmt.Println()

	switch {
	case err == nil && sess.ReadingID() != "":
		fmt.Println(statusStyle.Render("saved to your history as " + sess.ReadingID()))
	case err == nil:
		fmt.Println(statusStyle.Render("not saved (run with -token to keep readings)"))
	case errors.Is(err, session.ErrSaveFailed):
		// The reading streamed fully; only the save failed.
		fmt.Fprintln(os.Stderr, errorStyle.Render("reading could not be saved: "+err.Error()))
		os.Exit(1)
	default:
		fmt.Fprintln(os.Stderr, errorStyle.Render("reading failed: "+err.Error()))
		os.Exit(1)
	}
}
