package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

const timeLayout = "2006-01-02 15:04"

// newTable returns a light-style table that renders to out.
func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	return t
}

// classLabel colors a primary class for terminal output.
func classLabel(class string) string {
	switch class {
	case "Application Defect":
		return color.New(color.FgRed).Sprint(class)
	case "Environment Issue":
		return color.New(color.FgYellow).Sprint(class)
	case "Automation Script Error":
		return color.New(color.FgCyan).Sprint(class)
	case "Test Data Issue":
		return color.New(color.FgMagenta).Sprint(class)
	default:
		return color.New(color.FgHiBlack).Sprint(class)
	}
}

func statusLabel(resolved bool) string {
	if resolved {
		return color.New(color.FgGreen).Sprint("resolved")
	}
	return "open"
}

func pushStatusLabel(status string) string {
	switch status {
	case "success":
		return color.New(color.FgGreen).Sprint(status)
	case "failed":
		return color.New(color.FgRed).Sprint(status)
	default:
		return color.New(color.FgYellow).Sprint(status)
	}
}

func classPair(primary, sub string) string {
	if sub == "" {
		return primary
	}
	return primary + " / " + sub
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

// truncate shortens s to n runes on a single line.
func truncate(s string, n int) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
