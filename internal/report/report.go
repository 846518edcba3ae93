// Package report renders suite results for terminals and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"charm.land/lipgloss/v2"

	"github.com/nholik/probe-sentinel/internal/check"
	"github.com/nholik/probe-sentinel/internal/verdict"
)

var (
	passStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	skipStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	nameStyle = lipgloss.NewStyle().Bold(true)
	headStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func styleFor(status verdict.Status) lipgloss.Style {
	switch status {
	case verdict.StatusPass:
		return passStyle
	case verdict.StatusSkip:
		return skipStyle
	default:
		return failStyle
	}
}

func icon(status verdict.Status) string {
	switch status {
	case verdict.StatusPass:
		return "✓"
	case verdict.StatusSkip:
		return "○"
	default:
		return "✗"
	}
}

// Text writes a styled listing of every check followed by a summary line.
// Colors are downsampled to what w supports, so plain writers get plain text.
func Text(w io.Writer, title string, r check.Report) error {
	var b strings.Builder

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, headStyle.Render(title))
	fmt.Fprintln(&b)

	for _, result := range r.Results {
		status := result.Verdict.Status
		lines := strings.Split(strings.TrimRight(result.Verdict.Message, "\n"), "\n")

		fmt.Fprintf(&b, "  %s %s %s\n",
			styleFor(status).Render(icon(status)),
			nameStyle.Render(result.Name),
			styleFor(status).Render(lines[0]),
		)
		for _, line := range lines[1:] {
			fmt.Fprintf(&b, "      %s\n", line)
		}
	}

	fmt.Fprintln(&b)

	parts := make([]string, 0, 3)
	if r.Passed > 0 {
		parts = append(parts, passStyle.Render(fmt.Sprintf("%d passed", r.Passed)))
	}
	if r.Failed > 0 {
		parts = append(parts, failStyle.Render(fmt.Sprintf("%d failed", r.Failed)))
	}
	if r.Skipped > 0 {
		parts = append(parts, skipStyle.Render(fmt.Sprintf("%d skipped", r.Skipped)))
	}
	if len(parts) == 0 {
		parts = append(parts, r.Summary())
	}
	fmt.Fprintf(&b, "  %s  (%s)\n\n", strings.Join(parts, "  "), r.Duration.Round(time.Millisecond))

	_, err := lipgloss.Fprint(w, b.String())
	return err
}

type jsonResult struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Status      verdict.Status `json:"status"`
	Message     string         `json:"message"`
	StartedAt   time.Time      `json:"started_at"`
	DurationMS  int64          `json:"duration_ms"`
}

type jsonReport struct {
	OK         bool         `json:"ok"`
	Summary    string       `json:"summary"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMS int64        `json:"duration_ms"`
	Results    []jsonResult `json:"results"`
}

// JSON writes the report as an indented JSON document.
func JSON(w io.Writer, r check.Report) error {
	out := jsonReport{
		OK:         r.OK(),
		Summary:    r.Summary(),
		Passed:     r.Passed,
		Failed:     r.Failed,
		Skipped:    r.Skipped,
		StartedAt:  r.StartedAt,
		DurationMS: r.Duration.Milliseconds(),
		Results:    make([]jsonResult, 0, len(r.Results)),
	}
	for _, result := range r.Results {
		out.Results = append(out.Results, jsonResult{
			Name:        result.Name,
			Description: result.Description,
			Status:      result.Verdict.Status,
			Message:     result.Verdict.Message,
			StartedAt:   result.StartedAt,
			DurationMS:  result.Duration.Milliseconds(),
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}
