// Package report renders the operator-facing summary of an import run.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mxpack/mxpack/internal/pipeline"
)

// ANSI colors, chosen for broad terminal compatibility.
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Render formats the pack summary for the operator. Every skipped or failed
// sticker is listed with its position and reason.
func Render(packID string, s *pipeline.Summary) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Pack %q imported", packID)))
	b.WriteString("\n")
	b.WriteString(successStyle.Render(fmt.Sprintf("  published: %d/%d", s.Published, s.Total)))
	b.WriteString("\n")
	if s.Skipped > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  skipped:   %d", s.Skipped)))
		b.WriteString("\n")
	}
	if s.Failed > 0 {
		b.WriteString(errorStyle.Render(fmt.Sprintf("  failed:    %d", s.Failed)))
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  took %s (run %s)", s.Duration.Round(1e7), s.RunID)))
	b.WriteString("\n")

	for _, o := range s.Outcomes {
		switch o.Status {
		case pipeline.StatusSkipped:
			b.WriteString(warnStyle.Render(fmt.Sprintf("  #%d %s: skipped (%v)", o.Index+1, o.Ref, o.Err)))
			b.WriteString("\n")
		case pipeline.StatusFailed:
			b.WriteString(errorStyle.Render(fmt.Sprintf("  #%d %s: failed (%v)", o.Index+1, o.Ref, o.Err)))
			b.WriteString("\n")
		}
	}
	return b.String()
}
