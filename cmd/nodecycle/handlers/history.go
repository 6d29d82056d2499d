package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/nodecycle/internal/session"
	"github.com/imamik/nodecycle/internal/state"
)

var (
	historyTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f9fafb"))
	historyDimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6b7280"))
	historyGoodStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#22c55e"))
	historyBadStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ef4444"))
	historyWarnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#eab308"))
)

// History prints the recorded sessions of a node, oldest first.
func History(opts Options) error {
	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	j, err := state.OpenJournalReadOnly(cfg.StateDir, cfg.Node, cfg.Timings.LockTimeout)
	if err != nil {
		return err
	}
	defer func() {
		_ = j.Close()
	}()

	records, err := j.Sessions()
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	_, err = io.WriteString(stdout, renderHistory(cfg.Node, records))
	return err
}

func renderHistory(node string, records []state.Record) string {
	var b strings.Builder

	b.WriteString(historyTitleStyle.Render(fmt.Sprintf("Session history for %s", node)))
	b.WriteString("\n")
	if len(records) == 0 {
		b.WriteString(historyDimStyle.Render("  no sessions recorded"))
		b.WriteString("\n")
		return b.String()
	}

	for _, rec := range records {
		outcome := rec.Outcome
		if outcome == "" {
			outcome = "unfinished"
		}
		line := fmt.Sprintf("  %s  %-36s  %-20s  %s  %s",
			rec.Started.Local().Format(time.DateTime),
			rec.ID,
			rec.Phase,
			outcomeStyle(outcome).Render(fmt.Sprintf("%-18s", outcome)),
			sessionDuration(rec),
		)
		if rec.DryRun {
			line += historyDimStyle.Render(" (dry-run)")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func outcomeStyle(outcome string) lipgloss.Style {
	switch outcome {
	case session.OutcomeCompleted, session.OutcomeDryRun, session.OutcomeRestored, session.OutcomeNothingToDo:
		return historyGoodStyle
	case session.OutcomeDeclined, session.OutcomeRolledBack, session.OutcomeInterrupted:
		return historyWarnStyle
	default:
		return historyBadStyle
	}
}

func sessionDuration(rec state.Record) string {
	if rec.Finished.IsZero() {
		return "-"
	}
	return rec.Finished.Sub(rec.Started).Round(time.Second).String()
}
