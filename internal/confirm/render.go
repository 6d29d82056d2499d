package confirm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imamik/nodecycle/internal/config"
	"github.com/imamik/nodecycle/internal/health"
)

var (
	colorGreen  = lipgloss.Color("#22c55e")
	colorRed    = lipgloss.Color("#ef4444")
	colorYellow = lipgloss.Color("#eab308")
	colorBlue   = lipgloss.Color("#3b82f6")
	colorDim    = lipgloss.Color("#6b7280")
	colorWhite  = lipgloss.Color("#f9fafb")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorWhite)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorBlue).MarginTop(1)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen)
	failStyle    = lipgloss.NewStyle().Foreground(colorRed)
	warningStyle = lipgloss.NewStyle().Foreground(colorYellow)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	checkMark = "[OK]"
	crossMark = "[!!]"
	warnMark  = "[??]"
	skipMark  = "[--]"
)

// Render formats the report and configuration for the operator.
func Render(r *health.Report, cfg *config.Config) string {
	var b strings.Builder

	title := fmt.Sprintf("Maintenance plan for %s", cfg.Node)
	if cfg.DryRun {
		title += " [DRY RUN]"
	}
	b.WriteString(titleStyle.Render(title) + "\n")

	b.WriteString(sectionStyle.Render("Configuration") + "\n")
	kv := func(k string, v any) {
		fmt.Fprintf(&b, "  %-22s %v\n", k, v)
	}
	kv("role", cfg.Role)
	kv("service unit", cfg.ServiceUnit())
	kv("grace period", cfg.GracePeriod)
	kv("force timeout", cfg.ForceTimeout)
	kv("storage wait", cfg.StorageWait)
	kv("power action", cfg.Action)
	kv("allow single replica", cfg.AllowSingleReplica)
	kv("excluded namespaces", strings.Join(cfg.ExcludedNamespaces, ", "))

	if r == nil {
		return b.String()
	}

	b.WriteString(sectionStyle.Render("Cluster health") + "\n")
	line := func(ok bool, label string) {
		mark := okStyle.Render(checkMark)
		if !ok {
			mark = failStyle.Render(crossMark)
		}
		fmt.Fprintf(&b, "  %s %s\n", mark, label)
	}
	line(r.Live, "API server live")
	line(r.Ready, "API server ready")
	line(r.NodeReady, fmt.Sprintf("node %s Ready", r.Node))
	line(!r.NodeUnschedulable, "node schedulable")
	line(r.UnhealthyPods == 0, fmt.Sprintf("%d unhealthy pod(s)", r.UnhealthyPods))
	if r.OutOfSyncApps != nil {
		line(*r.OutOfSyncApps == 0, fmt.Sprintf("%d out-of-sync application(s)", *r.OutOfSyncApps))
	} else {
		fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render(skipMark), dimStyle.Render("reconciler not installed"))
	}
	if r.StoragePresent {
		line(len(r.VolumeIssues) == 0, fmt.Sprintf("%d volume(s) in unexpected state", len(r.VolumeIssues)))
		line(len(r.PlacementViolations) == 0, fmt.Sprintf("%d volume(s) without a healthy surviving replica", len(r.PlacementViolations)))
	} else if r.StorageUnknown {
		fmt.Fprintf(&b, "  %s %s\n", warningStyle.Render(warnMark), "storage state unknown; volumes are still checked before stopping the agent")
	} else {
		fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render(skipMark), dimStyle.Render("storage layer not installed"))
	}

	if len(r.StorageSettings) > 0 {
		b.WriteString(sectionStyle.Render("Storage settings") + "\n")
		keys := make([]string, 0, len(r.StorageSettings))
		for k := range r.StorageSettings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %-32s %s\n", k, dimStyle.Render(r.StorageSettings[k]))
		}
	}

	if len(r.NodeEvents) > 0 {
		b.WriteString(sectionStyle.Render("Recent node warnings") + "\n")
		for _, ev := range r.NodeEvents {
			fmt.Fprintf(&b, "  %s %s\n", dimStyle.Render(ev.Reason), ev.Message)
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString(sectionStyle.Render("Warnings") + "\n")
		for _, w := range r.Warnings {
			fmt.Fprintf(&b, "  %s %s\n", warningStyle.Render(warnMark), w.Message)
		}
	}
	for _, note := range r.Notes {
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render(note))
	}

	return b.String()
}
