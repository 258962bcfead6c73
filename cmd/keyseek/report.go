package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/zsiec/keyseek/internal/keyframe"
	"github.com/zsiec/keyseek/internal/source"
)

type report struct {
	File       string         `json:"file"`
	Format     source.Format  `json:"format"`
	SizeBytes  int64          `json:"size_bytes"`
	Duration   float64        `json:"total_duration"`
	BuildMS    float64        `json:"build_ms"`
	Stats      keyframe.Stats `json:"stats"`
	Validation *validation    `json:"validation,omitempty"`
	Seek       *seekReport    `json:"seek,omitempty"`
}

type validation struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type seekReport struct {
	Requested float64              `json:"requested_time"`
	Result    *keyframe.SeekResult `json:"result,omitempty"`
	Closeness float64              `json:"closeness,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// failed reports whether a requested check did not pass.
func (r *report) failed() bool {
	if r.Validation != nil && !r.Validation.Valid {
		return true
	}
	return r.Seek != nil && r.Seek.Error != ""
}

var (
	primary = lipgloss.Color("#3B82F6")
	success = lipgloss.Color("#10B981")
	danger  = lipgloss.Color("#EF4444")
	muted   = lipgloss.Color("#9CA3AF")

	titleStyle = lipgloss.NewStyle().Foreground(primary).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(muted).Width(20)
	valueStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(success).Bold(true)
	failStyle  = lipgloss.NewStyle().Foreground(danger).Bold(true)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primary).
			Padding(0, 1)
)

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
}

func renderReport(r *report) string {
	sections := []string{
		titleStyle.Render("Keyframe index"),
		row("File", r.File),
		row("Format", r.Format.String()),
		row("Size", fmt.Sprintf("%d bytes", r.SizeBytes)),
		row("Duration", fmt.Sprintf("%.3fs", r.Duration)),
		row("Strategy", r.Stats.OptimizationStrategy.String()),
		row("Keyframes", fmt.Sprintf("%d", r.Stats.TotalKeyframes)),
		row("Precision", fmt.Sprintf("%.3fs", r.Stats.IndexPrecisionSeconds)),
		row("Avg GOP", fmt.Sprintf("%.1f", r.Stats.AverageGOPSize)),
		row("Avg frame size", fmt.Sprintf("%.0f bytes", r.Stats.AverageFrameSizeBytes)),
		row("Memory", fmt.Sprintf("%d bytes", r.Stats.MemoryUsageBytes)),
		row("Build time", fmt.Sprintf("%.2fms", r.BuildMS)),
	}

	if r.Validation != nil {
		status := okStyle.Render("valid")
		if !r.Validation.Valid {
			status = failStyle.Render("invalid: " + r.Validation.Reason)
		}
		sections = append(sections, "", titleStyle.Render("Validation"), status)
	}

	if r.Seek != nil {
		sections = append(sections, "", titleStyle.Render("Seek"))
		sections = append(sections, row("Requested", fmt.Sprintf("%.3fs", r.Seek.Requested)))
		if r.Seek.Error != "" {
			sections = append(sections, failStyle.Render(r.Seek.Error))
		} else {
			res := r.Seek.Result
			sections = append(sections,
				row("Keyframe", fmt.Sprintf("%.3fs", res.ActualTime)),
				row("Offset", fmt.Sprintf("%d", res.KeyframeOffset)),
				row("Precision", fmt.Sprintf("%.3fs", res.PrecisionAchieved)),
				row("Closeness", fmt.Sprintf("%.2f", r.Seek.Closeness)),
			)
		}
	}

	return panelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}
