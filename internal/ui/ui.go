// Package ui renders plan trees and status lines for the command line.
package ui

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/Guan-Eric/FitLife/internal/plan"
)

func init() {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}

var (
	ColorAccent = lipgloss.AdaptiveColor{Light: "#0B7A75", Dark: "#2CD7C7"}
	ColorPass   = lipgloss.AdaptiveColor{Light: "#2E7D32", Dark: "#7BD389"}
	ColorWarn   = lipgloss.AdaptiveColor{Light: "#B26A00", Dark: "#F4D03F"}
	ColorFail   = lipgloss.AdaptiveColor{Light: "#C62828", Dark: "#E74C3C"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#6B7780", Dark: "#7F8C8D"}

	accentStyle = lipgloss.NewStyle().Foreground(ColorAccent).Bold(true)
	passStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	warnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	failStyle   = lipgloss.NewStyle().Foreground(ColorFail).Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

func RenderAccent(s string) string { return accentStyle.Render(s) }
func RenderPass(s string) string { return passStyle.Render(s) }
func RenderWarn(s string) string { return warnStyle.Render(s) }
func RenderFail(s string) string { return failStyle.Render(s) }
func RenderMuted(s string) string { return mutedStyle.Render(s) }

// Units picks the labels used for weights and durations.
type Units struct {
	Metric bool
}

func (u Units) weight() string {
	if u.Metric {
		return "kg"
	}
	return "lbs"
}

// FormatSet renders one set. Cardio sets only show their duration.
func FormatSet(ex plan.Exercise, s plan.Set, u Units) string {
	if ex.Cardio {
		return formatNumber(s.WeightDuration) + " min"
	}
	return fmt.Sprintf("%s reps × %s %s", formatNumber(s.Reps), formatNumber(s.WeightDuration), u.weight())
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// RenderPlan draws the whole tree:
//
//	Push Pull  (01J...)
//	├── Push
//	│   └── Bench Press
//	│       ├── 1. 5 reps × 80 kg
//	│       └── 2. 5 reps × 85 kg
//	└── Pull
func RenderPlan(p plan.Plan, u Units) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(p.Name))
	b.WriteString("  ")
	b.WriteString(RenderMuted("(" + p.ID + ")"))
	b.WriteByte('\n')

	if len(p.Days) == 0 {
		b.WriteString(RenderMuted("  no days yet"))
		b.WriteByte('\n')
		return b.String()
	}

	for i, d := range p.Days {
		lastDay := i == len(p.Days)-1
		b.WriteString(branch(lastDay))
		b.WriteString(RenderAccent(d.Name))
		b.WriteString(" ")
		b.WriteString(RenderMuted(d.ID))
		b.WriteByte('\n')

		dayIndent := indent(lastDay)
		for j, ex := range d.Exercises {
			lastEx := j == len(d.Exercises)-1
			b.WriteString(dayIndent)
			b.WriteString(branch(lastEx))
			b.WriteString(ex.Name)
			if ex.Cardio {
				b.WriteString(" " + RenderMuted("[cardio]"))
			}
			b.WriteByte('\n')

			exIndent := dayIndent + indent(lastEx)
			for k, s := range ex.Sets {
				b.WriteString(exIndent)
				b.WriteString(branch(k == len(ex.Sets)-1))
				fmt.Fprintf(&b, "%d. %s\n", k+1, FormatSet(ex, s, u))
			}
		}
	}
	return b.String()
}

// RenderPlanList draws one line per plan with its size.
func RenderPlanList(plans []plan.Plan) string {
	if len(plans) == 0 {
		return RenderMuted("No plans yet") + "\n"
	}
	var b strings.Builder
	for _, p := range plans {
		fmt.Fprintf(&b, "%s  %s\n", RenderAccent(p.ID), p.Name)
	}
	return b.String()
}

func branch(last bool) string {
	if last {
		return "└── "
	}
	return "├── "
}

func indent(last bool) string {
	if last {
		return "    "
	}
	return "│   "
}
