package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/imkarma/pillars/internal/store"
)

// --- Color palette ---
var (
	clrSubtle    = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#666666"}
	clrHighlight = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#2DD4BF"}
	clrGreen     = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	clrYellow    = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#F59E0B"}
	clrRed       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	clrBlue      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	clrDim       = lipgloss.AdaptiveColor{Light: "#999999", Dark: "#555555"}
)

// --- Styles ---
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(clrHighlight)
	dimStyle    = lipgloss.NewStyle().Foreground(clrDim)
	subtleStyle = lipgloss.NewStyle().Foreground(clrSubtle)
	okStyle     = lipgloss.NewStyle().Foreground(clrGreen).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(clrYellow)
	errStyle    = lipgloss.NewStyle().Foreground(clrRed).Bold(true)
	coachStyle  = lipgloss.NewStyle().Italic(true).Foreground(clrBlue)

	goalCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrSubtle).
			Padding(0, 1).
			Width(40)

	goalCardMainStyle = goalCardStyle.
				BorderForeground(clrHighlight)

	goalCardDoneStyle = goalCardStyle.
				BorderForeground(clrGreen)

	goalCardStuckStyle = goalCardStyle.
				BorderForeground(clrRed)

	coachBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(clrBlue).
			Padding(0, 1).
			Width(64)
)

// progressBar renders pct as a fixed-width bar.
func progressBar(pct, width int) string {
	pct = max(0, min(pct, 100))
	filled := pct * width / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	style := lipgloss.NewStyle().Foreground(clrBlue)
	switch {
	case pct == 100:
		style = style.Foreground(clrGreen)
	case pct >= 90:
		style = style.Foreground(clrYellow)
	}
	return style.Render(bar) + fmt.Sprintf(" %3d%%", pct)
}

func taskStatusStyle(s store.TaskStatus) lipgloss.Style {
	switch s {
	case store.TaskDone:
		return okStyle
	case store.TaskStuck:
		return errStyle
	case store.TaskAbandoned:
		return dimStyle
	default:
		return subtleStyle
	}
}

func goalStatusStyle(s store.PillarStatus) lipgloss.Style {
	switch s {
	case store.PillarDone:
		return okStyle
	case store.PillarInProgress:
		return lipgloss.NewStyle().Foreground(clrBlue)
	default:
		return subtleStyle
	}
}

func goalTypeLabel(t store.PillarType) string {
	switch t {
	case store.TypeMain:
		return titleStyle.Render("★ main")
	case store.TypeLab:
		return subtleStyle.Render("lab")
	default:
		return subtleStyle.Render("secondary")
	}
}

// coachBox frames a coach message. AI text and fallbacks are labeled so the
// user can tell them apart.
func coachBox(text string, fromAI bool) string {
	label := "coach"
	if !fromAI {
		label = "coach (offline)"
	}
	return coachBoxStyle.Render(dimStyle.Render(label) + "\n" + coachStyle.Render(text))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
