package render

import (
	"fmt"
	"io"
	"strings"
	"time"

	"ctxguard/budget"
	"ctxguard/limits"
	"ctxguard/session"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	pink     = lipgloss.Color("212")
	purple   = lipgloss.Color("99")
	cyan     = lipgloss.Color("86")
	green    = lipgloss.Color("78")
	yellow   = lipgloss.Color("220")
	orange   = lipgloss.Color("208")
	red      = lipgloss.Color("196")
	gray     = lipgloss.Color("245")
	darkGray = lipgloss.Color("238")
	white    = lipgloss.Color("255")
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(pink)

	headerBox = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(purple).
			Padding(0, 2).
			MarginBottom(1)

	sectionTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(cyan).
			MarginTop(1)

	statLabel = lipgloss.NewStyle().
			Foreground(gray)

	statValue = lipgloss.NewStyle().
			Bold(true).
			Foreground(white)

	dirStyle = lipgloss.NewStyle().
			Foreground(purple)

	timeStyle = lipgloss.NewStyle().
			Foreground(darkGray)

	dimStyle = lipgloss.NewStyle().
			Foreground(gray)

	errStyle = lipgloss.NewStyle().
			Foreground(red)
)

// TierStyle returns the color used for a tier badge.
func TierStyle(t limits.Tier) lipgloss.Style {
	switch t {
	case limits.TierBlock:
		return lipgloss.NewStyle().Foreground(red).Bold(true)
	case limits.TierWarn:
		return lipgloss.NewStyle().Foreground(orange).Bold(true)
	case limits.TierSuggest:
		return lipgloss.NewStyle().Foreground(yellow)
	}
	return lipgloss.NewStyle().Foreground(green)
}

// Status writes a summary of one session. Styling is dropped when color is
// false so the output stays pipe friendly.
func Status(w io.Writer, sum session.Summary, th limits.Thresholds, color bool) {
	st := sum.State
	tokens := st.EstimatedTokens()
	tier := th.TierFor(tokens)
	paint := painter(color)

	header := paint(titleStyle, sum.ID) + "  " + paint(TierStyle(tier), "● "+tier.String())
	if color {
		fmt.Fprintln(w, headerBox.Render(header))
	} else {
		fmt.Fprintln(w, header)
		fmt.Fprintln(w)
	}

	if sum.Err != nil {
		fmt.Fprintln(w, paint(errStyle, "state unreadable: "+sum.Err.Error()))
	}

	fmt.Fprintln(w,
		paint(statLabel, "tokens ")+paint(statValue, "~"+Count(tokens))+
			paint(statLabel, "  ·  files ")+paint(statValue, fmt.Sprintf("%d", st.ReadCount))+
			paint(statLabel, "  ·  bytes ")+paint(statValue, Count(st.TotalBytes)))
	fmt.Fprintln(w, paint(statLabel, "budget ")+Gauge(tokens, th.Block, 24, color)+
		paint(dimStyle, fmt.Sprintf("  suggest %s · warn %s · block %s", Count(th.Suggest), Count(th.Warn), Count(th.Block))))

	if st.Categories.Len() > 0 {
		fmt.Fprintln(w, paint(sectionTitle, "◆ Categories"))
		for _, b := range st.Categories.Sorted() {
			fmt.Fprintf(w, "  %-8s %s %d\n", b.Key, bar(b.Count, color), b.Count)
		}
	}

	if st.Directories.Len() > 0 {
		fmt.Fprintln(w, paint(sectionTitle, "◆ Directories"))
		const maxShow = 6
		for i, b := range st.Directories.Sorted() {
			if i >= maxShow {
				fmt.Fprintln(w, paint(dimStyle, fmt.Sprintf("  ... +%d more", st.Directories.Len()-maxShow)))
				break
			}
			dir := b.Key
			if dir == "" {
				dir = "."
			}
			fmt.Fprintf(w, "  %s %s %d\n", paint(dirStyle, dir), bar(b.Count, color), b.Count)
		}
	}

	if sug := budget.Advise(st); sug.Actionable() {
		fmt.Fprintln(w, paint(sectionTitle, "◆ Advice"))
		fmt.Fprintf(w, "  %s (%s)\n  %s\n", sug.Strategy, sug.SubagentType, sug.PartitionHint)
	}

	if !sum.ModTime.IsZero() {
		fmt.Fprintln(w)
		fmt.Fprintln(w, paint(timeStyle, "updated "+FormatTimeAgo(sum.ModTime)))
	}
}

// Sessions writes one line per stored session.
func Sessions(w io.Writer, sums []session.Summary, th limits.Thresholds, color bool) {
	paint := painter(color)
	if len(sums) == 0 {
		fmt.Fprintln(w, paint(dimStyle, "No sessions tracked"))
		return
	}
	width := 8
	for _, s := range sums {
		width = max(width, len(s.ID))
	}
	for _, s := range sums {
		tokens := s.State.EstimatedTokens()
		tier := th.TierFor(tokens)
		line := fmt.Sprintf("%-*s  %s  %8s tokens  %4d files  %s",
			width, s.ID,
			paint(TierStyle(tier), fmt.Sprintf("%-7s", tier.String())),
			"~"+Count(tokens), s.State.ReadCount,
			paint(timeStyle, FormatTimeAgo(s.ModTime)))
		if s.Err != nil {
			line += "  " + paint(errStyle, "unreadable")
		}
		fmt.Fprintln(w, line)
	}
}

// Gauge draws a fill bar of used against limit.
func Gauge(used, limit int64, width int, color bool) string {
	if width <= 0 || limit <= 0 {
		return ""
	}
	filled := int(used * int64(width) / limit)
	filled = min(max(filled, 0), width)
	full := strings.Repeat("█", filled)
	empty := strings.Repeat("░", width-filled)
	if !color {
		return full + empty
	}
	style := lipgloss.NewStyle().Foreground(green)
	switch ratio := float64(used) / float64(limit); {
	case ratio > 1:
		style = style.Foreground(red)
	case ratio > 0.66:
		style = style.Foreground(orange)
	case ratio > 0.5:
		style = style.Foreground(yellow)
	}
	return style.Render(full) + lipgloss.NewStyle().Foreground(darkGray).Render(empty)
}

func bar(n int, color bool) string {
	s := strings.Repeat("━", min(n, 12))
	if !color {
		return s
	}
	switch {
	case n >= budget.DirectoryConcentration*2:
		return lipgloss.NewStyle().Foreground(orange).Bold(true).Render(s)
	case n >= budget.DirectoryConcentration:
		return lipgloss.NewStyle().Foreground(yellow).Render(s)
	}
	return lipgloss.NewStyle().Foreground(gray).Render(s)
}

func painter(color bool) func(lipgloss.Style, string) string {
	if !color {
		return func(_ lipgloss.Style, s string) string { return s }
	}
	return func(st lipgloss.Style, s string) string { return st.Render(s) }
}

// FormatTimeAgo returns a human-readable relative time
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "yesterday"
	}
	return fmt.Sprintf("%dd ago", days)
}
