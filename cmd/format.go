package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/resdir/pkg/core"
	"github.com/rubiojr/resdir/pkg/intent"
	"github.com/rubiojr/resdir/pkg/storage"
	"github.com/rubiojr/resdir/pkg/tui"
)

var (
	nameStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	detailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
)

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// formatTime formats a time relative to now or as an absolute date
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < 24*time.Hour {
		if diff < time.Hour {
			minutes := int(diff.Minutes())
			if minutes < 1 {
				return "just now"
			}
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	}

	if diff < 7*24*time.Hour {
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}

	if t.Year() == now.Year() {
		return t.Format("Jan 2, 15:04")
	}
	return t.Format("Jan 2, 2006")
}

// formatDuration formats a duration in human-readable form
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Hour:
		return fmt.Sprintf("%d minutes", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%.1f hours", d.Hours())
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%.1f days", d.Hours()/24)
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%.1f months", d.Hours()/(24*30))
	default:
		return fmt.Sprintf("%.1f years", d.Hours()/(24*365))
	}
}

// formatStats prints store statistics
func formatStats(w io.Writer, st *storage.Stats) {
	fmt.Fprintf(w, "📊 Directory Statistics\n")
	fmt.Fprintf(w, "═══════════════════════\n\n")

	fmt.Fprintf(w, "Categories: %s\n", formatNumber(st.Categories))
	fmt.Fprintf(w, "Resources:  %s", formatNumber(st.Resources))
	if st.Resources > 0 {
		fmt.Fprintf(w, " (%s approved, %.1f%%)", formatNumber(st.Approved), float64(st.Approved)/float64(st.Resources)*100)
	}
	fmt.Fprintf(w, "\n")

	if st.Resources == 0 {
		fmt.Fprintf(w, "\nNo resources imported yet.\n")
		return
	}
	fmt.Fprintf(w, "Oldest:     %s\n", formatTime(st.Oldest))
	fmt.Fprintf(w, "Newest:     %s\n", formatTime(st.Newest))
	fmt.Fprintf(w, "Span:       %s\n", formatDuration(st.Newest.Sub(st.Oldest)))
}

// formatResultPage prints one page of search results
func formatResultPage(w io.Writer, in intent.Intent, page *core.ResultPage, categories map[int64]string) {
	if page.TotalCount == 0 {
		fmt.Fprintln(w, "No results found")
		return
	}

	start := core.Offset(page.Page, page.PageSize) + 1
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%d results, showing page %d of %d (sorted by %s, %s)",
		page.TotalCount, page.Page, page.TotalPages, tui.Label(string(in.SortBy)), in.SortOrder)))
	fmt.Fprintln(w)

	if len(page.Items) == 0 {
		fmt.Fprintln(w, dimStyle.Render("This page is past the last result."))
		return
	}

	for i, r := range page.Items {
		line := fmt.Sprintf("%d. %s", start+i, nameStyle.Render(r.Name))
		if c, ok := categories[r.CategoryID]; ok {
			line += dimStyle.Render("  [" + c + "]")
		}
		fmt.Fprintln(w, line)
		if r.Description != "" {
			fmt.Fprintln(w, "   "+detailStyle.Render(r.Description))
		}
		var details []string
		if r.Address != "" {
			details = append(details, r.Address)
		}
		if r.Phone != "" {
			details = append(details, r.Phone)
		}
		if r.Website != "" {
			details = append(details, r.Website)
		}
		if len(details) > 0 {
			fmt.Fprintln(w, "   "+dimStyle.Render(strings.Join(details, " · ")))
		}
		if len(r.ServicesOffered) > 0 {
			fmt.Fprintln(w, "   "+dimStyle.Render("services: "+strings.Join(r.ServicesOffered, ", ")))
		}
		if i < len(page.Items)-1 {
			fmt.Fprintln(w)
		}
	}
}
