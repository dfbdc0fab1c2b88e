package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type styles struct {
	Title    lipgloss.Style
	Label    lipgloss.Style
	Active   lipgloss.Style
	Name     lipgloss.Style
	Selected lipgloss.Style
	Detail   lipgloss.Style
	Dim      lipgloss.Style
	Key      lipgloss.Style
	Error    lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99")).MarginBottom(1),
		Label:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(11),
		Active:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Width(11),
		Name:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220")),
		Detail:   lipgloss.NewStyle().Foreground(lipgloss.Color("246")).PaddingLeft(4),
		Dim:      lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Key:      lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
	}
}

// Label turns an enum value such as "created_at" into "Created At".
func Label(v string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(v, "_", " "))
}
