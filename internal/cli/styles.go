package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	projectStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	folderStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	dirtyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	activeStyle  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("62"))
)

// methodBadge renders a fixed-width colored method label.
func methodBadge(method string) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))

	switch strings.ToUpper(method) {
	case "GET":
		return style.Background(lipgloss.Color("34")).Render(" GET ")
	case "POST":
		return style.Background(lipgloss.Color("214")).Foreground(lipgloss.Color("0")).Render(" POST")
	case "PUT":
		return style.Background(lipgloss.Color("33")).Render(" PUT ")
	case "PATCH":
		return style.Background(lipgloss.Color("141")).Render(" PTCH")
	case "DELETE":
		return style.Background(lipgloss.Color("160")).Render(" DEL ")
	case "HEAD":
		return style.Background(lipgloss.Color("240")).Render(" HEAD")
	case "OPTIONS":
		return style.Background(lipgloss.Color("240")).Render(" OPT ")
	default:
		return style.Background(lipgloss.Color("240")).Render(fmt.Sprintf(" %-4s", method))
	}
}

// statusStyle colors a response status by class.
func statusStyle(status int) lipgloss.Style {
	style := lipgloss.NewStyle().Bold(true)
	switch {
	case status >= 200 && status < 300:
		return style.Foreground(lipgloss.Color("34"))
	case status >= 300 && status < 400:
		return style.Foreground(lipgloss.Color("33"))
	case status >= 400 && status < 500:
		return style.Foreground(lipgloss.Color("214"))
	default:
		return style.Foreground(lipgloss.Color("160"))
	}
}
