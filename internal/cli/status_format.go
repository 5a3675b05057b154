package cli

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/firmkit/tplsync/internal/models"
)

var (
	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleNew  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	styleSkip = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	styleAuth = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

func colorEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return !IsJSONOutput() && hasTTY()
}

func colorize(text string, style lipgloss.Style) string {
	if !colorEnabled() {
		return text
	}
	return style.Render(text)
}

func formatEventType(eventType models.EventType) string {
	label, style := labelForEvent(eventType)
	return colorize(formatStatusLabel(label, string(eventType)), style)
}

func labelForEvent(eventType models.EventType) (string, lipgloss.Style) {
	switch eventType {
	case models.EventTypeTemplateSaved, models.EventTypeTemplateUpdated:
		return "OK", styleOK
	case models.EventTypeTemplateCreated:
		return "NEW", styleNew
	case models.EventTypeTemplateSkipped:
		return "SKIP", styleSkip
	case models.EventTypeTokensAuthorized, models.EventTypeTokensRefreshed:
		return "AUTH", styleAuth
	default:
		return "WARN", styleWarn
	}
}

func formatStatusLabel(label, status string) string {
	normalized := strings.TrimSpace(status)
	if normalized == "" {
		return label
	}
	return label + " " + strings.ReplaceAll(normalized, "_", " ")
}
