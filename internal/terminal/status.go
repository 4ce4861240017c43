package terminal

import "github.com/charmbracelet/lipgloss"

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

// Success formats a final status line for a completed run
func Success(msg string) string { return successStyle.Render("done") + " " + msg }

// Warning formats a status line for a non-fatal problem
func Warning(msg string) string { return warningStyle.Render("warning") + " " + msg }

// Failure formats a status line for a failed stage
func Failure(msg string) string { return failureStyle.Render("error") + " " + msg }
