package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/regador/regador/internal/version"
)

// AppName is shown in the header of every screen.
const AppName = "REGADOR"

// AppVersion returns the application version from the centralized version package
func AppVersion() string {
	return version.Version
}

// Layout constants for responsive terminal width
const (
	MinTerminalWidth = 80
	MinPaneWidth     = 38
)

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#2E9E5B") // Green
	SecondaryColor = lipgloss.Color("#43BF6D") // Light green
	WaterColor     = lipgloss.Color("#4FA3E0") // Blue
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF5555") // Red

	TextColor      = lipgloss.Color("#FFFFFF") // White
	SubtleColor    = lipgloss.Color("#626262") // Gray
	BorderColor    = lipgloss.Color("#2E9E5B")
	HighlightColor = lipgloss.Color("#4FA3E0")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(1, 0).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	SelectedMenuItemStyle = lipgloss.NewStyle().
				PaddingLeft(2).
				Foreground(HighlightColor).
				Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true).
			Padding(1, 2).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ErrorColor)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor)

	// Pane is the bordered box around each dashboard section.
	PaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	PaneTitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	ReadingValueStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Bold(true)

	ReadingErrorStyle = lipgloss.NewStyle().
				Foreground(ErrorColor).
				Bold(true)

	UnitStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	SparklineStyle = lipgloss.NewStyle().
			Foreground(WaterColor)

	FieldLabelStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Width(28)

	FieldValueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	FieldDisabledStyle = lipgloss.NewStyle().
				Foreground(SubtleColor)

	FocusedFieldStyle = lipgloss.NewStyle().
				Foreground(HighlightColor).
				Bold(true)

	ButtonStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Background(PrimaryColor).
			Padding(0, 2)

	FocusedButtonStyle = lipgloss.NewStyle().
				Foreground(TextColor).
				Background(WaterColor).
				Bold(true).
				Padding(0, 2)

	DisabledButtonStyle = lipgloss.NewStyle().
				Foreground(SubtleColor).
				Background(lipgloss.Color("236")).
				Padding(0, 2)

	LogLineStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	LogTimeStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	StatusOKStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor)

	StatusErrorStyle = lipgloss.NewStyle().
				Foreground(ErrorColor)

	StatusMutedStyle = lipgloss.NewStyle().
				Foreground(SubtleColor)
)

// RenderTitle renders a title with consistent styling
func RenderTitle(text string) string {
	return TitleStyle.Render(text)
}

// RenderSubtitle renders a subtitle with consistent styling
func RenderSubtitle(text string) string {
	return SubtitleStyle.Render(text)
}

// RenderError renders an error message
func RenderError(text string) string {
	return ErrorStyle.Render("✗ " + text)
}

// RenderPane draws a titled box of the given outer width.
func RenderPane(title, body string, width int) string {
	content := lipgloss.JoinVertical(lipgloss.Left, PaneTitleStyle.Render(title), body)
	return PaneStyle.Width(max(width-2, MinPaneWidth)).Render(content)
}

// BuildHeaderContent is the app name, version and the device being shown.
func BuildHeaderContent(subject string) string {
	left := lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true).
		Render(AppName + " v" + AppVersion())

	right := lipgloss.NewStyle().
		Foreground(SubtleColor).
		Render(subject)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

// RenderApplicationContainer wraps a screen in the full-screen frame: a
// header line, the content and a footer with the help text. Every screen
// renders through it.
func RenderApplicationContainer(subject, content, footerText string, terminalWidth, terminalHeight int) string {
	if terminalWidth < MinTerminalWidth {
		terminalWidth = MinTerminalWidth
	}

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	inner := lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render(BuildHeaderContent(subject)),
		lipgloss.NewStyle().Width(terminalWidth-4).Render(content),
		footerStyle.Render(lipgloss.NewStyle().Foreground(SubtleColor).Render(footerText)),
	)

	border := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(terminalWidth - 2)
	if terminalHeight > 2 {
		border = border.Height(terminalHeight - 2).AlignVertical(lipgloss.Top)
	}

	bordered := border.Render(inner)
	if terminalHeight <= 0 {
		return bordered
	}
	return lipgloss.Place(terminalWidth, terminalHeight, lipgloss.Left, lipgloss.Top, bordered)
}
