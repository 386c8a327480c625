package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/regador/regador/internal/device"
	"github.com/regador/regador/internal/form"
	"github.com/regador/regador/internal/push"
	"github.com/regador/regador/internal/telemetry"
)

// View renders the dashboard
func (m DashboardModel) View() string {
	width := max(m.Width, MinTerminalWidth)
	half := width/2 - 3

	top := lipgloss.JoinHorizontal(lipgloss.Top,
		RenderPane("Leituras", m.renderReadings(), half),
		RenderPane("Últimos "+fmt.Sprint(telemetry.SeriesCap)+" segundos", m.renderCharts(), half),
	)

	right := []string{RenderPane("Registro", m.logView.View(), half)}
	if m.hist != nil {
		right = append(right, RenderPane("Histórico de regas", m.renderHistory(), half))
	}
	bottom := lipgloss.JoinHorizontal(lipgloss.Top,
		RenderPane("Configurações", m.renderForm(), half),
		lipgloss.JoinVertical(lipgloss.Left, right...),
	)

	content := lipgloss.JoinVertical(lipgloss.Left, top, bottom, m.renderStatus())

	helpText := m.Help.View(m.Keys)
	if m.Editing {
		helpText = m.Help.View(m.EditingKeys)
	}
	return RenderApplicationContainer(m.Name, content, helpText, m.Width, m.Height)
}

func (m DashboardModel) renderReadings() string {
	lines := make([]string, 0, len(telemetry.Sensors))
	for _, s := range telemetry.Sensors {
		value := m.Poller.Display(s)
		style := ReadingValueStyle
		if value == telemetry.ErrorMarker {
			style = ReadingErrorStyle
		}
		label := lipgloss.NewStyle().Width(18).Render(s.Title())
		lines = append(lines, label+style.Render(value)+" "+UnitStyle.Render(s.Unit()))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderCharts() string {
	lines := make([]string, 0, len(telemetry.Sensors))
	for _, s := range telemetry.Sensors {
		series := m.Poller.Series(s)
		label := lipgloss.NewStyle().Width(8).Render(shortTitle(s))
		lines = append(lines, label+SparklineStyle.Render(Sparkline(series.Values(), series.Cap())))
	}
	return strings.Join(lines, "\n")
}

func shortTitle(s telemetry.Sensor) string {
	switch s {
	case telemetry.Temperature:
		return "Temp"
	case telemetry.Humidity:
		return "Ar"
	case telemetry.SoilMoisture:
		return "Solo"
	case telemetry.Light:
		return "Luz"
	}
	return ""
}

func (m DashboardModel) renderForm() string {
	var b strings.Builder
	reg := m.Form.Registry()

	for i, f := range reg.Fields() {
		w := reg.Widget(f.ID)
		focused := i == m.Focus

		cursor := "  "
		if focused {
			cursor = "→ "
		}

		var value string
		switch {
		case focused && m.Editing:
			value = m.Input.View()
		case f.Kind == form.KindBoolean:
			value = "[ ]"
			if w.Checked {
				value = "[x]"
			}
		default:
			value = w.Value
			if f.Unit != "" && value != "" {
				value += " " + f.Unit
			}
		}

		labelStyle, valueStyle := FieldLabelStyle, FieldValueStyle
		switch {
		case w.Disabled:
			labelStyle, valueStyle = FieldLabelStyle.Foreground(SubtleColor), FieldDisabledStyle
		case focused:
			labelStyle, valueStyle = FieldLabelStyle.Foreground(HighlightColor).Bold(true), FocusedFieldStyle
		}
		indent := ""
		if f.Controller != "" {
			indent = "  "
		}
		b.WriteString(cursor + labelStyle.Render(indent+f.Label) + valueStyle.Render(value) + "\n")
	}

	b.WriteString("\n")
	n := len(reg.Fields())
	buttons := []string{
		m.renderButton("Salvar", m.Form.SaveEnabled() && !m.Saving, m.Focus == n+focusSave),
		m.renderButton("Desfazer", m.Form.UndoEnabled(), m.Focus == n+focusUndo),
		m.renderButton(m.Push.Button.Label(), m.Push.Button.Enabled(), m.Focus == n+focusWater),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, buttons[0], " ", buttons[1], " ", buttons[2]))

	if m.Form.Loading() || m.Saving {
		b.WriteString("\n\n" + m.Spinner.View() + " " + SubtitleStyle.Render("sincronizando..."))
	}
	return b.String()
}

func (m DashboardModel) renderButton(label string, enabled, focused bool) string {
	switch {
	case !enabled:
		return DisabledButtonStyle.Render(label)
	case focused:
		return FocusedButtonStyle.Render(label)
	default:
		return ButtonStyle.Render(label)
	}
}

func (m DashboardModel) renderHistory() string {
	if m.HistoryErr != nil && len(m.History) == 0 {
		return StatusErrorStyle.Render(device.GetShortErrorMessage(m.HistoryErr))
	}
	if len(m.History) == 0 {
		return StatusMutedStyle.Render("Nenhuma rega registrada")
	}
	return m.histTable.View()
}

func renderLogLines(entries []push.LogEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = LogTimeStyle.Render(e.Timestamp()) + " " + LogLineStyle.Render(e.Message)
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderStatus() string {
	parts := make([]string, 0, 4)

	if m.Connected {
		parts = append(parts, StatusOKStyle.Render("● conectado"))
	} else {
		parts = append(parts, StatusErrorStyle.Render("○ desconectado"))
	}

	if at := m.Poller.LastUpdate(); !at.IsZero() {
		parts = append(parts, StatusMutedStyle.Render("leitura "+at.Format("15:04:05")))
	}
	if err := m.Poller.LastError(); err != nil {
		parts = append(parts, StatusErrorStyle.Render(device.GetShortErrorMessage(err)))
	}
	if m.Form.IsDirty() {
		parts = append(parts, lipgloss.NewStyle().Foreground(WarningColor).Render("alterações não salvas"))
	}

	switch {
	case m.StatusErr != nil:
		parts = append(parts, StatusErrorStyle.Render(m.Status+": "+m.StatusErr.Error()))
	case m.Status != "":
		parts = append(parts, StatusOKStyle.Render(m.Status))
	}

	return " " + strings.Join(parts, StatusMutedStyle.Render("  •  "))
}
