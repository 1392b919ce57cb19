package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/marcus/roster/internal/admin"
	"github.com/marcus/roster/internal/gate"
	"github.com/marcus/roster/internal/models"
	"github.com/marcus/roster/internal/output"
	"github.com/marcus/roster/internal/workpattern"
)

var weekdayKo = [...]string{"일", "월", "화", "수", "목", "금", "토"}

// View implements tea.Model.
func (m Model) View() string {
	header := m.renderHeader()
	footer := m.help.View(m.keys)
	body := m.renderBody()

	lines := strings.Split(body, "\n")
	if m.Height > 0 {
		avail := m.Height - lipgloss.Height(header) - lipgloss.Height(footer) - 1
		if avail < 1 {
			avail = 1
		}
		if len(lines) > avail {
			lines = append(lines[:avail-1], subtleStyle.Render(fmt.Sprintf("… %d more lines", len(lines)-avail+1)))
		}
	}
	out := strings.Split(lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(lines, "\n"), footer), "\n")
	if m.Width > 0 {
		for i, l := range out {
			out[i] = ansi.Truncate(l, m.Width, "…")
		}
	}
	return strings.Join(out, "\n")
}

func (m Model) renderHeader() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("roster"))
	if m.app != nil {
		b.WriteString("  " + output.FormatDataSource(m.app.Active.DataSource))
	}
	b.WriteString("  " + formatMode(m.Mode))
	if m.admin() {
		b.WriteString("  " + adminBadge.Render("ADMIN"))
	}
	b.WriteString("\n")

	var tabs []string
	for _, t := range m.VisibleTabs() {
		style := tabStyle
		if t == m.Tab {
			style = activeTabStyle
		}
		tabs = append(tabs, style.Render(t.Label()))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	return b.String()
}

func (m Model) renderBody() string {
	if m.Err != nil && m.Mode.Kind != gate.Ready {
		return errorStyle.Render("Error: " + m.Err.Error())
	}
	switch m.Mode.Kind {
	case gate.AuthInitializing:
		return m.spinner.View() + " Connecting to Google..."
	case gate.Loading:
		return m.spinner.View() + " Loading data..."
	case gate.NeedsSignIn:
		if m.DeviceCode != nil {
			return fmt.Sprintf("Open %s\nand enter code: %s\n\nWaiting for sign-in...",
				m.DeviceCode.URI, titleStyle.Render(m.DeviceCode.Code))
		}
		return output.Guidance(m.Mode) + "\n" + subtleStyle.Render("Press s to sign in here.")
	case gate.Ready:
	default:
		return output.Guidance(m.Mode) + "\n" + subtleStyle.Render("Press r to retry.")
	}

	data := m.app.Data.Snapshot()
	switch m.Tab {
	case admin.TabDashboard:
		return m.renderDashboard(data)
	case admin.TabSchedules:
		return m.renderDate() + "\n" + scheduleTable(data, m.Date)
	case admin.TabDrivers:
		return output.EntityTable(models.EntityDriver, data.Items(models.EntityDriver))
	case admin.TabVehicles:
		return output.EntityTable(models.EntityVehicle, data.Items(models.EntityVehicle))
	case admin.TabWorkTeams:
		return output.EntityTable(models.EntityWorkTeam, data.Items(models.EntityWorkTeam))
	case admin.TabData:
		return m.renderDataTab(data)
	}
	return ""
}

func (m Model) renderDate() string {
	return titleStyle.Render(fmt.Sprintf("%s (%s)", m.Date.Format(workpattern.DateLayout), weekdayKo[m.Date.Weekday()]))
}

func (m Model) renderDashboard(data *models.AppData) string {
	var b strings.Builder
	b.WriteString(m.renderDate())
	b.WriteString("\n")

	b.WriteString(sectionHeader.Render("On duty"))
	b.WriteString("\n")
	shifts, errs := workpattern.OnDuty(data.WorkTeams, m.Date)
	if len(shifts) == 0 {
		b.WriteString(subtleStyle.Render("  no team on duty") + "\n")
	}
	for _, s := range shifts {
		b.WriteString("  " + output.FormatShift(s) + "\n")
	}
	for _, err := range errs {
		b.WriteString(errorStyle.Render("  ! "+err.Error()) + "\n")
	}

	now := m.Now()
	if midnight(now).Equal(midnight(m.Date.In(now.Location()))) {
		b.WriteString(sectionHeader.Render("Working now"))
		b.WriteString("\n")
		current := workpattern.WorkingAt(data.WorkTeams, now)
		if len(current) == 0 {
			b.WriteString(subtleStyle.Render("  nobody") + "\n")
		}
		for _, s := range current {
			b.WriteString("  " + output.FormatShift(s) + "\n")
		}
	}

	b.WriteString(sectionHeader.Render("Schedules"))
	b.WriteString("\n")
	b.WriteString(scheduleTable(data, m.Date))
	return b.String()
}

func scheduleTable(data *models.AppData, date time.Time) string {
	schedules := workpattern.SchedulesOn(data.Schedules, date)
	items := make([]models.Entity, len(schedules))
	for i, s := range schedules {
		items[i] = s
	}
	return output.EntityTable(models.EntitySchedule, items)
}

func (m Model) renderDataTab(data *models.AppData) string {
	var rows [][]string
	total := 0
	for _, t := range models.AllEntityTypes {
		n := data.Len(t)
		total += n
		rows = append(rows, []string{t.Collection(), fmt.Sprint(n)})
	}
	rows = append(rows, []string{"total", fmt.Sprint(total)})

	var b strings.Builder
	b.WriteString(output.Table([]string{"COLLECTION", "RECORDS"}, rows))
	b.WriteString("\n")
	if !m.LoadedAt.IsZero() {
		b.WriteString(subtleStyle.Render("loaded " + output.FormatTimeAgo(m.LoadedAt)))
		b.WriteString("\n")
	}
	b.WriteString(subtleStyle.Render("Back up with `roster backup export`, restore with `roster backup import`."))
	return b.String()
}
