// Package output provides styled terminal output helpers (success, error,
// warning, mode and record formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/marcus/roster/internal/gate"
	"github.com/marcus/roster/internal/models"
	"github.com/marcus/roster/internal/settings"
	"github.com/marcus/roster/internal/workpattern"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("45"))
	modeStyles   = map[gate.Kind]lipgloss.Style{
		gate.Ready:            lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		gate.Loading:          lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		gate.AuthInitializing: lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		gate.AuthError:        lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		gate.LoadError:        lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// Error codes for structured JSON output
const (
	ErrCodeNotFound      = "not_found"
	ErrCodeInvalidInput  = "invalid_input"
	ErrCodeNotReady      = "not_ready"
	ErrCodeAuthRequired  = "auth_required"
	ErrCodeStorageQuota  = "storage_quota"
	ErrCodeBackendError  = "backend_error"
	ErrCodeAdminRequired = "admin_required"
)

// JSONError outputs an error as JSON
func JSONError(code, message string) {
	JSONErrorWithDetails(code, message, nil)
}

// JSONErrorWithDetails outputs an error as JSON with additional context
func JSONErrorWithDetails(code, message string, details map[string]interface{}) {
	errObj := map[string]interface{}{
		"code":    code,
		"message": message,
	}
	if len(details) > 0 {
		errObj["details"] = details
	}
	result := map[string]interface{}{
		"error": errObj,
	}
	data, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(data))
}

// FormatMode formats a gate mode with color
func FormatMode(m gate.Mode) string {
	style, ok := modeStyles[m.Kind]
	if !ok {
		style = warningStyle
	}
	return style.Render(fmt.Sprintf("[%s]", m))
}

// FormatDataSource returns a readable data source name
func FormatDataSource(ds settings.DataSource) string {
	switch ds {
	case settings.Local:
		return "local (this computer)"
	case settings.GoogleSheets:
		return "Google Sheets"
	}
	return subtleStyle.Render("not selected")
}

// Mask hides all but the last four characters of a credential.
func Mask(s string) string {
	if s == "" {
		return subtleStyle.Render("(unset)")
	}
	r := []rune(s)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nSCHEDULES:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

// pad right-pads s to width display cells. Hangul is two cells wide.
func pad(s string, width int) string {
	if w := lipgloss.Width(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}

// Table aligns rows under header. Column widths use display cells.
func Table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if w := lipgloss.Width(row[i]); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var sb strings.Builder
	cells := make([]string, len(header))
	for i, h := range header {
		cells[i] = headerStyle.Render(pad(h, widths[i]))
	}
	sb.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
	for _, row := range rows {
		sb.WriteString("\n")
		for i := range header {
			v := ""
			if i < len(row) {
				v = row[i]
			}
			cells[i] = pad(v, widths[i])
		}
		sb.WriteString(strings.TrimRight(strings.Join(cells, "  "), " "))
	}
	return sb.String()
}

// EntityTable renders records of one type with every field as a column.
func EntityTable(t models.EntityType, items []models.Entity) string {
	header := models.FieldNames(t)
	rows := make([][]string, 0, len(items))
	for _, e := range items {
		fields, err := models.Fields(e)
		if err != nil {
			continue
		}
		row := make([]string, len(header))
		for i, name := range header {
			row[i] = fields[name]
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return subtleStyle.Render(fmt.Sprintf("no %s", t.Collection()))
	}
	return Table(header, rows)
}

// FormatEntityShort formats one record on a single line
func FormatEntityShort(e models.Entity) string {
	id := titleStyle.Render(e.EntityID())
	switch v := e.(type) {
	case models.Schedule:
		return fmt.Sprintf("%s  %s  %s  %s  %s", id, v.Date, v.WorkTeam, v.DriverName, subtleStyle.Render(v.VehicleNumber))
	case models.Driver:
		return fmt.Sprintf("%s  %s  %s", id, v.DriverName, subtleStyle.Render(v.Contact))
	case models.Vehicle:
		return fmt.Sprintf("%s  %s  %s", id, v.VehicleNumber, subtleStyle.Render(v.VehicleModel))
	case models.WorkTeam:
		return fmt.Sprintf("%s  %s  %s  %s-%s %s-%s", id, v.WorkTeam, v.WorkPattern, v.StartDay, v.EndDay, v.StartTime, v.EndTime)
	}
	return id
}

// FormatShift formats a team's shift, marking overnight shifts.
func FormatShift(s workpattern.Shift) string {
	span := fmt.Sprintf("%s-%s", s.Start.Format("15:04"), s.End.Format("15:04"))
	if s.Overnight() {
		span += subtleStyle.Render(" (+1d)")
	}
	line := titleStyle.Render(pad(s.Team.WorkTeam, 6)) + "  " + span
	if s.Team.ShiftName != "" {
		line += "  " + subtleStyle.Render(s.Team.ShiftName)
	}
	return line
}
