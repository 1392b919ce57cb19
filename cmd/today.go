package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/marcus/roster/internal/dateparse"
	"github.com/marcus/roster/internal/models"
	"github.com/marcus/roster/internal/output"
	"github.com/marcus/roster/internal/workpattern"
	"github.com/spf13/cobra"
)

var weekdayKo = [...]string{"일", "월", "화", "수", "목", "금", "토"}

// renderDashboard writes the teams on duty and the schedules for date. The
// "working now" section appears only when date is the day of now.
func renderDashboard(w io.Writer, data *models.AppData, date, now time.Time) {
	fmt.Fprintf(w, "%s (%s)\n", date.Format(workpattern.DateLayout), weekdayKo[date.Weekday()])

	fmt.Fprint(w, output.SectionHeader("on duty"))
	shifts, errs := workpattern.OnDuty(data.WorkTeams, date)
	if len(shifts) == 0 {
		fmt.Fprintln(w, "  no team on duty")
	}
	for _, s := range shifts {
		fmt.Fprintf(w, "  %s\n", output.FormatShift(s))
	}
	for _, err := range errs {
		fmt.Fprintf(w, "  ! %v\n", err)
	}

	if sameDay(date, now) {
		fmt.Fprint(w, output.SectionHeader("working now"))
		current := workpattern.WorkingAt(data.WorkTeams, now)
		if len(current) == 0 {
			fmt.Fprintln(w, "  nobody")
		}
		for _, s := range current {
			fmt.Fprintf(w, "  %s\n", output.FormatShift(s))
		}
	}

	fmt.Fprint(w, output.SectionHeader("schedules"))
	schedules := workpattern.SchedulesOn(data.Schedules, date)
	items := make([]models.Entity, len(schedules))
	for i, s := range schedules {
		items[i] = s
	}
	fmt.Fprintln(w, output.EntityTable(models.EntitySchedule, items))
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

var todayCmd = &cobra.Command{
	Use:     "today",
	Aliases: []string{"dashboard"},
	Short:   "Show teams on duty and the day's schedules",
	Args:    cobra.NoArgs,
	GroupID: "data",
	RunE: func(cmd *cobra.Command, args []string) error {
		now := time.Now()
		date, err := dateparse.Parse("today", now)
		if err != nil {
			return err
		}
		if raw, _ := cmd.Flags().GetString("date"); raw != "" {
			if date, err = dateparse.Parse(raw, now); err != nil {
				output.Error("%v", err)
				return err
			}
		}

		a, err := openReady(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		renderDashboard(cmd.OutOrStdout(), a.Data.Snapshot(), date, now)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(todayCmd)
	todayCmd.Flags().StringP("date", "d", "", "Date to show (YYYY-MM-DD, tomorrow, +1d, monday, 내일...)")
}
