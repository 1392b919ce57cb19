package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/marcus/roster/internal/admin"
	"github.com/marcus/roster/internal/backend"
	"github.com/marcus/roster/internal/dateparse"
	"github.com/marcus/roster/internal/models"
	"github.com/marcus/roster/internal/orchestrator"
	"github.com/marcus/roster/internal/output"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// recordKind describes one entity command family.
type recordKind struct {
	Type    models.EntityType
	Use     string
	Aliases []string
	Noun    string
	// Tab gates list when it is admin-only. Changes always need admin mode.
	Tab admin.Tab
}

var recordKinds = []recordKind{
	{Type: models.EntitySchedule, Use: "schedule", Aliases: []string{"schedules", "sch"}, Noun: "schedule", Tab: admin.TabSchedules},
	{Type: models.EntityDriver, Use: "driver", Aliases: []string{"drivers"}, Noun: "driver", Tab: admin.TabDrivers},
	{Type: models.EntityVehicle, Use: "vehicle", Aliases: []string{"vehicles", "car"}, Noun: "vehicle", Tab: admin.TabVehicles},
	{Type: models.EntityWorkTeam, Use: "team", Aliases: []string{"teams", "workteam"}, Noun: "work team", Tab: admin.TabWorkTeams},
}

// flagName maps a field name to its flag: driver_name -> driver-name.
func flagName(field string) string {
	return strings.ReplaceAll(field, "_", "-")
}

// dataFields are the settable fields of t (everything but id).
func dataFields(t models.EntityType) []string {
	names := models.FieldNames(t)
	out := names[:0]
	for _, n := range names {
		if n != "id" {
			out = append(out, n)
		}
	}
	return out
}

// isDateField reports whether a field holds a calendar date.
func isDateField(field string) bool {
	return field == "date" || strings.HasSuffix(field, "_date")
}

// fieldsFromFlags collects the fields whose flags were given. Date fields
// accept anything dateparse understands.
func fieldsFromFlags(t models.EntityType, flags *pflag.FlagSet, now time.Time) (map[string]string, error) {
	out := map[string]string{}
	for _, field := range dataFields(t) {
		name := flagName(field)
		if !flags.Changed(name) {
			continue
		}
		v, _ := flags.GetString(name)
		v = strings.TrimSpace(v)
		if isDateField(field) && v != "" {
			d, err := dateparse.ParseDate(v, now)
			if err != nil {
				return nil, fmt.Errorf("--%s: %w", name, err)
			}
			v = d
		}
		out[field] = v
	}
	return out, nil
}

// mergeFields applies changes on top of an existing record.
func mergeFields(e models.Entity, changes map[string]string) (models.Entity, error) {
	fields, err := models.Fields(e)
	if err != nil {
		return nil, err
	}
	for k, v := range changes {
		fields[k] = v
	}
	return models.FromFields(e.EntityType(), fields)
}

// danglingRefs lists the schedule's driver and vehicle references that
// match no record. References are by name only and never enforced.
func danglingRefs(data *models.AppData, s models.Schedule) []string {
	var out []string
	if s.DriverName != "" {
		found := false
		for _, d := range data.Drivers {
			if d.DriverName == s.DriverName {
				found = true
				break
			}
		}
		if !found {
			out = append(out, fmt.Sprintf("driver %q is not on the roster", s.DriverName))
		}
	}
	if s.VehicleNumber != "" {
		found := false
		for _, v := range data.Vehicles {
			if v.VehicleNumber == s.VehicleNumber {
				found = true
				break
			}
		}
		if !found {
			out = append(out, fmt.Sprintf("vehicle %q is not in the fleet", s.VehicleNumber))
		}
	}
	return out
}

// filterRecords keeps schedules dated on date (when set) and sorts the rest
// the way the list command shows them.
func filterRecords(t models.EntityType, items []models.Entity, date string) []models.Entity {
	out := items[:0:0]
	for _, e := range items {
		if s, ok := e.(models.Schedule); ok && date != "" && s.Date != date {
			continue
		}
		out = append(out, e)
	}
	if t == models.EntitySchedule {
		sort.SliceStable(out, func(i, j int) bool {
			a, b := out[i].(models.Schedule), out[j].(models.Schedule)
			if a.Date != b.Date {
				return a.Date < b.Date
			}
			return a.WorkTeam < b.WorkTeam
		})
	}
	return out
}

func warnDangling(o *orchestrator.Orchestrator, e models.Entity) {
	s, ok := e.(models.Schedule)
	if !ok {
		return
	}
	for _, w := range danglingRefs(o.Snapshot(), s) {
		output.Warning("%s", w)
	}
}

func newRecordCmd(k recordKind) *cobra.Command {
	parent := &cobra.Command{
		Use:     k.Use,
		Aliases: k.Aliases,
		Short:   fmt.Sprintf("Manage %ss", k.Noun),
		GroupID: "data",
	}

	addFieldFlags := func(c *cobra.Command) {
		for _, field := range dataFields(k.Type) {
			help := strings.ReplaceAll(field, "_", " ")
			if field == "work_pattern" {
				help += " (weekly, alternate_odd, alternate_even)"
			}
			if isDateField(field) {
				help += " (YYYY-MM-DD, today, +1d, monday...)"
			}
			c.Flags().String(flagName(field), "", help)
		}
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: fmt.Sprintf("Add a %s", k.Noun),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if err := requireEdit(k.Tab); err != nil {
				return err
			}
			fields, err := fieldsFromFlags(k.Type, cmd.Flags(), time.Now())
			if err != nil {
				return reportError(jsonOut, err)
			}
			if k.Type == models.EntityWorkTeam {
				if _, ok := fields["work_pattern"]; !ok {
					fields["work_pattern"] = string(models.PatternWeekly)
				}
			}
			item, err := models.FromFields(k.Type, fields)
			if err != nil {
				return reportError(jsonOut, err)
			}

			a, err := openReady(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			added, err := a.Data.Add(cmd.Context(), k.Type, item)
			if err != nil {
				return reportError(jsonOut, err)
			}
			if jsonOut {
				return output.JSON(added)
			}
			output.Success("Added %s %s", k.Noun, added.EntityID())
			warnDangling(a.Data, added)
			return nil
		},
	}
	addFieldFlags(addCmd)

	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: fmt.Sprintf("Change fields of a %s", k.Noun),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if err := requireEdit(k.Tab); err != nil {
				return err
			}
			changes, err := fieldsFromFlags(k.Type, cmd.Flags(), time.Now())
			if err != nil {
				return reportError(jsonOut, err)
			}
			if len(changes) == 0 {
				return reportError(jsonOut, fmt.Errorf("nothing to update: pass at least one field flag"))
			}

			a, err := openReady(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			current, ok := a.Data.Snapshot().Find(k.Type, args[0])
			if !ok {
				return reportError(jsonOut, backend.NotFound(k.Type, args[0]))
			}
			item, err := mergeFields(current, changes)
			if err != nil {
				return reportError(jsonOut, err)
			}
			if err := a.Data.Update(cmd.Context(), k.Type, item); err != nil {
				return reportError(jsonOut, err)
			}
			if jsonOut {
				return output.JSON(item)
			}
			output.Success("Updated %s %s", k.Noun, item.EntityID())
			warnDangling(a.Data, item)
			return nil
		},
	}
	addFieldFlags(updateCmd)

	rmCmd := &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"remove", "delete"},
		Short:   fmt.Sprintf("Remove %ss", k.Noun),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if err := requireEdit(k.Tab); err != nil {
				return err
			}
			a, err := openReady(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if len(args) == 1 {
				err = a.Data.Remove(cmd.Context(), k.Type, args[0])
			} else {
				err = a.Data.BulkRemove(cmd.Context(), k.Type, args)
			}
			if err != nil {
				return reportError(jsonOut, err)
			}
			if jsonOut {
				return output.JSON(map[string]interface{}{"removed": args})
			}
			output.Success("Removed %d %s(s)", len(args), k.Noun)
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   fmt.Sprintf("List %ss", k.Noun),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			if k.Tab.AdminOnly() {
				if err := requireAdmin(k.Tab); err != nil {
					return err
				}
			}
			var date string
			if k.Type == models.EntitySchedule {
				if raw, _ := cmd.Flags().GetString("date"); raw != "" {
					d, err := dateparse.ParseDate(raw, time.Now())
					if err != nil {
						return reportError(jsonOut, err)
					}
					date = d
				}
			}

			a, err := openReady(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			items := filterRecords(k.Type, a.Data.Snapshot().Items(k.Type), date)
			if jsonOut {
				return output.JSON(items)
			}
			fmt.Println(output.EntityTable(k.Type, items))
			return nil
		},
	}
	if k.Type == models.EntitySchedule {
		listCmd.Flags().String("date", "", "Only schedules on this date (YYYY-MM-DD, today, +1d, monday...)")
	}

	for _, c := range []*cobra.Command{addCmd, updateCmd, rmCmd, listCmd} {
		c.Flags().Bool("json", false, "JSON output")
	}
	parent.AddCommand(addCmd, updateCmd, rmCmd, listCmd)
	return parent
}

func init() {
	for _, k := range recordKinds {
		rootCmd.AddCommand(newRecordCmd(k))
	}
}
