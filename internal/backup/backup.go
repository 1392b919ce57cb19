// Package backup exports and imports the whole dataset.
//
// Formats: plain JSON, snappy-compressed JSON, YAML, and an XLSX workbook
// with one sheet per collection laid out like the remote spreadsheet.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/marcus/roster/internal/models"
	"github.com/marcus/roster/internal/orchestrator"
	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Format is a backup encoding.
type Format string

const (
	FormatJSON   Format = "json"
	FormatSnappy Format = "json.sz"
	FormatYAML   Format = "yaml"
	FormatXLSX   Format = "xlsx"
)

// Version is written into every JSON/YAML envelope.
const Version = 1

var ErrUnknownFormat = errors.New("unknown backup format")

// FormatFromPath picks the format from a file name or object key.
func FormatFromPath(path string) (Format, error) {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".json.sz"), strings.HasSuffix(name, ".sz"):
		return FormatSnappy, nil
	case strings.HasSuffix(name, ".json"):
		return FormatJSON, nil
	case strings.HasSuffix(name, ".yaml"), strings.HasSuffix(name, ".yml"):
		return FormatYAML, nil
	case strings.HasSuffix(name, ".xlsx"):
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
}

// ParseFormat parses a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatSnappy, FormatYAML, FormatXLSX:
		return f, nil
	case "snappy", "sz":
		return FormatSnappy, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Envelope wraps the data with export metadata.
type Envelope struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exportedAt"`
	DataSource string          `json:"dataSource,omitempty"`
	Data       *models.AppData `json:"data"`
}

// Encode writes data in format f.
func Encode(w io.Writer, f Format, env Envelope) error {
	if env.Version == 0 {
		env.Version = Version
	}
	if env.Data == nil {
		env.Data = models.NewAppData()
	}
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	case FormatSnappy:
		raw, err := json.Marshal(env)
		if err != nil {
			return err
		}
		_, err = w.Write(snappy.Encode(nil, raw))
		return err
	case FormatYAML:
		return encodeYAML(w, env)
	case FormatXLSX:
		return encodeXLSX(w, env.Data)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

// Decode reads a backup in format f.
func Decode(r io.Reader, f Format) (*Envelope, error) {
	var env Envelope
	switch f {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&env); err != nil {
			return nil, fmt.Errorf("decode json backup: %w", err)
		}
	case FormatSnappy:
		compressed, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		raw, err := snappy.Decode(nil, compressed)
		if err != nil {
			return nil, fmt.Errorf("snappy decompress: %w", err)
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, fmt.Errorf("decode json backup: %w", err)
		}
	case FormatYAML:
		if err := decodeYAML(r, &env); err != nil {
			return nil, err
		}
	case FormatXLSX:
		data, err := decodeXLSX(r)
		if err != nil {
			return nil, err
		}
		env = Envelope{Version: Version, Data: data}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}
	if env.Version > Version {
		return nil, fmt.Errorf("backup version %d is newer than supported version %d", env.Version, Version)
	}
	if env.Data == nil {
		env.Data = models.NewAppData()
	}
	env.Data.Normalize()
	return &env, nil
}

// YAML goes through the JSON field names so both formats share one schema.
func encodeYAML(w io.Writer, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return err
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func decodeYAML(r io.Reader, env *Envelope) error {
	var generic map[string]any
	if err := yaml.NewDecoder(r).Decode(&generic); err != nil {
		return fmt.Errorf("decode yaml backup: %w", err)
	}
	raw, err := json.Marshal(generic)
	if err != nil {
		return fmt.Errorf("decode yaml backup: %w", err)
	}
	if err := json.Unmarshal(raw, env); err != nil {
		return fmt.Errorf("decode yaml backup: %w", err)
	}
	return nil
}

func encodeXLSX(w io.Writer, data *models.AppData) error {
	f := excelize.NewFile()
	defer f.Close()

	first := f.GetSheetName(f.GetActiveSheetIndex())
	for i, t := range models.AllEntityTypes {
		sheet := t.Collection()
		if i == 0 {
			if err := f.SetSheetName(first, sheet); err != nil {
				return err
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return err
		}

		header := models.FieldNames(t)
		for col, name := range header {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := f.SetCellValue(sheet, cell, name); err != nil {
				return err
			}
		}
		for row, e := range data.Items(t) {
			fields, err := models.Fields(e)
			if err != nil {
				return err
			}
			for col, name := range header {
				cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
				if err := f.SetCellStr(sheet, cell, fields[name]); err != nil {
					return fmt.Errorf("failed to set cell value: %w", err)
				}
			}
		}
	}
	_, err := f.WriteTo(w)
	return err
}

func decodeXLSX(r io.Reader) (*models.AppData, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	data := models.NewAppData()
	for _, t := range models.AllEntityTypes {
		sheet := t.Collection()
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			continue
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("failed to read rows: %w", err)
		}
		if len(rows) == 0 {
			continue
		}
		header := rows[0]
		for _, row := range rows[1:] {
			fields := make(map[string]string, len(header))
			empty := true
			for i, name := range header {
				if i < len(row) {
					fields[name] = row[i]
					if strings.TrimSpace(row[i]) != "" {
						empty = false
					}
				}
			}
			if empty {
				continue
			}
			e, err := models.FromFields(t, fields)
			if err != nil {
				return nil, fmt.Errorf("sheet %s: %w", sheet, err)
			}
			if err := data.Insert(e); err != nil {
				return nil, err
			}
		}
	}
	return data, nil
}

// Export snapshots o and encodes it.
func Export(o *orchestrator.Orchestrator, f Format, dataSource string) ([]byte, error) {
	var buf bytes.Buffer
	env := Envelope{
		Version:    Version,
		ExportedAt: time.Now().UTC().Truncate(time.Second),
		DataSource: dataSource,
		Data:       o.Snapshot(),
	}
	if err := Encode(&buf, f, env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Stats counts records written by Restore, per entity type.
type Stats map[models.EntityType]int

// Total sums the counts.
func (s Stats) Total() int {
	n := 0
	for _, v := range s {
		n += v
	}
	return n
}

// Restore adds every record of data through o, so the active backend assigns
// fresh ids. With replace set, existing records are removed first. It stops
// at the first failure; records already written stay written.
func Restore(ctx context.Context, o *orchestrator.Orchestrator, data *models.AppData, replace bool) (Stats, error) {
	stats := Stats{}
	if replace {
		current := o.Snapshot()
		for _, t := range models.AllEntityTypes {
			var ids []string
			for _, e := range current.Items(t) {
				ids = append(ids, e.EntityID())
			}
			if err := o.BulkRemove(ctx, t, ids); err != nil {
				return stats, fmt.Errorf("clear %s: %w", t.Collection(), err)
			}
		}
	}
	for _, t := range models.AllEntityTypes {
		for _, e := range data.Items(t) {
			if _, err := o.Add(ctx, t, e.WithID("")); err != nil {
				return stats, fmt.Errorf("restore %s: %w", t, err)
			}
			stats[t]++
		}
	}
	slog.Info("backup restored", "records", stats.Total(), "replace", replace)
	return stats, nil
}
