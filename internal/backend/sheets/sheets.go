// Package sheets implements the remote backend on a Google spreadsheet:
// one tab per collection, a header row naming the columns, one record per row.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/marcus/roster/internal/backend"
	"github.com/marcus/roster/internal/models"
	"github.com/xuri/excelize/v2"
)

// ErrNoSpreadsheet is returned when no spreadsheet id is configured.
var ErrNoSpreadsheet = errors.New("no spreadsheet selected")

// Session hands out an authorized HTTP client, or an error when signed out.
type Session interface {
	HTTPClient(ctx context.Context) (*http.Client, error)
}

// Store is the remote sheet backend.
type Store struct {
	session       Session
	spreadsheetID string
	apiKey        string
	sheetsURL     string
	driveURL      string
	newID         func() string
}

// Option configures a Store.
type Option func(*Store)

// WithEndpoints points the store at non-default API hosts (tests, proxies).
func WithEndpoints(sheetsURL, driveURL string) Option {
	return func(s *Store) {
		s.sheetsURL = sheetsURL
		s.driveURL = driveURL
	}
}

// WithIDGenerator replaces the id generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New returns a store for one spreadsheet.
func New(session Session, spreadsheetID, apiKey string, opts ...Option) *Store {
	s := &Store{
		session:       session,
		spreadsheetID: spreadsheetID,
		apiKey:        apiKey,
		sheetsURL:     DefaultSheetsURL,
		driveURL:      DefaultDriveURL,
		newID:         backend.NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Name() string { return "googleSheets" }

func (s *Store) client(ctx context.Context, op string) (*Client, error) {
	hc, err := s.session.HTTPClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", backend.AuthRequired(op), err)
	}
	c := NewClient(hc, s.apiKey)
	c.SheetsURL = s.sheetsURL
	c.DriveURL = s.driveURL
	return c, nil
}

// A rejected token surfaces as AuthRequired so callers send the operator
// back to sign-in instead of reporting a failed read or write.
func loadErr(err error) error {
	if errors.Is(err, ErrUnauthorized) {
		return &backend.Error{Op: "load", Kind: backend.ErrAuthRequired, Err: err}
	}
	return backend.LoadError(err)
}

func writeErr(op string, t models.EntityType, id string, err error) error {
	if errors.Is(err, ErrUnauthorized) {
		return &backend.Error{Op: op, Type: t, ID: id, Kind: backend.ErrAuthRequired, Err: err}
	}
	return backend.WriteError(op, t, id, err)
}

// tab is one worksheet as read from the API.
type tab struct {
	name   string
	header []string
	idCol  int
	rows   [][]string // data rows; rows[i] sits at grid row i+1
}

func (tb *tab) record(row []string) map[string]string {
	fields := make(map[string]string, len(tb.header))
	for i, name := range tb.header {
		if name == "" {
			continue
		}
		if i < len(row) {
			fields[name] = row[i]
		} else {
			fields[name] = ""
		}
	}
	return fields
}

func (tb *tab) find(id string) int {
	for i, row := range tb.rows {
		if tb.idCol < len(row) && row[tb.idCol] == id {
			return i
		}
	}
	return -1
}

// encode lays e out in header order on top of base, so columns the model
// does not know keep their cells. Non-empty fields missing from the header
// are appended to it; grew reports that the header row must be rewritten.
func (tb *tab) encode(e models.Entity, base []string) (row []string, grew bool, err error) {
	fields, err := models.Fields(e)
	if err != nil {
		return nil, false, err
	}
	have := make(map[string]bool, len(tb.header))
	for _, name := range tb.header {
		have[name] = true
	}
	for _, name := range models.FieldNames(e.EntityType()) {
		if !have[name] && fields[name] != "" {
			tb.header = append(tb.header, name)
			grew = true
		}
	}

	row = make([]string, len(tb.header))
	copy(row, base)
	for i, name := range tb.header {
		if v, ok := fields[name]; ok {
			row[i] = v
		}
	}
	return row, grew, nil
}

func (s *Store) writeHeader(ctx context.Context, c *Client, tb *tab) error {
	if err := c.Update(ctx, s.spreadsheetID, tb.name+"!A1", [][]string{tb.header}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func (s *Store) readTab(ctx context.Context, c *Client, t models.EntityType) (*tab, error) {
	if s.spreadsheetID == "" {
		return nil, ErrNoSpreadsheet
	}
	name := t.Collection()
	values, err := c.Values(ctx, s.spreadsheetID, name)
	if err != nil {
		if errors.Is(err, ErrBadRange) {
			return nil, fmt.Errorf("worksheet %q not found: %w", name, err)
		}
		return nil, err
	}

	tb := &tab{name: name, idCol: -1}
	if len(values) == 0 {
		return tb, nil
	}
	tb.header = make([]string, len(values[0]))
	for i, h := range values[0] {
		tb.header[i] = strings.TrimSpace(h)
		if tb.header[i] == "id" {
			tb.idCol = i
		}
	}
	if tb.idCol < 0 {
		return nil, fmt.Errorf("worksheet %q: header has no id column", name)
	}
	tb.rows = values[1:]
	return tb, nil
}

func (s *Store) Load(ctx context.Context) (*models.AppData, error) {
	c, err := s.client(ctx, "load")
	if err != nil {
		return nil, err
	}
	data := models.NewAppData()
	for _, t := range models.AllEntityTypes {
		tb, err := s.readTab(ctx, c, t)
		if err != nil {
			return nil, loadErr(err)
		}
		for _, row := range tb.rows {
			if blank(row) {
				continue
			}
			e, err := models.FromFields(t, tb.record(row))
			if err != nil {
				return nil, loadErr(fmt.Errorf("worksheet %q: %w", tb.name, err))
			}
			if err := data.Insert(e); err != nil {
				return nil, loadErr(err)
			}
		}
	}
	slog.Debug("sheets load", "spreadsheet", s.spreadsheetID,
		"schedules", len(data.Schedules), "drivers", len(data.Drivers),
		"vehicles", len(data.Vehicles), "work_teams", len(data.WorkTeams))
	return data, nil
}

func (s *Store) Add(ctx context.Context, t models.EntityType, item models.Entity) (models.Entity, error) {
	if err := backend.CheckItem("add", t, item); err != nil {
		return nil, err
	}
	c, err := s.client(ctx, "add")
	if err != nil {
		return nil, err
	}
	tb, err := s.readTab(ctx, c, t)
	if err != nil {
		return nil, writeErr("add", t, "", err)
	}

	if tb.header == nil {
		tb.header = models.FieldNames(t)
		tb.idCol = 0
		if err := s.writeHeader(ctx, c, tb); err != nil {
			return nil, writeErr("add", t, "", err)
		}
	}

	id := s.newID()
	for tb.find(id) >= 0 {
		id = s.newID()
	}
	stored := item.WithID(id)
	row, grew, err := tb.encode(stored, nil)
	if err != nil {
		return nil, writeErr("add", t, id, err)
	}
	if grew {
		if err := s.writeHeader(ctx, c, tb); err != nil {
			return nil, writeErr("add", t, id, err)
		}
	}
	if err := c.Append(ctx, s.spreadsheetID, tb.name+"!A1", [][]string{row}); err != nil {
		return nil, writeErr("add", t, id, err)
	}
	return stored, nil
}

func (s *Store) Update(ctx context.Context, t models.EntityType, item models.Entity) error {
	if err := backend.CheckItem("update", t, item); err != nil {
		return err
	}
	c, err := s.client(ctx, "update")
	if err != nil {
		return err
	}
	tb, err := s.readTab(ctx, c, t)
	if err != nil {
		return writeErr("update", t, item.EntityID(), err)
	}
	idx := tb.find(item.EntityID())
	if idx < 0 {
		return backend.NotFound(t, item.EntityID())
	}

	row, grew, err := tb.encode(item, tb.rows[idx])
	if err != nil {
		return writeErr("update", t, item.EntityID(), err)
	}
	if grew {
		if err := s.writeHeader(ctx, c, tb); err != nil {
			return writeErr("update", t, item.EntityID(), err)
		}
	}
	rng, err := rowRange(tb.name, idx+2, len(row))
	if err != nil {
		return writeErr("update", t, item.EntityID(), err)
	}
	if err := c.Update(ctx, s.spreadsheetID, rng, [][]string{row}); err != nil {
		return writeErr("update", t, item.EntityID(), err)
	}
	return nil
}

func (s *Store) Remove(ctx context.Context, t models.EntityType, id string) error {
	return s.BulkRemove(ctx, t, []string{id})
}

func (s *Store) BulkRemove(ctx context.Context, t models.EntityType, ids []string) error {
	if !t.Valid() {
		return writeErr("remove", t, "", models.ErrUnknownEntityType)
	}
	c, err := s.client(ctx, "remove")
	if err != nil {
		return err
	}
	tb, err := s.readTab(ctx, c, t)
	if err != nil {
		return writeErr("remove", t, "", err)
	}

	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var gridRows []int
	for i, row := range tb.rows {
		if tb.idCol < len(row) && want[row[tb.idCol]] {
			gridRows = append(gridRows, i+1)
		}
	}
	if len(gridRows) == 0 {
		return nil
	}

	sheetIDs, err := c.SheetIDs(ctx, s.spreadsheetID)
	if err != nil {
		return writeErr("remove", t, "", err)
	}
	sheetID, ok := sheetIDs[tb.name]
	if !ok {
		return writeErr("remove", t, "", fmt.Errorf("worksheet %q not found", tb.name))
	}
	if err := c.DeleteRows(ctx, s.spreadsheetID, sheetID, gridRows); err != nil {
		return writeErr("remove", t, "", err)
	}
	return nil
}

// ListSpreadsheets lists the spreadsheets the signed-in user can open.
func (s *Store) ListSpreadsheets(ctx context.Context) ([]Spreadsheet, error) {
	c, err := s.client(ctx, "list")
	if err != nil {
		return nil, err
	}
	files, err := c.ListSpreadsheets(ctx)
	if errors.Is(err, ErrUnauthorized) {
		return nil, &backend.Error{Op: "list", Kind: backend.ErrAuthRequired, Err: err}
	}
	return files, err
}

// rowRange renders "tab!A{row}:{lastCol}{row}" for a 1-based row.
func rowRange(name string, row, width int) (string, error) {
	if width < 1 {
		width = 1
	}
	last, err := excelize.ColumnNumberToName(width)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s!A%d:%s%d", name, row, last, row), nil
}
