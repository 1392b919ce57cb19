package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeSheets is an in-memory stand-in for the Sheets and Drive endpoints.
type fakeSheets struct {
	mu      sync.Mutex
	id      string
	tabs    map[string][][]string
	sheetID map[string]int64
	files   []Spreadsheet
	calls   []string

	// revoked answers every request with 401, as for an expired token
	revoked bool
}

func newFakeSheets(id string, tabs ...string) *fakeSheets {
	f := &fakeSheets{
		id:      id,
		tabs:    map[string][][]string{},
		sheetID: map[string]int64{},
	}
	for i, name := range tabs {
		f.tabs[name] = nil
		f.sheetID[name] = int64(100 + i)
	}
	return f
}

func (f *fakeSheets) start(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return srv
}

func writeError(w http.ResponseWriter, code int, status, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": msg, "status": status},
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// startRow parses the 1-based row out of "tab!A7" or "tab!A7:D7".
func startRow(cell string) int {
	cell = strings.SplitN(cell, ":", 2)[0]
	digits := strings.TrimLeft(cell, "ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 1
	}
	return n
}

func (f *fakeSheets) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	if f.revoked {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Request had invalid authentication credentials.")
		return
	}

	if r.URL.Path == "/drive/v3/files" {
		f.serveFiles(w, r)
		return
	}

	rest, ok := strings.CutPrefix(r.URL.Path, "/v4/spreadsheets/")
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no route")
		return
	}
	id, tail, _ := strings.Cut(rest, "/")
	if id == f.id+":batchUpdate" && r.Method == http.MethodPost {
		f.serveBatch(w, r)
		return
	}
	if id != f.id {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Requested entity was not found.")
		return
	}
	if tail == "" {
		sheets := []map[string]any{}
		for name, sid := range f.sheetID {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"sheetId": sid, "title": name}})
		}
		writeJSON(w, map[string]any{"sheets": sheets})
		return
	}

	rng, ok := strings.CutPrefix(tail, "values/")
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no route")
		return
	}
	rng, appending := strings.CutSuffix(rng, ":append")
	name, cell, _ := strings.Cut(rng, "!")
	rows, exists := f.tabs[name]
	if !exists {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "Unable to parse range: "+rng)
		return
	}

	switch {
	case r.Method == http.MethodGet:
		writeJSON(w, valueRange{Range: rng, Values: rows})
	case r.Method == http.MethodPost && appending:
		var body valueRange
		json.NewDecoder(r.Body).Decode(&body)
		f.tabs[name] = append(rows, body.Values...)
		writeJSON(w, map[string]any{})
	case r.Method == http.MethodPut:
		var body valueRange
		json.NewDecoder(r.Body).Decode(&body)
		at := startRow(cell) - 1
		for i, row := range body.Values {
			for len(rows) <= at+i {
				rows = append(rows, nil)
			}
			rows[at+i] = row
		}
		f.tabs[name] = rows
		writeJSON(w, map[string]any{})
	default:
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", "bad method")
	}
}

func (f *fakeSheets) serveBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Requests []struct {
			DeleteDimension struct {
				Range struct {
					SheetID    int64 `json:"sheetId"`
					StartIndex int   `json:"startIndex"`
					EndIndex   int   `json:"endIndex"`
				} `json:"range"`
			} `json:"deleteDimension"`
		} `json:"requests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
		return
	}
	for _, req := range body.Requests {
		rg := req.DeleteDimension.Range
		for name, sid := range f.sheetID {
			if sid != rg.SheetID {
				continue
			}
			rows := f.tabs[name]
			if rg.StartIndex >= len(rows) {
				continue
			}
			end := min(rg.EndIndex, len(rows))
			f.tabs[name] = append(rows[:rg.StartIndex:rg.StartIndex], rows[end:]...)
		}
	}
	writeJSON(w, map[string]any{})
}

func (f *fakeSheets) serveFiles(w http.ResponseWriter, r *http.Request) {
	// two entries per page
	start := 0
	if tok := r.URL.Query().Get("pageToken"); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := min(start+2, len(f.files))
	resp := fileList{Files: f.files[start:end]}
	if end < len(f.files) {
		resp.NextPageToken = strconv.Itoa(end)
	}
	writeJSON(w, resp)
}

type fakeSession struct {
	client *http.Client
	err    error
}

func (s *fakeSession) HTTPClient(context.Context) (*http.Client, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.client, nil
}

var errSignedOut = errors.New("not signed in")
