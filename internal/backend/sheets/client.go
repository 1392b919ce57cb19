package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"
)

// Sentinel errors for common HTTP error classes.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadRange     = errors.New("bad range")
)

const (
	DefaultSheetsURL = "https://sheets.googleapis.com"
	DefaultDriveURL  = "https://www.googleapis.com"

	spreadsheetMime = "application/vnd.google-apps.spreadsheet"
)

// Client is a thin REST client for the Sheets v4 and Drive v3 APIs.
// HTTP must already attach the OAuth bearer token.
type Client struct {
	SheetsURL string
	DriveURL  string
	APIKey    string
	HTTP      *http.Client
}

// NewClient creates a client against the public Google endpoints.
func NewClient(httpClient *http.Client, apiKey string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		SheetsURL: DefaultSheetsURL,
		DriveURL:  DefaultDriveURL,
		APIKey:    apiKey,
		HTTP:      httpClient,
	}
}

// Spreadsheet is one entry of the Drive listing.
type Spreadsheet struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type valueRange struct {
	Range  string     `json:"range,omitempty"`
	Values [][]string `json:"values"`
}

type spreadsheetMeta struct {
	Sheets []struct {
		Properties struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

type fileList struct {
	Files         []Spreadsheet `json:"files"`
	NextPageToken string        `json:"nextPageToken"`
}

// Values reads a range. A1 notation, e.g. "drivers" for the whole tab.
func (c *Client) Values(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	var resp valueRange
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s", url.PathEscape(spreadsheetID), url.PathEscape(rng))
	if err := c.do(ctx, http.MethodGet, c.SheetsURL+path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Append adds rows after the last non-empty row of the range's table.
func (c *Client) Append(ctx context.Context, spreadsheetID, rng string, rows [][]string) error {
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s:append", url.PathEscape(spreadsheetID), url.PathEscape(rng))
	params := url.Values{}
	params.Set("valueInputOption", "RAW")
	params.Set("insertDataOption", "INSERT_ROWS")
	return c.do(ctx, http.MethodPost, c.SheetsURL+path, params, valueRange{Values: rows}, nil)
}

// Update overwrites the cells of a range.
func (c *Client) Update(ctx context.Context, spreadsheetID, rng string, rows [][]string) error {
	path := fmt.Sprintf("/v4/spreadsheets/%s/values/%s", url.PathEscape(spreadsheetID), url.PathEscape(rng))
	params := url.Values{}
	params.Set("valueInputOption", "RAW")
	return c.do(ctx, http.MethodPut, c.SheetsURL+path, params, valueRange{Range: rng, Values: rows}, nil)
}

// SheetIDs maps tab titles to their numeric sheet ids.
func (c *Client) SheetIDs(ctx context.Context, spreadsheetID string) (map[string]int64, error) {
	var meta spreadsheetMeta
	path := fmt.Sprintf("/v4/spreadsheets/%s", url.PathEscape(spreadsheetID))
	params := url.Values{}
	params.Set("fields", "sheets.properties(sheetId,title)")
	if err := c.do(ctx, http.MethodGet, c.SheetsURL+path, params, nil, &meta); err != nil {
		return nil, err
	}
	ids := make(map[string]int64, len(meta.Sheets))
	for _, s := range meta.Sheets {
		ids[s.Properties.Title] = s.Properties.SheetID
	}
	return ids, nil
}

// DeleteRows removes whole rows (0-based grid indexes) from one tab in a
// single batch. Rows go bottom-up so earlier deletions do not shift later ones.
func (c *Client) DeleteRows(ctx context.Context, spreadsheetID string, sheetID int64, rows []int) error {
	if len(rows) == 0 {
		return nil
	}
	sorted := append([]int(nil), rows...)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	type dimensionRange struct {
		SheetID    int64  `json:"sheetId"`
		Dimension  string `json:"dimension"`
		StartIndex int    `json:"startIndex"`
		EndIndex   int    `json:"endIndex"`
	}
	type request struct {
		DeleteDimension struct {
			Range dimensionRange `json:"range"`
		} `json:"deleteDimension"`
	}
	body := struct {
		Requests []request `json:"requests"`
	}{}
	for _, r := range sorted {
		var req request
		req.DeleteDimension.Range = dimensionRange{SheetID: sheetID, Dimension: "ROWS", StartIndex: r, EndIndex: r + 1}
		body.Requests = append(body.Requests, req)
	}

	path := fmt.Sprintf("/v4/spreadsheets/%s:batchUpdate", url.PathEscape(spreadsheetID))
	return c.do(ctx, http.MethodPost, c.SheetsURL+path, nil, body, nil)
}

// ListSpreadsheets lists every spreadsheet visible to the signed-in user.
func (c *Client) ListSpreadsheets(ctx context.Context) ([]Spreadsheet, error) {
	var out []Spreadsheet
	pageToken := ""
	for {
		params := url.Values{}
		params.Set("q", fmt.Sprintf("mimeType='%s' and trashed=false", spreadsheetMime))
		params.Set("fields", "nextPageToken,files(id,name)")
		params.Set("orderBy", "modifiedTime desc")
		params.Set("pageSize", "100")
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}
		var page fileList
		if err := c.do(ctx, http.MethodGet, c.DriveURL+"/drive/v3/files", params, nil, &page); err != nil {
			return nil, err
		}
		out = append(out, page.Files...)
		if page.NextPageToken == "" {
			return out, nil
		}
		pageToken = page.NextPageToken
	}
}

// --- HTTP helpers ---

// apiError is Google's standard error body.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	}
	return e.Status
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	if c.APIKey != "" {
		if params == nil {
			params = url.Values{}
		}
		params.Set("key", c.APIKey)
	}
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var envelope struct {
			Error apiError `json:"error"`
		}
		if json.Unmarshal(respBody, &envelope) == nil && envelope.Error.Status != "" {
			apiErr := envelope.Error
			switch {
			case resp.StatusCode == http.StatusUnauthorized:
				return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
			case resp.StatusCode == http.StatusForbidden:
				return fmt.Errorf("%w: %s", ErrForbidden, apiErr.Message)
			case resp.StatusCode == http.StatusNotFound:
				return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
			case apiErr.Status == "INVALID_ARGUMENT":
				// unknown tab names come back as unparseable ranges
				return fmt.Errorf("%w: %s", ErrBadRange, apiErr.Message)
			default:
				return &apiErr
			}
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("%w: HTTP 401", ErrUnauthorized)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
