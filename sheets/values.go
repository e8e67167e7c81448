package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// Worksheet describes one sheet within a spreadsheet.
type Worksheet struct {
	ID    int64
	Title string
	Index int
}

type spreadsheetResponse struct {
	Properties struct {
		Title string `json:"title"`
	} `json:"properties"`
	Sheets []struct {
		Properties struct {
			SheetID int64  `json:"sheetId"`
			Title   string `json:"title"`
			Index   int    `json:"index"`
		} `json:"properties"`
	} `json:"sheets"`
}

type valuesResponse struct {
	Range          string     `json:"range"`
	MajorDimension string     `json:"majorDimension"`
	Values         [][]string `json:"values"`
}

// Worksheets returns the worksheets of a spreadsheet in sheet order.
// It doubles as the reachability check during setup: a failure here means
// the spreadsheet ID or credentials are wrong.
func (c *Client) Worksheets(ctx context.Context, spreadsheetID string) (string, []Worksheet, error) {
	u := fmt.Sprintf("%s/v4/spreadsheets/%s?fields=%s",
		c.baseURL,
		url.PathEscape(spreadsheetID),
		url.QueryEscape("properties.title,sheets.properties"))

	respBody, err := c.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", nil, err
	}

	var parsed spreadsheetResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", nil, fmt.Errorf("parse spreadsheet response: %w", err)
	}

	worksheets := make([]Worksheet, 0, len(parsed.Sheets))
	for _, s := range parsed.Sheets {
		worksheets = append(worksheets, Worksheet{
			ID:    s.Properties.SheetID,
			Title: s.Properties.Title,
			Index: s.Properties.Index,
		})
	}

	return parsed.Properties.Title, worksheets, nil
}

// RowValues returns the cell values of one row (1-based). Trailing empty
// cells are omitted by the API.
func (c *Client) RowValues(ctx context.Context, spreadsheetID, sheetTitle string, row int) ([]string, error) {
	rangeRef := fmt.Sprintf("'%s'!%d:%d", sheetTitle, row, row)
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(rangeRef))

	respBody, err := c.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var parsed valuesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse values response: %w", err)
	}

	if len(parsed.Values) == 0 {
		return nil, nil
	}
	return parsed.Values[0], nil
}

// ColumnValues returns all values of one column (1-based), top to bottom,
// including the header cell. Trailing empty cells are omitted by the API.
func (c *Client) ColumnValues(ctx context.Context, spreadsheetID, sheetTitle string, col int) ([]string, error) {
	letter := ColumnLetter(col)
	rangeRef := fmt.Sprintf("'%s'!%s:%s", sheetTitle, letter, letter)
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?majorDimension=COLUMNS",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(rangeRef))

	respBody, err := c.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	var parsed valuesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse values response: %w", err)
	}

	if len(parsed.Values) == 0 {
		return nil, nil
	}
	return parsed.Values[0], nil
}

// UpdateCell writes value into exactly one cell (1-based row and column)
// using RAW input, so the text lands verbatim without formula parsing.
func (c *Client) UpdateCell(ctx context.Context, spreadsheetID, sheetTitle string, row, col int, value string) error {
	rangeRef := A1(sheetTitle, row, col)
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s?valueInputOption=RAW",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(rangeRef))

	payload := map[string]any{
		"range":          rangeRef,
		"majorDimension": "ROWS",
		"values":         [][]string{{value}},
	}

	body := func() (io.Reader, error) {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal update body: %w", err)
		}
		return bytes.NewReader(data), nil
	}

	_, err := c.doJSON(ctx, http.MethodPut, u, body)
	return err
}

// CellValue reads a single cell (1-based row and column). An empty cell
// returns "".
func (c *Client) CellValue(ctx context.Context, spreadsheetID, sheetTitle string, row, col int) (string, error) {
	rangeRef := A1(sheetTitle, row, col)
	u := fmt.Sprintf("%s/v4/spreadsheets/%s/values/%s",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(rangeRef))

	respBody, err := c.doJSON(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}

	var parsed valuesResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("parse values response: %w", err)
	}

	if len(parsed.Values) == 0 || len(parsed.Values[0]) == 0 {
		return "", nil
	}
	return parsed.Values[0][0], nil
}
