package google

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"google.golang.org/api/sheets/v4"
)

// CellValue is a single-cell write addressed in A1 notation.
type CellValue struct {
	Range string
	Value string
}

// SheetsClient reads and writes spreadsheet values.
type SheetsClient interface {
	Get(ctx context.Context, spreadsheetID, rng string) ([][]string, error)
	BatchUpdate(ctx context.Context, spreadsheetID string, cells []CellValue) error
}

type sheetsClient struct {
	svc *sheets.Service
}

// NewSheets creates a Sheets v4 adapter.
func NewSheets(ctx context.Context, opts ...Option) (SheetsClient, error) {
	copts, err := clientOptions(ctx, []string{sheets.SpreadsheetsScope}, opts)
	if err != nil {
		return nil, err
	}
	svc, err := sheets.NewService(ctx, copts...)
	if err != nil {
		return nil, eris.Wrap(err, "google: create sheets service")
	}
	return &sheetsClient{svc: svc}, nil
}

func (c *sheetsClient) Get(ctx context.Context, spreadsheetID, rng string) ([][]string, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError(err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		rows[i] = cells
	}
	return rows, nil
}

func (c *sheetsClient) BatchUpdate(ctx context.Context, spreadsheetID string, cells []CellValue) error {
	if len(cells) == 0 {
		return nil
	}
	data := make([]*sheets.ValueRange, len(cells))
	for i, cell := range cells {
		data[i] = &sheets.ValueRange{
			Range:  cell.Range,
			Values: [][]any{{cell.Value}},
		}
	}
	req := &sheets.BatchUpdateValuesRequest{
		ValueInputOption: "USER_ENTERED",
		Data:             data,
	}
	_, err := c.svc.Spreadsheets.Values.BatchUpdate(spreadsheetID, req).Context(ctx).Do()
	return wrapAPIError(err)
}
