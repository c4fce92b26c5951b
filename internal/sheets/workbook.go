package sheets

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadflow/pkg/google"
)

// Workbook serves spreadsheet values from a local .xlsx file so the
// pipeline can run without Google Sheets. Spreadsheet IDs are ignored; tabs
// map to worksheets by name. Writes are saved back to the file.
type Workbook struct {
	mu   sync.Mutex
	path string
	file *xlsx.File
}

var _ google.SheetsClient = (*Workbook)(nil)

// OpenWorkbook loads an .xlsx file.
func OpenWorkbook(path string) (*Workbook, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "sheets: open workbook")
	}
	return &Workbook{path: path, file: f}, nil
}

// Get returns the cells of rng with trailing empty cells and rows trimmed,
// matching the Sheets values API.
func (w *Workbook) Get(_ context.Context, _ string, rng string) ([][]string, error) {
	tab, ref, err := splitRange(rng)
	if err != nil {
		return nil, err
	}
	b, err := parseRef(ref)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	sheet, err := w.sheet(tab)
	if err != nil {
		return nil, err
	}

	var out [][]string
	for r, row := range sheet.Rows {
		if r < b.row0 || r > b.row1 {
			continue
		}
		cells := rowToStrings(row)
		var picked []string
		for col := b.col0; col < len(cells) && col <= b.col1; col++ {
			picked = append(picked, cells[col])
		}
		out = append(out, trimTrailing(picked))
	}

	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// BatchUpdate sets single cells and saves the workbook.
func (w *Workbook) BatchUpdate(_ context.Context, _ string, cells []google.CellValue) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, cv := range cells {
		tab, ref, err := splitRange(cv.Range)
		if err != nil {
			return err
		}
		b, err := parseRef(ref)
		if err != nil {
			return err
		}
		if b.row0 != b.row1 || b.col0 != b.col1 {
			return eris.Errorf("sheets: workbook writes must target one cell, got %q", cv.Range)
		}
		sheet, err := w.sheet(tab)
		if err != nil {
			return err
		}
		sheet.Cell(b.row0, b.col0).SetString(cv.Value)
	}

	if err := w.file.Save(w.path); err != nil {
		return eris.Wrap(err, "sheets: save workbook")
	}
	return nil
}

func (w *Workbook) sheet(tab string) (*xlsx.Sheet, error) {
	if s, ok := w.file.Sheet[tab]; ok {
		return s, nil
	}
	return nil, eris.Errorf("sheets: worksheet %q not found in %s", tab, w.path)
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, c := range row.Cells {
		cells[j] = c.String()
	}
	return cells
}

func trimTrailing(cells []string) []string {
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	if cells == nil {
		return []string{}
	}
	return cells
}
