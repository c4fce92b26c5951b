package sheets

import (
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/leadflow/internal/model"
)

// contactColumns are header indexes for each mapped contact field.
type contactColumns struct {
	name, email, company, position, scheduledFor, status int
}

func resolveColumns(header []string, m model.ColumnMappings, sheetID, tab string) (contactColumns, error) {
	cols := contactColumns{
		name:         headerIndex(header, m.Name),
		email:        headerIndex(header, m.Email),
		company:      headerIndex(header, m.Company),
		position:     headerIndex(header, m.Position),
		scheduledFor: headerIndex(header, m.ScheduledFor),
		status:       headerIndex(header, m.Status),
	}

	var missing []string
	for _, f := range []struct {
		idx  int
		name string
	}{
		{cols.name, m.Name},
		{cols.email, m.Email},
		{cols.company, m.Company},
		{cols.position, m.Position},
		{cols.scheduledFor, m.ScheduledFor},
		{cols.status, m.Status},
	} {
		if f.idx < 0 {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return cols, &StructureError{SheetID: sheetID, Tab: tab, Missing: missing}
	}
	return cols, nil
}

func parseContact(row []string, cols contactColumns) (model.Contact, bool) {
	parts := strings.Fields(cell(row, cols.name))
	email := strings.TrimSpace(cell(row, cols.email))
	if len(parts) == 0 || email == "" {
		return model.Contact{}, false
	}

	c := model.Contact{
		FirstName:    parts[0],
		LastName:     strings.Join(parts[1:], " "),
		Email:        email,
		Company:      strings.TrimSpace(cell(row, cols.company)),
		Position:     strings.TrimSpace(cell(row, cols.position)),
		ScheduledFor: parseSchedule(cell(row, cols.scheduledFor)),
		Status:       model.ParseContactStatus(cell(row, cols.status)),
	}
	if c.Company == "" {
		c.Company = model.UnknownCompany
	}
	if c.Position == "" {
		c.Position = model.UnknownPosition
	}
	return c, true
}

// headerIndex finds name in header, ignoring case and surrounding space.
func headerIndex(header []string, name string) int {
	want := strings.ToLower(strings.TrimSpace(name))
	if want == "" {
		return -1
	}
	for i, h := range header {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

var scheduleLayouts = []string{
	ScheduleLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
}

// parseSchedule returns nil for empty or unparseable values.
func parseSchedule(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func itoa(n int) string { return strconv.Itoa(n) }
