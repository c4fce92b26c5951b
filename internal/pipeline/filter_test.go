package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/leadflow/internal/model"
)

func TestBlacklistSet(t *testing.T) {
	set := blacklistSet([]string{" A@X.com", "a@x.com", "", "  ", "b@y.org"})
	assert.Len(t, set, 2)
	assert.Contains(t, set, "a@x.com")
	assert.Contains(t, set, "b@y.org")
}

func TestFilterContacts(t *testing.T) {
	set := blacklistSet([]string{"blocked@x.com"})
	contacts := []model.Contact{
		{Email: "ok@x.com", Row: 2},
		{Email: "BLOCKED@x.com", Row: 3},
		{Email: "status@x.com", Row: 4, Status: model.ContactStatusBlacklist},
		{Email: "", Row: 5},
		{Email: "late@x.com", Row: 6},
	}

	tests := []struct {
		name     string
		opts     model.RunOptions
		want     []int
		excluded int
	}{
		{"no window", model.RunOptions{}, []int{2, 5, 6}, 2},
		{"start only", model.RunOptions{StartRow: intPtr(4)}, []int{5, 6}, 1},
		{"end only", model.RunOptions{EndRow: intPtr(3)}, []int{2}, 1},
		{"both", model.RunOptions{StartRow: intPtr(5), EndRow: intPtr(5)}, []int{5}, 0},
		{"empty window", model.RunOptions{StartRow: intPtr(9)}, []int{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kept, excluded, duplicates := filterContacts(contacts, set, tt.opts)
			rows := []int{}
			for _, c := range kept {
				rows = append(rows, c.Row)
			}
			assert.Equal(t, tt.want, rows)
			assert.Equal(t, tt.excluded, excluded)
			assert.Zero(t, duplicates)
		})
	}
}

func TestFilterContacts_RepeatedAddressKeepsFirstRow(t *testing.T) {
	contacts := []model.Contact{
		{Email: "ann@acme.com", Row: 2},
		{Email: "ANN@acme.com ", Row: 3},
		{Email: "", Row: 4},
		{Email: "", Row: 5},
		{Email: "ben@acme.com", Row: 6},
		{Email: " ann@ACME.com", Row: 7},
	}

	kept, excluded, duplicates := filterContacts(contacts, blacklistSet(nil), model.RunOptions{})
	rows := []int{}
	for _, c := range kept {
		rows = append(rows, c.Row)
	}
	assert.Equal(t, []int{2, 4, 5, 6}, rows)
	assert.Zero(t, excluded)
	assert.Equal(t, 2, duplicates)
}
