package sheets

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

// columnLetter converts a 0-based column index to A1 letters (0 → A, 26 → AA).
func columnLetter(idx int) string {
	var b []byte
	for idx >= 0 {
		b = append([]byte{byte('A' + idx%26)}, b...)
		idx = idx/26 - 1
	}
	return string(b)
}

// columnIndex converts A1 column letters to a 0-based index.
func columnIndex(letters string) (int, bool) {
	if letters == "" {
		return -1, false
	}
	n := 0
	for _, r := range strings.ToUpper(letters) {
		if r < 'A' || r > 'Z' {
			return -1, false
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, true
}

// qualify prefixes ref with the tab name, quoting it when needed.
func qualify(tab, ref string) string {
	name := tab
	if needsQuote(tab) {
		name = "'" + strings.ReplaceAll(tab, "'", "''") + "'"
	}
	if ref == "" {
		return name
	}
	return name + "!" + ref
}

func needsQuote(tab string) bool {
	for _, r := range tab {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return true
		}
	}
	return false
}

// splitRange splits "Tab!A1:B2" (or "'My Tab'!A1") into tab name and ref.
func splitRange(rng string) (tab, ref string, err error) {
	if strings.HasPrefix(rng, "'") {
		var b strings.Builder
		i := 1
		for ; i < len(rng); i++ {
			if rng[i] == '\'' {
				if i+1 < len(rng) && rng[i+1] == '\'' {
					b.WriteByte('\'')
					i++
					continue
				}
				break
			}
			b.WriteByte(rng[i])
		}
		if i >= len(rng) {
			return "", "", eris.Errorf("sheets: unterminated tab name in range %q", rng)
		}
		rest := rng[i+1:]
		if rest == "" {
			return b.String(), "", nil
		}
		if rest[0] != '!' {
			return "", "", eris.Errorf("sheets: malformed range %q", rng)
		}
		return b.String(), rest[1:], nil
	}

	if idx := strings.LastIndex(rng, "!"); idx >= 0 {
		return rng[:idx], rng[idx+1:], nil
	}
	return rng, "", nil
}

// bounds is an inclusive, 0-based rectangle inside a sheet.
type bounds struct {
	col0, col1 int
	row0, row1 int
}

func (b bounds) contains(row, col int) bool {
	return row >= b.row0 && row <= b.row1 && col >= b.col0 && col <= b.col1
}

// parseRef parses an A1 reference such as "", "A1", "C:C", "1:1" or "A2:F10".
func parseRef(ref string) (bounds, error) {
	all := bounds{col0: 0, col1: math.MaxInt32, row0: 0, row1: math.MaxInt32}
	if ref == "" {
		return all, nil
	}

	start, end, found := strings.Cut(strings.ToUpper(ref), ":")
	if !found {
		end = start
	}

	c0, r0, err := parseEndpoint(start)
	if err != nil {
		return bounds{}, err
	}
	c1, r1, err := parseEndpoint(end)
	if err != nil {
		return bounds{}, err
	}

	b := all
	if c0 >= 0 {
		b.col0 = c0
	}
	if c1 >= 0 {
		b.col1 = c1
	}
	if r0 >= 0 {
		b.row0 = r0
	}
	if r1 >= 0 {
		b.row1 = r1
	}
	return b, nil
}

// parseEndpoint returns the 0-based column and row of "C5", "C" or "5";
// a missing part is -1.
func parseEndpoint(s string) (col, row int, err error) {
	i := 0
	for i < len(s) && s[i] >= 'A' && s[i] <= 'Z' {
		i++
	}
	letters, digits := s[:i], s[i:]
	if letters == "" && digits == "" {
		return -1, -1, eris.Errorf("sheets: empty range endpoint")
	}

	col, row = -1, -1
	if letters != "" {
		col, _ = columnIndex(letters)
	}
	if digits != "" {
		n, convErr := strconv.Atoi(digits)
		if convErr != nil || n < 1 {
			return -1, -1, eris.Errorf("sheets: invalid row in range endpoint %q", s)
		}
		row = n - 1
	}
	return col, row, nil
}
