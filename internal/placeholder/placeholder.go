// Package placeholder fills {name} style tokens in prompt and email templates.
package placeholder

import "regexp"

var tokenRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Substitute replaces every {key} in tmpl with vars[key]. Tokens without a
// matching key are left as written.
func Substitute(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	return tokenRe.ReplaceAllStringFunc(tmpl, func(tok string) string {
		key := tok[1 : len(tok)-1]
		if v, ok := vars[key]; ok {
			return v
		}
		return tok
	})
}

// Keys returns the distinct placeholder names used in tmpl in order of
// first appearance.
func Keys(tmpl string) []string {
	var keys []string
	seen := make(map[string]bool)
	for _, m := range tokenRe.FindAllStringSubmatch(tmpl, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			keys = append(keys, m[1])
		}
	}
	return keys
}
