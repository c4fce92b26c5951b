package enrich

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadflow/internal/model"
)

var (
	subjectMarkerRe = regexp.MustCompile(`\[SUBJECT\]:[ \t]*(.*?)[ \t]*(?:\[BODY\]|\n|$)`)
	bodyMarkerRe    = regexp.MustCompile(`(?s)\[BODY\]:\s*(.*?)\s*\[/BODY\]`)

	labeledSubjectRe = regexp.MustCompile(`(?im)^[ \t]*(?:\*\*)?[ \t]*\[?(?:subject|předmět)\]?[ \t]*(?:\*\*)?[ \t]*:[ \t]*(?:\*\*)?[ \t]*(.+?)[ \t]*(?:\*\*)?[ \t]*$`)
	boldSubjectRe    = regexp.MustCompile(`(?m)^[ \t]*\*\*(.+?)\*\*[ \t]*$`)
	bodyLabelRe      = regexp.MustCompile(`(?i)^(?:\[BODY\]:|(?:\*\*)?(?:body|text|tělo)(?:\*\*)?[ \t]*:(?:\*\*)?)\s*`)
)

// ParseDraft extracts subject and body from a model response. The marker
// format is tried first, then common alternate subject labels. Blank fields
// are reported as EmptyDraftError.
func ParseDraft(response string) (model.EmailDraft, error) {
	text := norm.NFC.String(strings.ReplaceAll(response, "\r\n", "\n"))

	draft, ok := parseMarkers(text)
	if !ok {
		draft, ok = parseFallback(text)
	}
	if !ok {
		return model.EmailDraft{}, &DraftParseError{Response: response}
	}
	return draft, checkDraft(draft)
}

func parseMarkers(text string) (model.EmailDraft, bool) {
	subj := subjectMarkerRe.FindStringSubmatch(text)
	body := bodyMarkerRe.FindStringSubmatch(text)
	if subj == nil || body == nil {
		return model.EmailDraft{}, false
	}
	return model.EmailDraft{
		Subject: strings.TrimSpace(subj[1]),
		Body:    strings.TrimSpace(body[1]),
	}, true
}

func parseFallback(text string) (model.EmailDraft, bool) {
	loc := labeledSubjectRe.FindStringSubmatchIndex(text)
	if loc == nil {
		loc = boldSubjectRe.FindStringSubmatchIndex(text)
	}
	if loc == nil {
		return model.EmailDraft{}, false
	}

	subject := strings.Trim(strings.TrimSpace(text[loc[2]:loc[3]]), "*")
	rest := strings.TrimSpace(text[loc[1]:])
	rest = bodyLabelRe.ReplaceAllString(rest, "")
	rest = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest), "[/BODY]"))

	return model.EmailDraft{Subject: strings.TrimSpace(subject), Body: rest}, true
}

func checkDraft(d model.EmailDraft) error {
	if strings.TrimSpace(d.Subject) == "" {
		return &EmptyDraftError{Field: "subject"}
	}
	if strings.TrimSpace(d.Body) == "" {
		return &EmptyDraftError{Field: "body"}
	}
	return nil
}
