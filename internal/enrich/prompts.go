package enrich

import (
	"strings"

	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/placeholder"
)

const defaultEnrichmentPrompt = `Research the following business contact and summarize what would help personalize a first outreach email.

Name: {fullName}
Email: {email}
Company: {company}
Position: {position}

Cover the company's business, the person's likely responsibilities, and any recent developments worth referencing. Answer in a few short paragraphs of plain text. Do not invent facts; say so when information is unavailable.`

const defaultDraftPrompt = `Write a short, personal first outreach email.

Recipient: {fullName}, {position} at {company}
Research notes:
{enrichment}

Sign the email as {senderName}. Keep it under 150 words, friendly and specific, with one clear call to action. Format the body as simple HTML paragraphs.`

const draftFormatInstructions = `

Respond in exactly this format:
[SUBJECT]: <email subject>
[BODY]: <email body>
[/BODY]`

func enrichmentPrompt(c model.Contact, tmpl string) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultEnrichmentPrompt
	}
	return placeholder.Substitute(tmpl, c.Vars())
}

func draftVars(c model.Contact, enrichment string, cfg model.EmailConfig) map[string]string {
	vars := c.Vars()
	vars["enrichment"] = enrichment
	vars["senderName"] = cfg.SenderName
	return vars
}

func draftPrompt(vars map[string]string, tmpl string) string {
	if strings.TrimSpace(tmpl) == "" {
		tmpl = defaultDraftPrompt
	}
	prompt := placeholder.Substitute(tmpl, vars)
	if !strings.Contains(prompt, "[SUBJECT]") {
		prompt += draftFormatInstructions
	}
	return prompt
}

// UnknownPlaceholders returns the tokens in the user's enrichment and email
// prompts that no contact or draft variable fills, keyed by settings field.
// Such tokens reach the model verbatim.
func UnknownPlaceholders(s model.Settings) map[string][]string {
	out := make(map[string][]string)
	check := func(field, tmpl string, vars map[string]string) {
		for _, k := range placeholder.Keys(tmpl) {
			if _, ok := vars[k]; !ok {
				out[field] = append(out[field], k)
			}
		}
	}
	check("ai.enrichment_prompt", s.AI.EnrichmentPrompt, model.Contact{}.Vars())
	check("email.prompt", s.Email.Prompt, draftVars(model.Contact{}, "", s.Email))
	return out
}
