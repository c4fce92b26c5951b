package pipeline

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/model"
)

// contactResult is the terminal state of one contact.
type contactResult struct {
	stage      model.Stage
	err        error
	enrichment string
	draft      model.EmailDraft
	messageID  string
}

// processContact runs verify, enrich, draft and send for c and records the
// outcome. It reports whether an email was actually sent.
func (p *Pipeline) processContact(ctx context.Context, r *run, c model.Contact) bool {
	res := p.advance(ctx, r, c)
	meta := map[string]any{"email": c.Email, "row": c.Row}

	if res.err != nil {
		r.failure++
		metrics.RecordContact("failure", string(res.stage))
		r.log.Warn("pipeline: contact failed",
			zap.String("email", c.Email),
			zap.Int("row", c.Row),
			zap.String("stage", string(res.stage)),
			zap.Error(res.err),
		)
		p.audit.Error(ctx, r.userID, res.stage, failureMessage(res.stage, c, res.err), meta)
		if r.opts.TestMode {
			r.previews = append(r.previews, model.Preview{Email: c.Email, Subject: res.draft.Subject, Body: res.draft.Body, Error: res.err.Error()})
			return false
		}
		p.recordHistory(ctx, r, c, res)
		if strings.TrimSpace(c.Email) != "" {
			r.updates = append(r.updates, model.ContactUpdate{
				Email:   c.Email,
				Updates: model.ContactFieldUpdates{Status: model.ContactStatusFailed},
			})
		}
		return false
	}

	r.success++
	if r.opts.TestMode {
		metrics.RecordContact("preview", string(model.StageEmail))
		r.previews = append(r.previews, model.Preview{Email: c.Email, Subject: res.draft.Subject, Body: res.draft.Body})
		p.audit.Success(ctx, r.userID, model.StageEmail, "Generated preview for "+c.Email, meta)
		return false
	}

	metrics.RecordContact("success", string(model.StageEmail))
	meta["message_id"] = res.messageID
	p.audit.Success(ctx, r.userID, model.StageEmail, "Email sent to "+c.Email, meta)
	p.recordHistory(ctx, r, c, res)

	sentAt := p.clock.Now()
	r.updates = append(r.updates, model.ContactUpdate{
		Email:   c.Email,
		Updates: model.ContactFieldUpdates{Status: model.ContactStatusSent, ScheduledFor: &sentAt},
	})
	return true
}

// advance walks c through the stages, stopping at the first failure.
func (p *Pipeline) advance(ctx context.Context, r *run, c model.Contact) contactResult {
	if strings.TrimSpace(c.Email) == "" {
		return contactResult{stage: model.StageVerification, err: errMissingEmail}
	}

	if !p.verifier.Verify(ctx, r.userID, c.Email) {
		return contactResult{stage: model.StageVerification, err: errVerificationFailed}
	}
	p.audit.Success(ctx, r.userID, model.StageVerification, "Email verified", map[string]any{"email": c.Email})

	enrichment, err := r.services.Enricher.Enrich(ctx, r.userID, c, r.settings.AI)
	if err != nil {
		return contactResult{stage: model.StageEnrichment, err: err}
	}
	p.audit.Success(ctx, r.userID, model.StageEnrichment, "Contact enriched", map[string]any{"email": c.Email})

	draft, err := r.services.Enricher.Draft(ctx, r.userID, c, enrichment, r.settings.Email, r.settings.AI)
	if err != nil {
		return contactResult{stage: model.StageEmail, err: err, enrichment: enrichment}
	}
	if r.opts.TestMode {
		return contactResult{stage: model.StageEmail, enrichment: enrichment, draft: draft}
	}

	id, err := r.services.Sender.Send(ctx, c.Email, draft.Subject, draft.Body)
	if err != nil {
		return contactResult{stage: model.StageEmail, err: err, enrichment: enrichment, draft: draft}
	}
	return contactResult{stage: model.StageEmail, enrichment: enrichment, draft: draft, messageID: id}
}

// recordHistory writes the lead row and, once a draft exists, the email row.
func (p *Pipeline) recordHistory(ctx context.Context, r *run, c model.Contact, res contactResult) {
	now := p.clock.Now()
	lead := model.LeadHistory{
		UserID:     r.userID,
		Email:      c.Email,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Company:    c.Company,
		Position:   c.Position,
		Status:     model.LeadStatusSuccess,
		Enrichment: res.enrichment,
		Subject:    res.draft.Subject,
		Metadata:   map[string]any{"row": c.Row, "stage": string(res.stage)},
		CreatedAt:  now,
	}
	if res.err != nil {
		lead.Status = model.LeadStatusFailed
		lead.Error = res.err.Error()
	}
	if res.messageID != "" {
		lead.Metadata["message_id"] = res.messageID
	}
	if err := p.store.InsertLeadHistory(ctx, lead); err != nil {
		r.log.Warn("pipeline: lead history write failed", zap.String("email", c.Email), zap.Error(err))
	}

	if res.draft.Subject == "" {
		return
	}
	email := model.EmailHistory{
		UserID:    r.userID,
		Recipient: c.Email,
		Subject:   res.draft.Subject,
		Body:      res.draft.Body,
		Status:    model.EmailStatusSent,
		SentAt:    now,
	}
	if res.err != nil {
		email.Status = model.EmailStatusFailed
		email.Error = res.err.Error()
	}
	if err := p.store.InsertEmailHistory(ctx, email); err != nil {
		r.log.Warn("pipeline: email history write failed", zap.String("email", c.Email), zap.Error(err))
	}
}

func failureMessage(stage model.Stage, c model.Contact, err error) string {
	who := c.Email
	if who == "" {
		who = c.FullName()
		if who == "" {
			who = "row " + strconv.Itoa(c.Row)
		}
	}
	return "Failed " + string(stage) + " for " + who + ": " + err.Error()
}
