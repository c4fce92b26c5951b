package pipeline

import "github.com/sells-group/leadflow/internal/model"

// blacklistSet normalises raw blacklist entries into a lookup set.
func blacklistSet(emails []string) map[string]struct{} {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		if n := model.NormalizeEmail(e); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// filterContacts keeps contacts inside the row window whose email is not
// blacklisted and whose sheet status is not blacklist. Repeated addresses
// keep only their first row. Order is preserved.
func filterContacts(contacts []model.Contact, blacklist map[string]struct{}, opts model.RunOptions) (kept []model.Contact, excluded, duplicates int) {
	kept = make([]model.Contact, 0, len(contacts))
	seen := make(map[string]struct{}, len(contacts))
	for _, c := range contacts {
		if !opts.InWindow(c.Row) {
			continue
		}
		if c.Status == model.ContactStatusBlacklist {
			excluded++
			continue
		}
		key := model.NormalizeEmail(c.Email)
		if _, ok := blacklist[key]; ok {
			excluded++
			continue
		}
		if key != "" {
			if _, ok := seen[key]; ok {
				duplicates++
				continue
			}
			seen[key] = struct{}{}
		}
		kept = append(kept, c)
	}
	return kept, excluded, duplicates
}
