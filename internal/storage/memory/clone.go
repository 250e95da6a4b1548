package memory

import "pokeyen-ledger/internal/domain"

// Clone helpers keep stored records isolated from caller mutation.

func cloneStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneInt64Ptr(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	c.SelectedBadge = cloneStrPtr(u.SelectedBadge)
	return &c
}

func cloneBadge(b *domain.Badge) *domain.Badge {
	c := *b
	c.UserID = cloneStrPtr(b.UserID)
	c.Form = cloneStrPtr(b.Form)
	c.SellPrice = cloneInt64Ptr(b.SellPrice)
	c.SellingSince = cloneInt64Ptr(b.SellingSince)
	return &c
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	c := *t
	c.Metadata = cloneMetadata(t.Metadata)
	return &c
}

func cloneBadgeLogEntry(e *domain.BadgeLogEntry) *domain.BadgeLogEntry {
	c := *e
	c.RecipientID = cloneStrPtr(e.RecipientID)
	c.Metadata = cloneMetadata(e.Metadata)
	return &c
}

// ownerEqual compares two nullable owner references.
func ownerEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
