package model

// Ledger is the admin override file (admin_updates.json). It is layered on top
// of disk data after every reload: deleted IDs are tombstones, added records
// replace their disk counterparts by ID.
type Ledger struct {
	Added   []College `json:"added"`
	Deleted []string  `json:"deleted"`
}

// IsDeleted reports whether id carries a tombstone.
func (l *Ledger) IsDeleted(id string) bool {
	for _, d := range l.Deleted {
		if d == id {
			return true
		}
	}
	return false
}

// Upsert records an addition or edit and clears any tombstone for the same ID.
func (l *Ledger) Upsert(c College) {
	replaced := false
	for i := range l.Added {
		if l.Added[i].ID == c.ID {
			l.Added[i] = c
			replaced = true
			break
		}
	}
	if !replaced {
		l.Added = append(l.Added, c)
	}
	l.Deleted = removeString(l.Deleted, c.ID)
}

// Tombstone removes id from the additions and marks it deleted. Calling it
// twice for the same ID leaves a single tombstone.
func (l *Ledger) Tombstone(id string) {
	kept := l.Added[:0]
	for _, c := range l.Added {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	l.Added = kept
	if !l.IsDeleted(id) {
		l.Deleted = append(l.Deleted, id)
	}
}

// Apply layers the ledger over base and returns a new slice; base is not modified.
// Deletions are applied first, then additions are upserted by ID.
func (l *Ledger) Apply(base []College) []College {
	deleted := make(map[string]struct{}, len(l.Deleted))
	for _, id := range l.Deleted {
		deleted[id] = struct{}{}
	}

	out := make([]College, 0, len(base)+len(l.Added))
	index := make(map[string]int, len(base)+len(l.Added))
	for _, c := range base {
		if _, gone := deleted[c.ID]; gone {
			continue
		}
		if pos, seen := index[c.ID]; seen {
			out[pos] = c
			continue
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	for _, c := range l.Added {
		if _, gone := deleted[c.ID]; gone {
			continue
		}
		if pos, seen := index[c.ID]; seen {
			out[pos] = c
			continue
		}
		index[c.ID] = len(out)
		out = append(out, c)
	}
	return out
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
