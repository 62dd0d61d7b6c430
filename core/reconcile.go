package core

import (
	"strings"

	"pkt.systems/fileclassifier/schema"
)

// Resume is the outcome of reconciling freshly loaded items with a
// persisted session.
type Resume struct {
	Classifications []schema.Classification
	CurrentIndex    int
	Restored        bool
}

// Reconcile merges a prior session into a new run. A prior session is only
// honoured when its item count equals the new count; otherwise the run
// starts fresh. Classifications whose item id no longer exists are dropped,
// as are comment-only placeholders without a comment, and duplicate entries
// for one id collapse to the last one, keeping the relative order of the
// survivors. The prior current index is copied as is. Every run gets its
// own start time, so none is carried over.
func Reconcile(items []schema.Item, prior schema.Session, ok bool) Resume {
	if !ok || prior.TotalItems != len(items) {
		return Resume{Classifications: []schema.Classification{}}
	}
	ids := make(map[string]struct{}, len(items))
	for _, item := range items {
		ids[item.ID] = struct{}{}
	}
	last := make(map[string]int, len(prior.Classifications))
	for i, c := range prior.Classifications {
		if _, ok := ids[c.ItemID]; !ok {
			continue
		}
		if c.Category == 0 && strings.TrimSpace(c.Comment) == "" {
			continue
		}
		last[c.ItemID] = i
	}
	kept := make([]schema.Classification, 0, len(last))
	for i, c := range prior.Classifications {
		if idx, ok := last[c.ItemID]; ok && idx == i {
			kept = append(kept, c)
		}
	}
	return Resume{
		Classifications: kept,
		CurrentIndex:    prior.CurrentIndex,
		Restored:        true,
	}
}
