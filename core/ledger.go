package core

import (
	"fmt"
	"strings"
	"time"

	"pkt.systems/fileclassifier/schema"
)

// Ledger holds the live classifications of one session. It keeps at most
// one classification per item id. A Ledger is not safe for concurrent use;
// the service serialises access.
type Ledger struct {
	config          schema.SessionConfig
	items           []schema.Item
	classifications []schema.Classification
	currentIndex    int
	startTime       time.Time
	now             func() time.Time
}

// NewLedger builds a ledger over items, seeded from a reconcile result.
func NewLedger(cfg schema.SessionConfig, items []schema.Item, resume Resume, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	classifications := append([]schema.Classification{}, resume.Classifications...)
	return &Ledger{
		config:          cfg,
		items:           append([]schema.Item(nil), items...),
		classifications: classifications,
		currentIndex:    resume.CurrentIndex,
		startTime:       now().UTC(),
		now:             now,
	}
}

// Len returns the number of items.
func (l *Ledger) Len() int {
	return len(l.items)
}

// Config returns the run configuration.
func (l *Ledger) Config() schema.SessionConfig {
	return l.config
}

// Item returns the item at index i.
func (l *Ledger) Item(i int) (schema.Item, error) {
	if i < 0 || i >= len(l.items) {
		return schema.Item{}, fmt.Errorf("%w: %d", schema.ErrInvalidIndex, i)
	}
	item := l.items[i]
	if item.ID == "" {
		return schema.Item{}, fmt.Errorf("%w: %d", schema.ErrItemNotFound, i)
	}
	return item, nil
}

// ClassificationFor returns the classification recorded for an item id.
func (l *Ledger) ClassificationFor(id string) (schema.Classification, bool) {
	if pos := l.find(id); pos >= 0 {
		return l.classifications[pos], true
	}
	return schema.Classification{}, false
}

// Classify assigns a 1-based category to item i, replacing any previous
// entry and carrying its comment forward.
func (l *Ledger) Classify(i, category int) (schema.Classification, error) {
	item, err := l.Item(i)
	if err != nil {
		return schema.Classification{}, err
	}
	if category < 1 || category > len(l.config.Categories) {
		return schema.Classification{}, fmt.Errorf("%w: %d", schema.ErrInvalidCategory, category)
	}
	comment := ""
	if pos := l.find(item.ID); pos >= 0 {
		comment = l.classifications[pos].Comment
		l.remove(pos)
	}
	entry := schema.Classification{
		ItemID:       item.ID,
		Category:     category,
		CategoryName: l.config.Categories[category-1],
		Timestamp:    l.now().UTC(),
		Comment:      comment,
	}
	l.classifications = append(l.classifications, entry)
	return entry, nil
}

// SetComment stores a trimmed comment on item i. Items without an entry get
// a comment-only placeholder with category 0.
func (l *Ledger) SetComment(i int, comment string) (schema.Classification, error) {
	item, err := l.Item(i)
	if err != nil {
		return schema.Classification{}, err
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return schema.Classification{}, schema.ErrEmptyComment
	}
	if pos := l.find(item.ID); pos >= 0 {
		l.classifications[pos].Comment = comment
		return l.classifications[pos], nil
	}
	entry := schema.Classification{
		ItemID:       item.ID,
		Category:     0,
		CategoryName: schema.UnclassifiedName,
		Timestamp:    l.now().UTC(),
		Comment:      comment,
	}
	l.classifications = append(l.classifications, entry)
	return entry, nil
}

// DeleteComment clears the comment of item i. A placeholder entry is removed
// entirely. It reports whether the ledger changed; deleting a comment that
// does not exist succeeds without change.
func (l *Ledger) DeleteComment(i int) (bool, error) {
	item, err := l.Item(i)
	if err != nil {
		return false, err
	}
	pos := l.find(item.ID)
	if pos < 0 {
		return false, nil
	}
	if l.classifications[pos].Category == 0 {
		l.remove(pos)
		return true, nil
	}
	changed := l.classifications[pos].Comment != ""
	l.classifications[pos].Comment = ""
	return changed, nil
}

// SetPosition records the last viewed index.
func (l *Ledger) SetPosition(i int) error {
	if _, err := l.Item(i); err != nil {
		return err
	}
	l.currentIndex = i
	return nil
}

// CurrentIndex returns the last viewed index clamped to the item range.
func (l *Ledger) CurrentIndex() int {
	return clampIndex(l.currentIndex, len(l.items))
}

// Classified returns the number of classification entries.
func (l *Ledger) Classified() int {
	return len(l.classifications)
}

// FindUnrated scans from the given position in direction and returns the
// first item without any classification entry. from may be -1 or Len() to
// scan from either end.
func (l *Ledger) FindUnrated(from int, direction schema.Direction) (int, bool, error) {
	if from < -1 || from > len(l.items) {
		return 0, false, fmt.Errorf("%w: %d", schema.ErrInvalidIndex, from)
	}
	step := 0
	switch direction {
	case schema.DirectionNext, "":
		step = 1
	case schema.DirectionPrev:
		step = -1
	default:
		return 0, false, fmt.Errorf("%w: %q", schema.ErrInvalidDirection, direction)
	}
	rated := make(map[string]struct{}, len(l.classifications))
	for _, c := range l.classifications {
		rated[c.ItemID] = struct{}{}
	}
	for i := from + step; i >= 0 && i < len(l.items); i += step {
		if _, ok := rated[l.items[i].ID]; !ok {
			return i, true, nil
		}
	}
	return 0, false, nil
}

// Summary tallies the ledger. Every configured category starts at zero and
// entries whose name matches no configured category are not counted.
func (l *Ledger) Summary() schema.ExportSummary {
	counts := make(map[string]int, len(l.config.Categories))
	for _, name := range l.config.Categories {
		counts[name] = 0
	}
	for _, c := range l.classifications {
		if _, ok := counts[c.CategoryName]; ok {
			counts[c.CategoryName]++
		}
	}
	classified := len(l.classifications)
	return schema.ExportSummary{
		TotalItems:        len(l.items),
		ClassifiedItems:   classified,
		UnclassifiedItems: len(l.items) - classified,
		CategoryCounts:    counts,
	}
}

// Snapshot returns a deep copy of the session record. CurrentIndex is
// reported as stored; callers clamp for display.
func (l *Ledger) Snapshot() schema.Session {
	cfg := schema.SessionConfig{
		Mode:       l.config.Mode,
		Categories: append([]string(nil), l.config.Categories...),
		Sources:    append([]string(nil), l.config.Sources...),
	}
	if len(l.config.Columns) > 0 {
		cfg.Columns = append([]string(nil), l.config.Columns...)
	}
	items := make([]schema.Item, len(l.items))
	for i, item := range l.items {
		if item.RowData != nil {
			item.RowData = append(schema.Row(nil), item.RowData...)
		}
		items[i] = item
	}
	return schema.Session{
		Config:          cfg,
		CurrentIndex:    l.currentIndex,
		Classifications: append([]schema.Classification{}, l.classifications...),
		Items:           items,
		TotalItems:      len(l.items),
		StartTime:       l.startTime,
	}
}

func (l *Ledger) find(id string) int {
	for i, c := range l.classifications {
		if c.ItemID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) remove(pos int) {
	l.classifications = append(l.classifications[:pos], l.classifications[pos+1:]...)
}

func clampIndex(i, n int) int {
	if n <= 0 || i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
