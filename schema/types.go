package schema

import "time"

// Mode selects how sources are turned into items.
type Mode string

const (
	// ModeFile treats every source file as a single item.
	ModeFile Mode = "file"
	// ModeTabular treats every CSV data row as an item.
	ModeTabular Mode = "tabular"
)

// SessionKey addresses a persisted session. It is derived from the run
// configuration, see SessionConfig.Fingerprint.
type SessionKey string

// UnclassifiedName labels comment-only placeholder classifications.
const UnclassifiedName = "Unclassified"

// MaxCategories bounds the number of configured categories (keys 1-9).
const MaxCategories = 9

// Item is one unit of content to classify. Items are created once at
// startup and never mutated.
type Item struct {
	ID       string `json:"id"`
	Content  string `json:"content"`
	Filename string `json:"filename,omitempty"`
	RowData  Row    `json:"rowData,omitempty"`
	Line     int    `json:"line"`
}

// Classification records the judgement on one item. Category 0 marks a
// comment-only placeholder.
type Classification struct {
	ItemID       string    `json:"itemId"`
	Category     int       `json:"category"`
	CategoryName string    `json:"categoryName"`
	Timestamp    time.Time `json:"timestamp"`
	Comment      string    `json:"comment,omitempty"`
}

// SessionConfig is the immutable per-run configuration.
type SessionConfig struct {
	Mode       Mode     `json:"mode"`
	Categories []string `json:"categories"`
	Sources    []string `json:"sources"`
	Columns    []string `json:"columns,omitempty"`
}

// Session is the durable record of one classification run.
type Session struct {
	Config          SessionConfig    `json:"config"`
	CurrentIndex    int              `json:"currentIndex"`
	Classifications []Classification `json:"classifications"`
	Items           []Item           `json:"items"`
	TotalItems      int              `json:"totalItems"`
	StartTime       time.Time        `json:"startTime"`
	LastSaved       *time.Time       `json:"lastSaved,omitempty"`
}

// ExportSummary tallies the classifications of a session.
type ExportSummary struct {
	TotalItems        int            `json:"totalItems"`
	ClassifiedItems   int            `json:"classifiedItems"`
	UnclassifiedItems int            `json:"unclassifiedItems"`
	CategoryCounts    map[string]int `json:"categoryCounts"`
}

// ExportData is the document produced by an export.
type ExportData struct {
	SessionID       string           `json:"sessionId"`
	Config          SessionConfig    `json:"config"`
	Classifications []Classification `json:"classifications"`
	Summary         ExportSummary    `json:"summary"`
	ExportedAt      time.Time        `json:"exportedAt"`
}

// Direction selects the scan direction for unrated item lookups.
type Direction string

const (
	// DirectionNext scans towards higher indices.
	DirectionNext Direction = "next"
	// DirectionPrev scans towards lower indices.
	DirectionPrev Direction = "prev"
)
