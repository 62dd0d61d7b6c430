package schema

import "time"

// LedgerEventType identifies a ledger change.
type LedgerEventType string

const (
	// LedgerClassified is emitted after an item received a category.
	LedgerClassified LedgerEventType = "classified"
	// LedgerCommentSaved is emitted after a comment was set.
	LedgerCommentSaved LedgerEventType = "comment_saved"
	// LedgerCommentDeleted is emitted after a comment delete request.
	LedgerCommentDeleted LedgerEventType = "comment_deleted"
	// LedgerPosition is emitted when the last-viewed position changes.
	LedgerPosition LedgerEventType = "position"
)

// LedgerEvent describes one applied mutation.
type LedgerEvent struct {
	Type           LedgerEventType `json:"type"`
	Session        SessionKey      `json:"session"`
	ItemIndex      int             `json:"itemIndex"`
	ItemID         string          `json:"itemId,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	Classified     int             `json:"classified"`
	Timestamp      time.Time       `json:"timestamp"`
}
