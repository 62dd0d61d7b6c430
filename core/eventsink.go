package core

import "pkt.systems/fileclassifier/schema"

// EventSink receives ledger events from the core service. Events are
// delivered while the service lock is held, so sinks must not block or call
// back into the service.
type EventSink interface {
	OnLedgerEvent(event schema.LedgerEvent)
}
