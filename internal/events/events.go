package events

import (
	"context"

	"pkt.systems/fileclassifier/schema"
	"pkt.systems/pslog"
)

// SubjectPrefix prefixes every ledger event subject.
const SubjectPrefix = "fileclassifier."

// Publisher sends an encoded event to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Subject returns the topic for a ledger event type.
func Subject(kind schema.LedgerEventType) string {
	return SubjectPrefix + string(kind)
}

// Sink forwards ledger events to a Publisher. Publish failures are logged
// and dropped.
type Sink struct {
	pub Publisher
	log pslog.Logger
}

// NewSink wraps pub as a ledger event sink.
func NewSink(pub Publisher, logger pslog.Logger) *Sink {
	if pub == nil {
		pub = &NoopPublisher{}
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Sink{pub: pub, log: logger}
}

// OnLedgerEvent publishes the event on its subject.
func (s *Sink) OnLedgerEvent(event schema.LedgerEvent) {
	topic := Subject(event.Type)
	if err := s.pub.Publish(context.Background(), topic, event); err != nil {
		s.log.Warn("event publish failed", "topic", topic, "err", err)
		return
	}
	s.log.Trace("event published", "topic", topic, "item", event.ItemIndex)
}

// Close closes the underlying publisher.
func (s *Sink) Close() error {
	return s.pub.Close()
}
