package core

import (
	"time"

	"pkt.systems/fileclassifier/schema"
	"pkt.systems/pslog"
)

// SessionStore loads and saves session records.
type SessionStore interface {
	Load(key schema.SessionKey) (schema.Session, bool)
	Save(key schema.SessionKey, session schema.Session) error
}

// ServiceDeps captures optional dependencies for the core service.
type ServiceDeps struct {
	Store     SessionStore
	EventSink EventSink
	Logger    pslog.Logger
	Now       func() time.Time
	NewID     func() (string, error)
}
