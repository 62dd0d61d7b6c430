package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"pkt.systems/fileclassifier/internal/idgen"
	"pkt.systems/fileclassifier/internal/logx"
	"pkt.systems/fileclassifier/schema"
	"pkt.systems/pslog"
)

// service implements the core service behavior.
type service struct {
	key    schema.SessionKey
	ledger *Ledger
	store  SessionStore
	sink   EventSink
	logger pslog.Logger
	now    func() time.Time
	newID  func() (string, error)
	mu     sync.Mutex
}

// NewService validates the run configuration, restores any persisted
// session for it, and returns the service owning the live ledger.
func NewService(cfg schema.SessionConfig, items []schema.Item, deps ServiceDeps) (Service, error) {
	normalized, err := schema.NormalizeSessionConfig(cfg)
	if err != nil {
		return nil, err
	}
	cfg = normalized
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = idgen.ExportID
	}
	key := cfg.Fingerprint()
	log := logger.With("session", string(key))

	var (
		prior schema.Session
		found bool
	)
	if deps.Store != nil {
		prior, found = deps.Store.Load(key)
	}
	resume := Reconcile(items, prior, found)
	switch {
	case resume.Restored:
		log.Info("service session restored", "classifications", len(resume.Classifications), "dropped", len(prior.Classifications)-len(resume.Classifications), "current_index", resume.CurrentIndex)
	case found:
		log.Info("service session reset", "reason", "item count changed", "previous_items", prior.TotalItems, "items", len(items))
	default:
		log.Debug("service session new", "items", len(items))
	}
	return &service{
		key:    key,
		ledger: NewLedger(cfg, items, resume, deps.Now),
		store:  deps.Store,
		sink:   deps.EventSink,
		logger: log,
		now:    deps.Now,
		newID:  deps.NewID,
	}, nil
}

func (s *service) Key() schema.SessionKey {
	return s.key
}

func (s *service) State(ctx context.Context) (schema.Session, error) {
	if ctx == nil {
		return schema.Session{}, errors.New("missing context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	session := s.ledger.Snapshot()
	session.CurrentIndex = s.ledger.CurrentIndex()
	return session, nil
}

func (s *service) Item(ctx context.Context, index int) (schema.Item, error) {
	if ctx == nil {
		return schema.Item{}, errors.New("missing context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Item(index)
}

func (s *service) Classify(ctx context.Context, req schema.ClassifyRequest) (schema.Classification, error) {
	if ctx == nil {
		return schema.Classification{}, errors.New("missing context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log := logx.WithItem(s.logger, req.ItemIndex, "")
	entry, err := s.ledger.Classify(req.ItemIndex, req.Category)
	if err != nil {
		log.Debug("service classify rejected", "category", req.Category, "err", err)
		return schema.Classification{}, err
	}
	log.Info("service item classified", "item_id", entry.ItemID, "category", entry.Category, "category_name", entry.CategoryName)
	s.persistLocked(log)
	s.emitLocked(schema.LedgerClassified, req.ItemIndex, entry.ItemID, &entry)
	return entry, nil
}

func (s *service) SaveComment(ctx context.Context, req schema.CommentRequest) (schema.Classification, error) {
	if ctx == nil {
		return schema.Classification{}, errors.New("missing context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log := logx.WithItem(s.logger, req.ItemIndex, "")
	entry, err := s.ledger.SetComment(req.ItemIndex, req.Comment)
	if err != nil {
		log.Debug("service comment rejected", "err", err)
		return schema.Classification{}, err
	}
	log.Info("service comment saved", "item_id", entry.ItemID, "category", entry.Category)
	s.persistLocked(log)
	s.emitLocked(schema.LedgerCommentSaved, req.ItemIndex, entry.ItemID, &entry)
	return entry, nil
}

func (s *service) DeleteComment(ctx context.Context, index int) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log := logx.WithItem(s.logger, index, "")
	changed, err := s.ledger.DeleteComment(index)
	if err != nil {
		log.Debug("service comment delete rejected", "err", err)
		return err
	}
	item, _ := s.ledger.Item(index)
	log.Info("service comment deleted", "item_id", item.ID, "changed", changed)
	s.persistLocked(log)
	var current *schema.Classification
	if entry, ok := s.ledger.ClassificationFor(item.ID); ok {
		current = &entry
	}
	s.emitLocked(schema.LedgerCommentDeleted, index, item.ID, current)
	return nil
}

func (s *service) Export(ctx context.Context) (schema.ExportData, error) {
	if ctx == nil {
		return schema.ExportData{}, errors.New("missing context")
	}
	id, err := s.newID()
	if err != nil {
		return schema.ExportData{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ledger.Snapshot()
	data := schema.ExportData{
		SessionID:       id,
		Config:          snapshot.Config,
		Classifications: snapshot.Classifications,
		Summary:         s.ledger.Summary(),
		ExportedAt:      s.now().UTC(),
	}
	s.logger.Info("service export built", "export_id", id, "classified", data.Summary.ClassifiedItems, "total", data.Summary.TotalItems)
	return data, nil
}

func (s *service) FindUnrated(ctx context.Context, req schema.UnratedRequest) (schema.UnratedResponse, error) {
	if ctx == nil {
		return schema.UnratedResponse{}, errors.New("missing context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	index, found, err := s.ledger.FindUnrated(req.From, req.Direction)
	if err != nil {
		return schema.UnratedResponse{}, err
	}
	if !found {
		index = clampIndex(req.From, s.ledger.Len())
	}
	return schema.UnratedResponse{Index: index, Found: found}, nil
}

func (s *service) SetPosition(ctx context.Context, index int) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	log := logx.WithItem(s.logger, index, "")
	if err := s.ledger.SetPosition(index); err != nil {
		log.Debug("service position rejected", "err", err)
		return err
	}
	log.Trace("service position saved")
	s.persistLocked(log)
	s.emitLocked(schema.LedgerPosition, index, "", nil)
	return nil
}

// Flush persists the current session once more. Unlike the saves after each
// mutation, the error is returned so shutdown can report it.
func (s *service) Flush(ctx context.Context) error {
	if ctx == nil {
		return errors.New("missing context")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(s.key, s.ledger.Snapshot()); err != nil {
		s.logger.Warn("service flush failed", "err", err)
		return err
	}
	s.logger.Debug("service session flushed", "classifications", s.ledger.Classified())
	return nil
}

func (s *service) persistLocked(log pslog.Logger) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(s.key, s.ledger.Snapshot()); err != nil {
		log.Warn("service persist failed", "err", err)
		return
	}
	log.Trace("service session persisted", "classifications", s.ledger.Classified())
}

func (s *service) emitLocked(kind schema.LedgerEventType, index int, itemID string, entry *schema.Classification) {
	if s.sink == nil {
		return
	}
	s.sink.OnLedgerEvent(schema.LedgerEvent{
		Type:           kind,
		Session:        s.key,
		ItemIndex:      index,
		ItemID:         itemID,
		Classification: entry,
		Classified:     s.ledger.Classified(),
		Timestamp:      s.now().UTC(),
	})
}
