package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"pkt.systems/fileclassifier/internal/persist"
	"pkt.systems/fileclassifier/schema"
	"pkt.systems/pslog"
)

type memoryStore struct {
	mu       sync.Mutex
	sessions map[schema.SessionKey]schema.Session
	saves    int
	failSave error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: make(map[schema.SessionKey]schema.Session)}
}

func (m *memoryStore) Load(key schema.SessionKey) (schema.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[key]
	return session, ok
}

func (m *memoryStore) Save(key schema.SessionKey, session schema.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.failSave != nil {
		return m.failSave
	}
	m.sessions[key] = session
	return nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []schema.LedgerEvent
}

func (r *recordingSink) OnLedgerEvent(event schema.LedgerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingSink) Events() []schema.LedgerEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]schema.LedgerEvent(nil), r.events...)
}

func testConfig() schema.SessionConfig {
	return schema.SessionConfig{Mode: schema.ModeFile, Categories: []string{"good", "bad", "review"}, Sources: []string{"a", "b", "c"}}
}

func newTestService(t *testing.T, store SessionStore, sink EventSink, logger pslog.Logger) Service {
	t.Helper()
	deps := ServiceDeps{
		EventSink: sink,
		Logger:    logger,
		Now:       fixedNow,
		NewID:     func() (string, error) { return "session-test", nil },
	}
	if store != nil {
		deps.Store = store
	}
	svc, err := NewService(testConfig(), itemsWithIDs("a", "b", "c"), deps)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestNewServiceRejectsInvalidConfig(t *testing.T) {
	_, err := NewService(schema.SessionConfig{Sources: []string{"a"}}, nil, ServiceDeps{})
	if !errors.Is(err, schema.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestServicePersistsAfterEveryMutation(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, store, nil, nil)
	ctx := context.Background()

	if _, err := svc.Classify(ctx, schema.ClassifyRequest{ItemIndex: 0, Category: 1}); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if _, err := svc.SaveComment(ctx, schema.CommentRequest{ItemIndex: 1, Comment: "note"}); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if err := svc.DeleteComment(ctx, 2); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.SetPosition(ctx, 2); err != nil {
		t.Fatalf("position: %v", err)
	}
	if store.saves != 4 {
		t.Fatalf("expected 4 saves, got %d", store.saves)
	}
	saved, ok := store.Load(svc.Key())
	if !ok {
		t.Fatalf("expected saved session")
	}
	if len(saved.Classifications) != 2 || saved.CurrentIndex != 2 || saved.TotalItems != 3 {
		t.Fatalf("unexpected saved session %+v", saved)
	}
}

func TestServiceRejectedRequestsDoNotPersist(t *testing.T) {
	store := newMemoryStore()
	svc := newTestService(t, store, nil, nil)
	ctx := context.Background()
	if _, err := svc.Classify(ctx, schema.ClassifyRequest{ItemIndex: 5, Category: 1}); !errors.Is(err, schema.ErrInvalidIndex) {
		t.Fatalf("expected ErrInvalidIndex, got %v", err)
	}
	if _, err := svc.Classify(ctx, schema.ClassifyRequest{ItemIndex: 0, Category: 4}); !errors.Is(err, schema.ErrInvalidCategory) {
		t.Fatalf("expected ErrInvalidCategory, got %v", err)
	}
	if _, err := svc.SaveComment(ctx, schema.CommentRequest{ItemIndex: 0, Comment: " "}); !errors.Is(err, schema.ErrEmptyComment) {
		t.Fatalf("expected ErrEmptyComment, got %v", err)
	}
	if store.saves != 0 {
		t.Fatalf("expected no saves, got %d", store.saves)
	}
}

func TestServicePersistFailureIsWarning(t *testing.T) {
	store := newMemoryStore()
	store.failSave = errors.New("disk full")
	var logs bytes.Buffer
	logger := pslog.NewWithOptions(&logs, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		VerboseFields: true,
		MinLevel:      pslog.InfoLevel,
	})
	svc := newTestService(t, store, nil, logger)
	ctx := context.Background()
	entry, err := svc.Classify(ctx, schema.ClassifyRequest{ItemIndex: 0, Category: 2})
	if err != nil {
		t.Fatalf("expected classify to succeed despite save failure: %v", err)
	}
	if entry.CategoryName != "bad" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	state, err := svc.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if len(state.Classifications) != 1 {
		t.Fatalf("expected in-memory change to be kept")
	}
	found := false
	for _, line := range bytes.Split(logs.Bytes(), []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		payload := map[string]any{}
		if err := json.Unmarshal(line, &payload); err != nil {
			continue
		}
		msg, _ := payload["msg"].(string)
		if msg == "" {
			msg, _ = payload["message"].(string)
		}
		if msg == "service persist failed" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected persist failure warning, got:\n%s", logs.String())
	}
	if err := svc.Flush(ctx); err == nil {
		t.Fatalf("expected flush to report save failure")
	}
}

func TestServiceRestoresPersistedSession(t *testing.T) {
	store := newMemoryStore()
	first := newTestService(t, store, nil, nil)
	ctx := context.Background()
	if _, err := first.Classify(ctx, schema.ClassifyRequest{ItemIndex: 1, Category: 3}); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if err := first.SetPosition(ctx, 1); err != nil {
		t.Fatalf("position: %v", err)
	}
	second := newTestService(t, store, nil, nil)
	if second.Key() != first.Key() {
		t.Fatalf("expected stable key")
	}
	state, err := second.State(ctx)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.CurrentIndex != 1 || len(state.Classifications) != 1 || state.Classifications[0].CategoryName != "review" {
		t.Fatalf("unexpected restored state %+v", state)
	}
}

func TestServiceStateClampsCurrentIndex(t *testing.T) {
	store := newMemoryStore()
	key := testConfig().Fingerprint()
	store.sessions[key] = schema.Session{Config: testConfig(), TotalItems: 3, CurrentIndex: 42}
	svc := newTestService(t, store, nil, nil)
	state, err := svc.State(context.Background())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.CurrentIndex != 2 {
		t.Fatalf("expected clamped index 2, got %d", state.CurrentIndex)
	}
}

func TestServiceEmitsLedgerEvents(t *testing.T) {
	sink := &recordingSink{}
	svc := newTestService(t, nil, sink, nil)
	ctx := context.Background()
	if _, err := svc.Classify(ctx, schema.ClassifyRequest{ItemIndex: 0, Category: 1}); err != nil {
		t.Fatalf("classify: %v", err)
	}
	if _, err := svc.SaveComment(ctx, schema.CommentRequest{ItemIndex: 1, Comment: "hi"}); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if err := svc.DeleteComment(ctx, 1); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.SetPosition(ctx, 2); err != nil {
		t.Fatalf("position: %v", err)
	}
	events := sink.Events()
	want := []schema.LedgerEventType{schema.LedgerClassified, schema.LedgerCommentSaved, schema.LedgerCommentDeleted, schema.LedgerPosition}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), events)
	}
	for i, event := range events {
		if event.Type != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], event.Type)
		}
		if event.Session != svc.Key() {
			t.Fatalf("event %d: unexpected session %q", i, event.Session)
		}
	}
	if events[0].Classification == nil || events[0].Classification.Category != 1 || events[0].Classified != 1 {
		t.Fatalf("unexpected classified event %+v", events[0])
	}
	if events[2].Classification != nil || events[2].Classified != 1 {
		t.Fatalf("expected placeholder removal in delete event, got %+v", events[2])
	}
}

func TestServiceExport(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	ctx := context.Background()
	for _, i := range []int{0, 1} {
		if _, err := svc.Classify(ctx, schema.ClassifyRequest{ItemIndex: i, Category: 1}); err != nil {
			t.Fatalf("classify: %v", err)
		}
	}
	data, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if data.SessionID != "session-test" || !data.ExportedAt.Equal(fixedNow()) {
		t.Fatalf("unexpected export header %+v", data)
	}
	if data.Summary.ClassifiedItems != 2 || data.Summary.UnclassifiedItems != 1 || data.Summary.CategoryCounts["good"] != 2 {
		t.Fatalf("unexpected summary %+v", data.Summary)
	}
	if len(data.Classifications) != 2 {
		t.Fatalf("expected 2 classifications, got %d", len(data.Classifications))
	}
}

func TestServiceFindUnrated(t *testing.T) {
	svc := newTestService(t, nil, nil, nil)
	ctx := context.Background()
	if _, err := svc.Classify(ctx, schema.ClassifyRequest{ItemIndex: 1, Category: 1}); err != nil {
		t.Fatalf("classify: %v", err)
	}
	resp, err := svc.FindUnrated(ctx, schema.UnratedRequest{From: 0, Direction: schema.DirectionNext})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !resp.Found || resp.Index != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	resp, err = svc.FindUnrated(ctx, schema.UnratedRequest{From: 2, Direction: schema.DirectionNext})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if resp.Found || resp.Index != 2 {
		t.Fatalf("expected not found at current index, got %+v", resp)
	}
}

func TestServiceWithDiskStore(t *testing.T) {
	store, err := persist.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	svc := newTestService(t, store, nil, nil)
	ctx := context.Background()
	if _, err := svc.SaveComment(ctx, schema.CommentRequest{ItemIndex: 0, Comment: "hello"}); err != nil {
		t.Fatalf("comment: %v", err)
	}
	if err := svc.Flush(ctx); err != nil {
		t.Fatalf("flush: %v", err)
	}
	saved, ok := store.Load(svc.Key())
	if !ok {
		t.Fatalf("expected session on disk")
	}
	if len(saved.Classifications) != 1 || saved.Classifications[0].Category != 0 || saved.LastSaved == nil {
		t.Fatalf("unexpected saved session %+v", saved)
	}
}
