package fileclassifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"pkt.systems/fileclassifier/core"
	"pkt.systems/fileclassifier/httpapi"
	"pkt.systems/fileclassifier/internal/events"
	"pkt.systems/fileclassifier/internal/export"
	"pkt.systems/fileclassifier/internal/ingest"
	"pkt.systems/fileclassifier/internal/logx"
	"pkt.systems/fileclassifier/internal/persist"
	"pkt.systems/fileclassifier/schema"
	"pkt.systems/pslog"
)

// Server composes the classification session, its HTTP API/UI and the
// optional event and export integrations.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	// URL returns the UI address once Start has bound the listener.
	URL() string
	Service() core.Service
}

// ServerConfig configures the compositor.
type ServerConfig struct {
	Session  schema.SessionConfig
	StateDir string
	HTTP     httpapi.Config
	NATSURL  string
	Export   ExportConfig
}

// ExportConfig selects export destinations. Empty values disable them.
type ExportConfig struct {
	Dir      string
	Bucket   string
	Key      string
	Region   string
	Endpoint string
}

// ServerDeps captures dependencies required to build the server. Zero
// values are replaced with the production implementations.
type ServerDeps struct {
	Logger       pslog.Logger
	Store        core.SessionStore
	Publisher    events.Publisher
	Destinations []export.Destination
	Now          func() time.Time
	NewID        func() (string, error)
}

// Session is an opened classification session.
type Session struct {
	Service core.Service
	Items   []schema.Item
	Store   core.SessionStore
}

// OpenSession normalizes cfg, ingests its sources and restores or starts
// the persisted session for them.
func OpenSession(ctx context.Context, cfg ServerConfig, deps ServerDeps, sink core.EventSink) (Session, error) {
	normalized, err := schema.NormalizeSessionConfig(cfg.Session)
	if err != nil {
		return Session{}, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	store := deps.Store
	if store == nil {
		dir := cfg.StateDir
		if dir == "" {
			dir, err = persist.DefaultDir()
			if err != nil {
				return Session{}, err
			}
		}
		disk, err := persist.NewStoreWithLogger(dir, logger)
		if err != nil {
			return Session{}, err
		}
		store = disk
	}
	items, err := ingest.Load(pslog.ContextWithLogger(ctx, logx.WithSource(logger, normalized)), normalized)
	if err != nil {
		return Session{}, err
	}
	service, err := core.NewService(normalized, items, core.ServiceDeps{
		Store:     store,
		EventSink: sink,
		Logger:    logger,
		Now:       deps.Now,
		NewID:     deps.NewID,
	})
	if err != nil {
		return Session{}, err
	}
	return Session{Service: service, Items: items, Store: store}, nil
}

// NewExporter builds the export destinations named by cfg plus any extra
// destinations in deps.
func NewExporter(ctx context.Context, cfg ExportConfig, deps ServerDeps) (*export.Exporter, error) {
	dests := append([]export.Destination(nil), deps.Destinations...)
	if cfg.Dir != "" {
		dir, err := export.NewDirDestination(cfg.Dir)
		if err != nil {
			return nil, err
		}
		dests = append(dests, dir)
	}
	if cfg.Bucket != "" {
		s3, err := export.NewS3Destination(ctx, cfg.Bucket, cfg.Key, cfg.Region, cfg.Endpoint)
		if err != nil {
			return nil, fmt.Errorf("s3 export: %w", err)
		}
		dests = append(dests, s3)
	}
	return export.NewExporter(deps.Logger, dests...), nil
}

// New constructs a composable file classifier server.
func New(ctx context.Context, cfg ServerConfig, deps ServerDeps) (Server, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	log := deps.Logger
	if log == nil {
		log = pslog.Ctx(ctx)
		deps.Logger = log
	}

	hub := httpapi.NewHub(cfg.HTTP.HubHistory)
	sinks := []core.EventSink{hub}

	var publisher *events.Sink
	pub := deps.Publisher
	if pub == nil && cfg.NATSURL != "" {
		nc, err := events.NewNATSPublisher(cfg.NATSURL)
		if err != nil {
			return nil, fmt.Errorf("nats: %w", err)
		}
		pub = nc
	}
	if pub != nil {
		publisher = events.NewSink(pub, log)
		sinks = append(sinks, publisher)
	}

	session, err := OpenSession(ctx, cfg, deps, eventFanout{sinks: sinks})
	if err != nil {
		if publisher != nil {
			_ = publisher.Close()
		}
		return nil, err
	}
	exporter, err := NewExporter(ctx, cfg.Export, deps)
	if err != nil {
		if publisher != nil {
			_ = publisher.Close()
		}
		return nil, err
	}

	return &compositeServer{
		cfg:       cfg,
		service:   session.Service,
		httpSrv:   httpapi.NewServer(cfg.HTTP, session.Service, exporter, hub),
		publisher: publisher,
		logger:    log,
	}, nil
}

type compositeServer struct {
	cfg       ServerConfig
	service   core.Service
	httpSrv   *httpapi.Server
	publisher *events.Sink
	logger    pslog.Logger

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	errCh    chan error
	done     chan struct{}
	stopDone chan struct{}
	stopErr  error
	addr     net.Addr
	started  bool
	stopping bool
}

const stopTimeout = 10 * time.Second

func (s *compositeServer) Service() core.Service {
	return s.service
}

func (s *compositeServer) URL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return "http://" + s.addr.String() + "/"
}

func (s *compositeServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	ln, err := httpapi.Listen(s.cfg.HTTP.Addr)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("listen %s: %w", s.cfg.HTTP.Addr, err)
	}
	s.ctx, s.cancel = context.WithCancel(pslog.ContextWithLogger(ctx, s.logger))
	s.errCh = make(chan error, 1)
	s.done = make(chan struct{})
	s.stopDone = make(chan struct{})
	s.addr = ln.Addr()
	s.started = true
	runCtx, errCh, done := s.ctx, s.errCh, s.done
	s.mu.Unlock()

	log := logx.WithSession(runCtx, s.service.Key())
	log.Info("server start", "addr", ln.Addr().String(), "nats", s.publisher != nil)
	handler := s.httpSrv.Handler()
	go func() {
		defer close(done)
		if err := httpapi.Serve(runCtx, ln, handler); err != nil {
			log.Error("http server failed", "err", err)
			errCh <- err
		}
	}()
	return nil
}

// Wait blocks until the server has stopped, either because its context
// was cancelled or because the HTTP server failed. It returns only after
// the final save has completed.
func (s *compositeServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		if serveErr != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", serveErr)
		}
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	stopErr := s.Stop(stopCtx)
	if serveErr != nil {
		return serveErr
	}
	return stopErr
}

// Stop shuts down the HTTP server, saves the session one last time and
// drains the event publisher. Concurrent callers wait for the first stop
// to finish and share its result.
func (s *compositeServer) Stop(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	stopDone := s.stopDone
	if s.stopping {
		s.mu.Unlock()
		select {
		case <-stopDone:
			s.mu.Lock()
			defer s.mu.Unlock()
			return s.stopErr
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.stopping = true
	cancel := s.cancel
	done := s.done
	log := s.logger
	s.mu.Unlock()

	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	var stopErr error
	select {
	case <-ctx.Done():
		log.Warn("server stop timed out", "err", ctx.Err())
		stopErr = ctx.Err()
	case <-done:
	}
	if err := s.service.Flush(ctx); err != nil {
		log.Warn("server final save failed", "err", err)
		stopErr = errors.Join(stopErr, err)
	}
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			log.Warn("server event publisher close failed", "err", err)
		}
	}
	log.Info("server stopped")

	s.mu.Lock()
	s.stopErr = stopErr
	s.mu.Unlock()
	close(stopDone)
	return stopErr
}
