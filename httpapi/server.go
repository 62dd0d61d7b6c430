package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pkt.systems/fileclassifier/core"
	"pkt.systems/fileclassifier/internal/export"
	"pkt.systems/fileclassifier/internal/logx"
	"pkt.systems/fileclassifier/schema"
)

const maxBodyBytes = 1 << 20

var errNotFound = errors.New("not found")
var errMethodNotAllowed = errors.New("method not allowed")

// Deliverer forwards export documents to configured destinations.
type Deliverer interface {
	Deliver(ctx context.Context, data schema.ExportData) ([]export.Result, error)
}

// Envelope wraps every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Server serves the HTTP API and UI.
type Server struct {
	cfg       Config
	service   core.Service
	deliverer Deliverer
	hub       *Hub
}

// NewServer constructs an HTTP server. deliverer and hub may be nil.
func NewServer(cfg Config, service core.Service, deliverer Deliverer, hub *Hub) *Server {
	if strings.TrimSpace(cfg.AllowOrigin) == "" {
		cfg.AllowOrigin = "*"
	}
	return &Server{
		cfg:       cfg,
		service:   service,
		deliverer: deliverer,
		hub:       hub,
	}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/assets/", http.StripPrefix("/assets/", noCache(http.FileServer(http.FS(assetsFS)))))

	mux.HandleFunc("/api/", s.api(s.handleUnknown))
	mux.HandleFunc("/api/state", s.api(s.handleState))
	mux.HandleFunc("/api/item", s.api(s.handleItem))
	mux.HandleFunc("/api/classify", s.api(s.handleClassify))
	mux.HandleFunc("/api/comment", s.api(s.handleComment))
	mux.HandleFunc("/api/export", s.api(s.handleExport))
	mux.HandleFunc("/api/unrated", s.api(s.handleUnrated))
	mux.HandleFunc("/api/position", s.api(s.handlePosition))
	mux.HandleFunc("/api/stream", s.api(s.handleStream))

	return s.withRequestLogging(mux)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data, err := fs.ReadFile(assetsFS, "index.html")
	if err != nil {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	stat, err := fs.Stat(assetsFS, "index.html")
	if err != nil {
		http.Error(w, "index not found", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", stat.ModTime(), bytes.NewReader(data))
}

func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache")
		next.ServeHTTP(w, r)
	})
}

// api applies the CORS headers and answers preflight requests.
func (s *Server) api(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.cfg.AllowOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleUnknown(w http.ResponseWriter, r *http.Request) {
	writeFailure(w, http.StatusNotFound, errNotFound)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeFailure(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	state, err := s.service.State(r.Context())
	if err != nil {
		s.fail(w, r, "state", err)
		return
	}
	writeData(w, state)
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeFailure(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	index, err := queryIndex(r, "index", true)
	if err != nil {
		s.fail(w, r, "item", err)
		return
	}
	item, err := s.service.Item(r.Context(), index)
	if err != nil {
		s.fail(w, r, "item", err)
		return
	}
	writeData(w, item)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFailure(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	var req schema.ClassifyRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		s.fail(w, r, "classify", err)
		return
	}
	if _, err := s.service.Classify(r.Context(), req); err != nil {
		s.fail(w, r, "classify", err)
		return
	}
	writeData(w, map[string]bool{"classified": true})
}

func (s *Server) handleComment(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req schema.CommentRequest
		if err := decodeJSON(r.Body, &req); err != nil {
			s.fail(w, r, "comment", err)
			return
		}
		if _, err := s.service.SaveComment(r.Context(), req); err != nil {
			s.fail(w, r, "comment", err)
			return
		}
		writeData(w, map[string]bool{"commentSaved": true})
	case http.MethodDelete:
		index, err := queryIndex(r, "index", false)
		if err != nil {
			s.fail(w, r, "comment delete", err)
			return
		}
		if err := s.service.DeleteComment(r.Context(), index); err != nil {
			s.fail(w, r, "comment delete", err)
			return
		}
		writeData(w, map[string]bool{"commentDeleted": true})
	default:
		writeFailure(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
	}
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFailure(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	data, err := s.service.Export(r.Context())
	if err != nil {
		s.fail(w, r, "export", err)
		return
	}
	if s.deliverer != nil {
		// Delivery failures are logged by the deliverer; the document is
		// still returned to the client.
		_, _ = s.deliverer.Deliver(r.Context(), data)
	}
	writeData(w, data)
}

func (s *Server) handleUnrated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeFailure(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	from, err := queryIndex(r, "from", true)
	if err != nil {
		s.fail(w, r, "unrated", err)
		return
	}
	direction := schema.Direction(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("direction"))))
	resp, err := s.service.FindUnrated(r.Context(), schema.UnratedRequest{From: from, Direction: direction})
	if err != nil {
		s.fail(w, r, "unrated", err)
		return
	}
	writeData(w, resp)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeFailure(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	var req struct {
		Index int `json:"index"`
	}
	if err := decodeJSON(r.Body, &req); err != nil {
		s.fail(w, r, "position", err)
		return
	}
	if err := s.service.SetPosition(r.Context(), req.Index); err != nil {
		s.fail(w, r, "position", err)
		return
	}
	writeData(w, map[string]bool{"positionSaved": true})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeFailure(w, http.StatusMethodNotAllowed, errMethodNotAllowed)
		return
	}
	if s.hub == nil {
		writeFailure(w, http.StatusNotFound, errNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeFailure(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	log := logx.WithSession(r.Context(), s.service.Key())

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, unsubscribe, _ := s.hub.Subscribe()
	defer unsubscribe()

	if state, err := s.service.State(r.Context()); err == nil {
		_ = writeSSEvent(w, StreamEvent{
			Type: "summary",
			Summary: &StreamSummary{
				CurrentIndex: state.CurrentIndex,
				TotalItems:   state.TotalItems,
				Classified:   len(state.Classifications),
			},
			Timestamp: time.Now(),
		})
	}
	lastID := parseUint(r.Header.Get("Last-Event-ID"))
	replayCount := 0
	if lastID > 0 {
		replay := s.hub.Replay(lastID)
		replayCount = len(replay)
		for _, event := range replay {
			_ = writeSSEvent(w, event)
		}
	}
	flusher.Flush()

	log.Info("http stream opened", "last_id", lastID, "replay", replayCount)
	notify := r.Context().Done()
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			if lastID > 0 && event.Seq <= lastID {
				continue
			}
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

// fail maps err onto a status code and writes the failure envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	log := logx.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("http "+op+" failed", "err", err)
	} else {
		log.Debug("http "+op+" rejected", "status", status, "err", err)
	}
	writeFailure(w, status, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, schema.ErrInvalidIndex),
		errors.Is(err, schema.ErrInvalidCategory),
		errors.Is(err, schema.ErrEmptyComment),
		errors.Is(err, schema.ErrInvalidDirection),
		errors.Is(err, schema.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, schema.ErrItemNotFound), errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, errMethodNotAllowed):
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// queryIndex parses an integer query parameter. A missing value yields 0
// when optional is set; a non-numeric value is an invalid index.
func queryIndex(r *http.Request, name string, optional bool) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		if optional {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %s is required", schema.ErrInvalidIndex, name)
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", schema.ErrInvalidIndex, raw)
	}
	return value, nil
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("%w: %v", schema.ErrInvalidRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, Envelope{Success: false, Error: err.Error()})
}

func writeSSEvent(w http.ResponseWriter, event StreamEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if event.Seq > 0 {
		_, _ = fmt.Fprintf(w, "id: %d\n", event.Seq)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func parseUint(value string) uint64 {
	if value == "" {
		return 0
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0
	}
	return parsed
}
