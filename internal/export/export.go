package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/fileclassifier/schema"
	"pkt.systems/pslog"
)

// Destination stores an encoded export document under name and returns
// where it ended up.
type Destination interface {
	Name() string
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// Result describes one delivery attempt.
type Result struct {
	Destination string `json:"destination"`
	Location    string `json:"location,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Encode renders an export document as indented JSON.
func Encode(data schema.ExportData) ([]byte, error) {
	if data.Classifications == nil {
		data.Classifications = []schema.Classification{}
	}
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode export: %w", err)
	}
	return append(out, '\n'), nil
}

// ObjectName returns the file or object name used for an export.
func ObjectName(data schema.ExportData) string {
	id := strings.TrimSpace(data.SessionID)
	if id == "" {
		id = "export"
	}
	return id + ".json"
}

// Exporter delivers export documents to every configured destination.
type Exporter struct {
	destinations []Destination
	log          pslog.Logger
}

// NewExporter returns an exporter over destinations.
func NewExporter(logger pslog.Logger, destinations ...Destination) *Exporter {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	kept := make([]Destination, 0, len(destinations))
	for _, dest := range destinations {
		if dest != nil {
			kept = append(kept, dest)
		}
	}
	return &Exporter{destinations: kept, log: logger}
}

// Len returns the number of destinations.
func (e *Exporter) Len() int {
	if e == nil {
		return 0
	}
	return len(e.destinations)
}

// Deliver writes data to every destination. A failing destination does not
// stop the others; the failure is logged and reported in its Result.
func (e *Exporter) Deliver(ctx context.Context, data schema.ExportData) ([]Result, error) {
	if e == nil || len(e.destinations) == 0 {
		return nil, nil
	}
	encoded, err := Encode(data)
	if err != nil {
		return nil, err
	}
	name := ObjectName(data)
	results := make([]Result, 0, len(e.destinations))
	var errs []error
	for _, dest := range e.destinations {
		result := Result{Destination: dest.Name()}
		location, err := dest.Write(ctx, name, encoded)
		if err != nil {
			e.log.Warn("export delivery failed", "destination", dest.Name(), "export_id", data.SessionID, "err", err)
			result.Error = err.Error()
			errs = append(errs, fmt.Errorf("%s: %w", dest.Name(), err))
		} else {
			e.log.Info("export delivered", "destination", dest.Name(), "location", location, "export_id", data.SessionID)
			result.Location = location
		}
		results = append(results, result)
	}
	return results, errors.Join(errs...)
}

// DirDestination writes each export to its own file in a directory.
type DirDestination struct {
	dir string
}

// NewDirDestination returns a destination writing into dir.
func NewDirDestination(dir string) (*DirDestination, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("export directory is required")
	}
	return &DirDestination{dir: dir}, nil
}

func (d *DirDestination) Name() string {
	return "dir"
}

func (d *DirDestination) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.dir, 0o700); err != nil {
		return "", err
	}
	path := filepath.Join(d.dir, filepath.Base(name))
	tmp, err := os.CreateTemp(d.dir, "export-*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return path, nil
}
