package ingest

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pkt.systems/fileclassifier/schema"
	"pkt.systems/pslog"
)

// ErrNotFound reports a source path that does not exist.
var ErrNotFound = errors.New("file not found")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Load reads every source named by cfg in order and returns the items to
// classify. Whole files become one item each; in tabular mode every
// non-empty CSV record becomes an item.
func Load(ctx context.Context, cfg schema.SessionConfig) ([]schema.Item, error) {
	log := pslog.Ctx(ctx)
	items := make([]schema.Item, 0, len(cfg.Sources))
	for _, source := range cfg.Sources {
		if _, err := os.Stat(source); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, source)
			}
			return nil, err
		}
		var (
			loaded []schema.Item
			err    error
		)
		switch cfg.Mode {
		case schema.ModeTabular:
			loaded, err = loadCSV(log, source, cfg.Columns)
		default:
			loaded, err = loadFile(source)
		}
		if err != nil {
			return nil, err
		}
		items = append(items, loaded...)
	}
	log.Debug("ingest complete", "mode", string(cfg.Mode), "sources", len(cfg.Sources), "items", len(items))
	return items, nil
}

func loadFile(path string) ([]schema.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	return []schema.Item{{
		ID:       path + ":full",
		Content:  string(data),
		Filename: filepath.Base(path),
		Line:     0,
	}}, nil
}

func loadCSV(log pslog.Logger, path string, columns []string) ([]schema.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", path, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			log.Warn("csv has no header", "file", path)
			return []schema.Item{}, nil
		}
		return nil, fmt.Errorf("parse csv %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	filename := filepath.Base(path)
	warned := make(map[string]bool)
	items := make([]schema.Item, 0)
	index := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv %s: %w", path, err)
		}
		index++
		if len(record) > len(header) {
			log.Warn("csv record has extra fields", "file", path, "row", index, "fields", len(record), "columns", len(header))
		}
		row := buildRow(header, record)
		if !hasContent(row) {
			continue
		}
		if len(columns) > 0 {
			row = selectColumns(log, path, row, columns, warned)
		}
		items = append(items, schema.Item{
			ID:       path + ":row:" + strconv.Itoa(index),
			Content:  FormatRow(row),
			Filename: filename,
			RowData:  row,
			Line:     index,
		})
	}
	log.Info("csv parsed", "file", path, "records", len(items))
	return items, nil
}

func buildRow(header, record []string) schema.Row {
	row := make(schema.Row, 0, len(header))
	positions := make(map[string]int, len(header))
	for i, key := range header {
		if i >= len(record) {
			break
		}
		value := strings.TrimSpace(record[i])
		if pos, ok := positions[key]; ok {
			row[pos].Value = value
			continue
		}
		positions[key] = len(row)
		row = append(row, schema.Field{Key: key, Value: value})
	}
	return row
}

func hasContent(row schema.Row) bool {
	for _, field := range row {
		if field.Value != "" {
			return true
		}
	}
	return false
}

func selectColumns(log pslog.Logger, path string, row schema.Row, columns []string, warned map[string]bool) schema.Row {
	out := make(schema.Row, 0, len(columns))
	for _, col := range columns {
		value, ok := row.Get(col)
		if !ok {
			if !warned[col] {
				warned[col] = true
				log.Warn("csv column not found", "file", path, "column", col, "available", strings.Join(row.Keys(), ", "))
			}
			continue
		}
		out = append(out, schema.Field{Key: col, Value: value})
	}
	return out
}

// FormatRow renders a row as one "key: value" line per field with keys
// padded to the widest key.
func FormatRow(row schema.Row) string {
	width := 0
	for _, field := range row {
		if n := len([]rune(field.Key)); n > width {
			width = n
		}
	}
	var b strings.Builder
	for i, field := range row {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(field.Key)
		b.WriteString(strings.Repeat(" ", width-len([]rune(field.Key))))
		b.WriteString(": ")
		b.WriteString(field.Value)
	}
	return b.String()
}
