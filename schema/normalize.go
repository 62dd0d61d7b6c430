package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// SplitList splits a comma separated flag value, trimming entries and
// dropping empty ones.
func SplitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

// NormalizeMode maps user facing mode names onto a Mode.
// Accepted values: file, tabular, csv.
func NormalizeMode(value string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", string(ModeFile):
		return ModeFile, nil
	case string(ModeTabular), "csv":
		return ModeTabular, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, value)
	}
}

// NormalizeSessionConfig validates a run configuration and returns a trimmed
// copy. Categories must number 1 to MaxCategories, at least one source is
// required, and a column subset is only meaningful in tabular mode.
func NormalizeSessionConfig(cfg SessionConfig) (SessionConfig, error) {
	mode, err := NormalizeMode(string(cfg.Mode))
	if err != nil {
		return SessionConfig{}, err
	}
	out := SessionConfig{
		Mode:       mode,
		Categories: trimAll(cfg.Categories),
		Sources:    trimAll(cfg.Sources),
		Columns:    trimAll(cfg.Columns),
	}
	if len(out.Categories) == 0 {
		return SessionConfig{}, fmt.Errorf("%w: at least one category is required", ErrInvalidConfig)
	}
	if len(out.Categories) > MaxCategories {
		return SessionConfig{}, fmt.Errorf("%w: maximum %d categories allowed", ErrInvalidConfig, MaxCategories)
	}
	if len(out.Sources) == 0 {
		return SessionConfig{}, fmt.Errorf("%w: at least one source file is required", ErrInvalidConfig)
	}
	if len(out.Columns) == 0 {
		out.Columns = nil
	} else if out.Mode != ModeTabular {
		return SessionConfig{}, fmt.Errorf("%w: columns require tabular mode", ErrInvalidConfig)
	}
	return out, nil
}

// Fingerprint derives the session key from mode, sorted categories and
// sorted sources. Columns do not participate.
func (c SessionConfig) Fingerprint() SessionKey {
	categories := append([]string(nil), c.Categories...)
	sources := append([]string(nil), c.Sources...)
	sort.Strings(categories)
	sort.Strings(sources)
	content := string(c.Mode) + ":" + strings.Join(categories, ",") + ":" + strings.Join(sources, ",")
	sum := sha256.Sum256([]byte(content))
	return SessionKey("session-" + hex.EncodeToString(sum[:])[:16])
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}
