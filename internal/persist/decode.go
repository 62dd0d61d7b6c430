package persist

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pkt.systems/fileclassifier/schema"
)

// AppDirName is the directory name used under the user config dir.
const AppDirName = "file-classifier"

// DefaultDir returns $XDG_CONFIG_HOME/file-classifier, falling back to
// ~/.config/file-classifier.
func DefaultDir() (string, error) {
	if base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); base != "" {
		return filepath.Join(base, AppDirName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", AppDirName), nil
}

// Decode parses a persisted session record. The raw document is checked for
// the expected shape before it is decoded so that a record written by some
// other tool is rejected instead of silently zero-filled.
func Decode(data []byte) (schema.Session, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return schema.Session{}, fmt.Errorf("%w: %v", schema.ErrMalformedSession, err)
	}
	if err := checkShape(raw); err != nil {
		return schema.Session{}, err
	}
	var session schema.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return schema.Session{}, fmt.Errorf("%w: %v", schema.ErrMalformedSession, err)
	}
	if session.Classifications == nil {
		session.Classifications = []schema.Classification{}
	}
	if session.Items == nil {
		session.Items = []schema.Item{}
	}
	return session, nil
}

func checkShape(raw map[string]json.RawMessage) error {
	cfgRaw, ok := raw["config"]
	if !ok {
		return malformed("config is missing")
	}
	var cfg map[string]json.RawMessage
	if !isKind(cfgRaw, '{') || json.Unmarshal(cfgRaw, &cfg) != nil {
		return malformed("config is not an object")
	}
	if !isKind(cfg["categories"], '[') {
		return malformed("config.categories is not an array")
	}
	if !isKind(cfg["sources"], '[') {
		return malformed("config.sources is not an array")
	}
	if !isInteger(raw["currentIndex"]) {
		return malformed("currentIndex is not an integer")
	}
	if !isInteger(raw["totalItems"]) {
		return malformed("totalItems is not an integer")
	}
	if !isKind(raw["items"], '[') {
		return malformed("items is not an array")
	}
	if !isKind(raw["classifications"], '[') {
		return malformed("classifications is not an array")
	}
	return nil
}

func malformed(reason string) error {
	return fmt.Errorf("%w: %s", schema.ErrMalformedSession, reason)
}

func isKind(value json.RawMessage, open byte) bool {
	value = bytes.TrimSpace(value)
	return len(value) > 0 && value[0] == open
}

func isInteger(value json.RawMessage) bool {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return false
	}
	_, err := strconv.Atoi(string(value))
	return err == nil
}
