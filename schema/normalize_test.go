package schema

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestSplitList(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", []string{}},
		{"good,bad", []string{"good", "bad"}},
		{" spam , ham ,, unsure ", []string{"spam", "ham", "unsure"}},
	}
	for _, tc := range cases {
		if got := SplitList(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("SplitList(%q) = %#v, want %#v", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeMode(t *testing.T) {
	cases := []struct {
		in   string
		want Mode
	}{
		{"", ModeFile},
		{"file", ModeFile},
		{"CSV", ModeTabular},
		{"tabular", ModeTabular},
	}
	for _, tc := range cases {
		got, err := NormalizeMode(tc.in)
		if err != nil {
			t.Fatalf("NormalizeMode(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeMode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if _, err := NormalizeMode("xml"); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNormalizeSessionConfig(t *testing.T) {
	cfg, err := NormalizeSessionConfig(SessionConfig{
		Categories: []string{" good", "bad ", ""},
		Sources:    []string{"a.txt"},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Mode != ModeFile {
		t.Fatalf("expected file mode, got %q", cfg.Mode)
	}
	if !reflect.DeepEqual(cfg.Categories, []string{"good", "bad"}) {
		t.Fatalf("unexpected categories: %#v", cfg.Categories)
	}
	if cfg.Columns != nil {
		t.Fatalf("expected nil columns, got %#v", cfg.Columns)
	}
}

func TestNormalizeSessionConfigRejects(t *testing.T) {
	tooMany := make([]string, MaxCategories+1)
	for i := range tooMany {
		tooMany[i] = strings.Repeat("c", i+1)
	}
	cases := []struct {
		name string
		cfg  SessionConfig
		want string
	}{
		{"no categories", SessionConfig{Sources: []string{"a"}}, "at least one category"},
		{"too many categories", SessionConfig{Categories: tooMany, Sources: []string{"a"}}, "maximum 9 categories"},
		{"no sources", SessionConfig{Categories: []string{"good"}}, "at least one source"},
		{"columns in file mode", SessionConfig{Categories: []string{"good"}, Sources: []string{"a"}, Columns: []string{"x"}}, "columns require tabular"},
	}
	for _, tc := range cases {
		_, err := NormalizeSessionConfig(tc.cfg)
		if !errors.Is(err, ErrInvalidConfig) || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected %q error, got %v", tc.name, tc.want, err)
		}
	}
}

func TestFingerprintIgnoresOrderAndColumns(t *testing.T) {
	a := SessionConfig{Mode: ModeTabular, Categories: []string{"good", "bad"}, Sources: []string{"x.csv", "y.csv"}}
	b := SessionConfig{Mode: ModeTabular, Categories: []string{"bad", "good"}, Sources: []string{"y.csv", "x.csv"}, Columns: []string{"msg"}}
	if a.Fingerprint() != b.Fingerprint() {
		t.Fatalf("expected equal fingerprints, got %q and %q", a.Fingerprint(), b.Fingerprint())
	}
	if !strings.HasPrefix(string(a.Fingerprint()), "session-") {
		t.Fatalf("unexpected fingerprint format %q", a.Fingerprint())
	}
}

func TestFingerprintChangesWithConfig(t *testing.T) {
	base := SessionConfig{Mode: ModeFile, Categories: []string{"good", "bad"}, Sources: []string{"a.txt"}}
	variants := []SessionConfig{
		{Mode: ModeTabular, Categories: base.Categories, Sources: base.Sources},
		{Mode: ModeFile, Categories: []string{"good", "bad", "review"}, Sources: base.Sources},
		{Mode: ModeFile, Categories: base.Categories, Sources: []string{"a.txt", "b.txt"}},
	}
	for i, v := range variants {
		if v.Fingerprint() == base.Fingerprint() {
			t.Fatalf("variant %d: expected different fingerprint", i)
		}
	}
}
