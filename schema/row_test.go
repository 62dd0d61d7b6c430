package schema

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRowMarshalKeepsColumnOrder(t *testing.T) {
	row := Row{{Key: "zeta", Value: "1"}, {Key: "alpha", Value: "two"}}
	data, err := json.Marshal(row)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"zeta":"1","alpha":"two"}` {
		t.Fatalf("unexpected encoding %s", data)
	}
	var decoded Row
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(decoded, row) {
		t.Fatalf("row mismatch: %#v", decoded)
	}
}

func TestRowUnmarshalRejectsNonObject(t *testing.T) {
	var row Row
	if err := json.Unmarshal([]byte(`["a"]`), &row); err == nil {
		t.Fatalf("expected error for array")
	}
	if err := json.Unmarshal([]byte(`{"a":1}`), &row); err == nil {
		t.Fatalf("expected error for non-string value")
	}
}

func TestItemOmitsEmptyRowData(t *testing.T) {
	data, err := json.Marshal(Item{ID: "a.txt:full", Content: "hi", Line: 0})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["rowData"]; ok {
		t.Fatalf("expected rowData to be omitted, got %s", data)
	}
	row := Row{{Key: "a", Value: "b"}}
	if v, ok := row.Get("a"); !ok || v != "b" {
		t.Fatalf("Get(a) = %q, %v", v, ok)
	}
	if !reflect.DeepEqual(row.Keys(), []string{"a"}) {
		t.Fatalf("unexpected keys %#v", row.Keys())
	}
}
