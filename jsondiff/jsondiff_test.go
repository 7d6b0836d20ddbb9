package jsondiff

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDiffApply(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		ops  int
	}{
		{name: "equal", from: `{"a":1,"b":[1,2]}`, to: `{"b":[1,2],"a":1}`, ops: 0},
		{name: "scalar", from: `{"a":1}`, to: `{"a":2}`, ops: 1},
		{name: "add key", from: `{"a":1}`, to: `{"a":1,"b":{"c":null}}`, ops: 1},
		{name: "remove key", from: `{"a":1,"b":2}`, to: `{"b":2}`, ops: 1},
		{name: "to null", from: `{"data":[[1]]}`, to: `{"data":null}`, ops: 1},
		{name: "from null", from: `{"data":null}`, to: `{"data":[[1]]}`, ops: 1},
		{name: "escaped keys", from: `{"a/b":1,"c~d":2}`, to: `{"a/b":3,"c~d":4}`, ops: 2},
		{name: "insert middle", from: `[1,2,3,4,5]`, to: `[1,2,9,3,4,5]`, ops: 1},
		{name: "remove middle", from: `[1,2,3,4,5]`, to: `[1,2,4,5]`, ops: 1},
		{name: "replace element", from: `[1,2,3]`, to: `[1,7,3]`, ops: 1},
		{name: "grow and shrink", from: `[1,2,3]`, to: `[4,5]`, ops: 3},
		{name: "append", from: `[]`, to: `[1,2]`, ops: 2},
		{name: "nested matrix", from: `[[1,2],[3,4]]`, to: `[[1,2],[3,5]]`, ops: 1},
		{name: "type change", from: `{"a":[1]}`, to: `{"a":{"b":1}}`, ops: 1},
		{
			name: "keyed reorder",
			from: `[{"uuid":"a","v":1},{"uuid":"b","v":2},{"uuid":"c","v":3}]`,
			to:   `[{"uuid":"a","v":1},{"uuid":"c","v":4}]`,
			ops:  2,
		},
		{
			name: "keyed insert",
			from: `[{"uuid":"a","v":1},{"uuid":"b","v":2}]`,
			to:   `[{"uuid":"x","v":0},{"uuid":"a","v":1},{"uuid":"b","v":3}]`,
			ops:  2,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// documents are wrapped so that every test patches below the root
			from, to := `{"v":`+tc.from+`}`, `{"v":`+tc.to+`}`
			ops, err := DiffOps([]byte(from), []byte(to))
			if err != nil {
				t.Fatal(err)
			}
			if len(ops) != tc.ops {
				t.Errorf("expected %d ops, got %d: %+v", tc.ops, len(ops), ops)
			}
			patch, err := Diff([]byte(from), []byte(to))
			if err != nil {
				t.Fatal(err)
			}
			got, err := Apply([]byte(from), patch)
			if err != nil {
				t.Fatalf("apply %s: %v", patch, err)
			}
			if !Equal(got, []byte(to)) {
				t.Errorf("apply %s to %s gave %s, want %s", patch, from, got, to)
			}
		})
	}
}

func TestOpEncoding(t *testing.T) {
	patch, err := Diff([]byte(`{"a/b":[1,2],"n":{"x":1}}`), []byte(`{"a/b":[1],"n":{"x":null}}`))
	if err != nil {
		t.Fatal(err)
	}
	var got []map[string]any
	if err := json.Unmarshal(patch, &got); err != nil {
		t.Fatal(err)
	}
	want := []map[string]any{
		{"op": "remove", "path": "/a~1b/1"},
		{"op": "replace", "path": "/n/x", "value": nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestEmptyDiff(t *testing.T) {
	patch, err := Diff([]byte(`{"a":[1,2.5]}`), []byte(`{"a":[1.0,2.5]}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(patch) != "[]" {
		t.Errorf("expected empty patch, got %s", patch)
	}
}

func TestApplyErrors(t *testing.T) {
	if _, err := Apply([]byte(`{}`), []byte(`{`)); !errors.Is(err, ErrApply) {
		t.Errorf("expected ErrApply for bad patch, got %v", err)
	}
	if _, err := Apply([]byte(`{"a":1}`), []byte(`[{"op":"remove","path":"/b/c"}]`)); !errors.Is(err, ErrApply) {
		t.Errorf("expected ErrApply for missing path, got %v", err)
	}
}

func TestEscapePath(t *testing.T) {
	for in, want := range map[string]string{"a": "a", "a/b": "a~1b", "~": "~0", "~/": "~0~1"} {
		if got := EscapePath(in); got != want {
			t.Errorf("EscapePath(%q) = %q, want %q", in, got, want)
		}
	}
}
