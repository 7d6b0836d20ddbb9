// Package jsondiff computes RFC 6902 JSON Patch documents between two JSON
// documents and applies them.
//
// Objects are compared key by key. Arrays are aligned with a longest common
// subsequence over their elements, as computed by go-diff, so that inserting
// or removing an element in the middle of a list produces one operation
// rather than a replacement of every following element. Elements which are
// objects carrying a "uuid" string are matched by that identity and diffed
// recursively when their contents differ.
package jsondiff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
	"github.com/signadot/scenesync/debug"
)

// KeyField names the object field used to match array elements.
const KeyField = "uuid"

// ErrApply is matched by every error returned by Apply.
var ErrApply = errors.New("patch application failed")

// Op is one RFC 6902 operation. Only add, remove and replace are produced.
type Op struct {
	Op    string
	Path  string
	Value any
}

func (o Op) MarshalJSON() ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	buf.WriteString(`{"op":`)
	d, _ := json.Marshal(o.Op)
	buf.Write(d)
	buf.WriteString(`,"path":`)
	d, _ = json.Marshal(o.Path)
	buf.Write(d)
	if o.Op != "remove" {
		// a null value is still a value
		d, err := json.Marshal(o.Value)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"value":`)
		buf.Write(d)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Diff returns the JSON encoded list of operations transforming from into
// to. Equal documents yield an empty list.
func Diff(from, to []byte) ([]byte, error) {
	ops, err := DiffOps(from, to)
	if err != nil {
		return nil, err
	}
	if ops == nil {
		ops = []Op{}
	}
	return json.Marshal(ops)
}

// DiffOps is Diff returning the operations unencoded.
func DiffOps(from, to []byte) ([]Op, error) {
	a, err := decode(from)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	b, err := decode(to)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	d := &differ{}
	d.value("", a, b)
	if debug.Diff() {
		debug.Logf("jsondiff: %d ops\n", len(d.ops))
	}
	return d.ops, nil
}

// DiffValues diffs two documents already decoded by encoding/json.
func DiffValues(from, to any) []Op {
	d := &differ{}
	d.value("", from, to)
	return d.ops
}

func decode(d []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(d))
	// keep numbers as written so replaced values round trip exactly
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Apply applies a JSON encoded list of operations to doc.
func Apply(doc, patch []byte) ([]byte, error) {
	p, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrApply, err)
	}
	res, err := p.Apply(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrApply, err)
	}
	return res, nil
}

// Equal reports whether two JSON documents are semantically equal.
func Equal(a, b []byte) bool {
	va, err := decode(a)
	if err != nil {
		return false
	}
	vb, err := decode(b)
	if err != nil {
		return false
	}
	return equal(va, vb)
}

// EscapePath escapes a reference token per RFC 6901.
func EscapePath(tok string) string {
	if !strings.ContainsAny(tok, "~/") {
		return tok
	}
	tok = strings.ReplaceAll(tok, "~", "~0")
	return strings.ReplaceAll(tok, "/", "~1")
}

type differ struct {
	ops []Op
}

func (d *differ) add(path string, v any)     { d.ops = append(d.ops, Op{Op: "add", Path: path, Value: v}) }
func (d *differ) remove(path string)         { d.ops = append(d.ops, Op{Op: "remove", Path: path}) }
func (d *differ) replace(path string, v any) { d.ops = append(d.ops, Op{Op: "replace", Path: path, Value: v}) }

func (d *differ) value(path string, a, b any) {
	switch x := a.(type) {
	case map[string]any:
		if y, ok := b.(map[string]any); ok {
			d.object(path, x, y)
			return
		}
	case []any:
		if y, ok := b.([]any); ok {
			d.array(path, x, y)
			return
		}
	default:
		if equal(a, b) {
			return
		}
	}
	d.replace(path, b)
}

func (d *differ) object(path string, a, b map[string]any) {
	for _, k := range sortedKeys(a) {
		if _, ok := b[k]; !ok {
			d.remove(path + "/" + EscapePath(k))
		}
	}
	for _, k := range sortedKeys(b) {
		p := path + "/" + EscapePath(k)
		av, ok := a[k]
		if !ok {
			d.add(p, b[k])
			continue
		}
		d.value(p, av, b[k])
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func (d *differ) array(path string, a, b []any) {
	ra, rb, ok := elementRunes(a, b)
	if !ok {
		d.replace(path, b)
		return
	}
	diffs := diffpatch.New().DiffMainRunes(ra, rb, false)
	// idx is the position in the array as patched so far
	idx, ai, bi := 0, 0, 0
	at := func(i int) string { return path + "/" + strconv.Itoa(i) }
	for i := 0; i < len(diffs); i++ {
		df := &diffs[i]
		n := len([]rune(df.Text))
		switch df.Type {
		case diffpatch.DiffEqual:
			for range n {
				// only keyed objects can differ under an equal rune
				if keyed(a[ai]) {
					d.value(at(idx), a[ai], b[bi])
				}
				idx, ai, bi = idx+1, ai+1, bi+1
			}
		case diffpatch.DiffDelete:
			m := 0
			if i+1 < len(diffs) && diffs[i+1].Type == diffpatch.DiffInsert {
				m = len([]rune(diffs[i+1].Text))
				i++
			}
			paired := min(n, m)
			for range paired {
				d.value(at(idx), a[ai], b[bi])
				idx, ai, bi = idx+1, ai+1, bi+1
			}
			for range n - paired {
				d.remove(at(idx))
				ai++
			}
			for range m - paired {
				d.add(at(idx), b[bi])
				idx, bi = idx+1, bi+1
			}
		case diffpatch.DiffInsert:
			for range n {
				d.add(at(idx), b[bi])
				idx, bi = idx+1, bi+1
			}
		}
	}
}

// elementRunes maps the elements of a and b to runes, equal elements to
// equal runes. Keyed objects map by their key alone. ok is false if there
// are more distinct elements than runes.
func elementRunes(a, b []any) (ra, rb []rune, ok bool) {
	m := map[string]rune{}
	next := rune(0)
	mapAll := func(vs []any) ([]rune, bool) {
		rs := make([]rune, len(vs))
		for i, v := range vs {
			k := elementKey(v)
			r, present := m[k]
			if !present {
				if next == 0xD800 {
					// surrogates do not survive conversion to string
					next = 0xE000
				}
				if next > 0x10FFFF {
					return nil, false
				}
				r = next
				m[k] = r
				next++
			}
			rs[i] = r
		}
		return rs, true
	}
	if ra, ok = mapAll(a); !ok {
		return nil, nil, false
	}
	if rb, ok = mapAll(b); !ok {
		return nil, nil, false
	}
	return ra, rb, true
}

func keyed(v any) bool {
	o, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, ok = o[KeyField].(string)
	return ok
}

func elementKey(v any) string {
	if keyed(v) {
		return "k" + v.(map[string]any)[KeyField].(string)
	}
	d, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("?%v", v)
	}
	return "v" + string(d)
}

func equal(a, b any) bool {
	if x, ok := a.(json.Number); ok {
		if y, ok := b.(json.Number); ok {
			if x == y {
				return true
			}
			fx, ex := x.Float64()
			fy, ey := y.Float64()
			return ex == nil && ey == nil && fx == fy
		}
	}
	switch a.(type) {
	case map[string]any, []any:
		if reflect.TypeOf(a) != reflect.TypeOf(b) {
			return false
		}
		// containers compare through their canonical encoding
		da, _ := json.Marshal(a)
		db, _ := json.Marshal(b)
		if bytes.Equal(da, db) {
			return true
		}
		return containerEqual(a, b)
	}
	return reflect.DeepEqual(a, b)
}

func containerEqual(a, b any) bool {
	switch x := a.(type) {
	case map[string]any:
		y := b.(map[string]any)
		if len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || !equal(v, w) {
				return false
			}
		}
		return true
	case []any:
		y := b.([]any)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !equal(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	return false
}
