package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Dependencies maps prerequisite identifiers to version ranges such as
// "[15.0,16.0)". Keys are unique and keep insertion order so the generated
// JSON is reproducible.
type Dependencies struct {
	keys   []string
	ranges map[string]string
}

// NewDependencies returns an empty dependency set.
func NewDependencies() Dependencies {
	return Dependencies{ranges: make(map[string]string)}
}

// Set adds id or replaces its range in place.
func (d *Dependencies) Set(id, versionRange string) {
	if d.ranges == nil {
		d.ranges = make(map[string]string)
	}
	if _, ok := d.ranges[id]; !ok {
		d.keys = append(d.keys, id)
	}
	d.ranges[id] = versionRange
}

// Get returns the range recorded for id.
func (d Dependencies) Get(id string) (string, bool) {
	r, ok := d.ranges[id]
	return r, ok
}

// Has reports whether id is present.
func (d Dependencies) Has(id string) bool {
	_, ok := d.ranges[id]
	return ok
}

// Len returns the number of entries.
func (d Dependencies) Len() int {
	return len(d.keys)
}

// Keys returns the identifiers in insertion order.
func (d Dependencies) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Clone returns an independent copy.
func (d Dependencies) Clone() Dependencies {
	out := NewDependencies()
	for _, k := range d.keys {
		out.Set(k, d.ranges[k])
	}
	return out
}

// MarshalJSON encodes the set as an object in insertion order.
func (d Dependencies) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, k); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, d.ranges[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, preserving key order.
func (d *Dependencies) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("dependencies: expected object, got %v", tok)
	}
	*d = NewDependencies()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("dependencies: unexpected key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("dependencies: value for %q: %w", key, err)
		}
		d.Set(key, value)
	}
	_, err = dec.Token()
	return err
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
