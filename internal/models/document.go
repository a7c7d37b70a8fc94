package models

import "encoding/json"

// Document is a generic entity payload: a mapping of named fields to scalar
// or nested values, shaped exactly like the JSON that crosses the remote
// boundary. Values follow encoding/json conventions (string, float64, bool,
// nil, map[string]any, []any).
type Document map[string]any

// Clone returns a deep copy by round-tripping through JSON. Documents are
// JSON-shaped by construction, so the round trip is lossless.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		// Documents come from JSON or from the typed inputs below; neither
		// can produce an unmarshalable value.
		panic(err)
	}
	var out Document
	if err := json.Unmarshal(b, &out); err != nil {
		panic(err)
	}
	return out
}

// StringField returns the named field as a string, or "" when absent or of
// another type.
func (d Document) StringField(name string) string {
	s, _ := d[name].(string)
	return s
}
