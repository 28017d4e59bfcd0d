package mqtt

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// Field is one key/value pair of a JSON object payload.
type Field struct {
	Key   string
	Value any
}

// Fields is a JSON object that keeps its keys in the order given.
type Fields []Field

// MarshalJSON encodes f as an object with keys in slice order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, kv := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(kv.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(kv.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// stamped returns a copy of f with the timestamp field set. An existing
// timestamp keeps its position; otherwise it is appended last.
func (f Fields) stamped(now time.Time) Fields {
	ts := Field{Key: "timestamp", Value: now.Format(timestampLayout)}
	out := make(Fields, len(f), len(f)+1)
	copy(out, f)
	for i := range out {
		if out[i].Key == ts.Key {
			out[i] = ts
			return out
		}
	}
	return append(out, ts)
}

func fieldsFromMap(m map[string]any) Fields {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make(Fields, 0, len(keys))
	for _, k := range keys {
		out = append(out, Field{Key: k, Value: m[k]})
	}
	return out
}
