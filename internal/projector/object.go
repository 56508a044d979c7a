package projector

import (
	"bytes"

	json "github.com/goccy/go-json"
)

// Object is a JSON object that marshals its keys in insertion order.
type Object struct {
	keys   []string
	values map[string]any
}

func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set adds or replaces key. A replaced key keeps its original position.
func (o *Object) Set(key string, value any) {
	if o.values == nil {
		o.values = make(map[string]any)
	}
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

func (o *Object) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

func (o *Object) Keys() []string {
	return append([]string(nil), o.keys...)
}

func (o *Object) Len() int { return len(o.keys) }

func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, k, o.values[k]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	kb, err := json.Marshal(key)
	if err != nil {
		return err
	}
	vb, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(kb)
	buf.WriteByte(':')
	buf.Write(vb)
	return nil
}

// Request is the outbound closing-cost calculation payload. The session id is
// attached by the caller and always marshals first.
type Request struct {
	SessionID string
	Object
}

func (r *Request) MarshalJSON() ([]byte, error) {
	body, err := r.Object.MarshalJSON()
	if err != nil {
		return nil, err
	}
	if r.SessionID == "" {
		return body, nil
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeMember(&buf, "session_id", r.SessionID); err != nil {
		return nil, err
	}
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}
