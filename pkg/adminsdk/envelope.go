package adminsdk

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// object is a decoded JSON object whose fields are looked up by alias.
type object map[string]json.RawMessage

func decodeObject(raw []byte) object {
	var o object
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil
	}
	return o
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// lookup returns the first non-null field among aliases.
func (o object) lookup(aliases ...string) (json.RawMessage, bool) {
	for _, a := range aliases {
		raw, ok := o[a]
		if !ok || isNull(raw) {
			continue
		}
		return raw, true
	}
	return nil, false
}

func (o object) str(aliases ...string) string {
	for _, a := range aliases {
		raw, ok := o.lookup(a)
		if !ok {
			continue
		}
		if s, ok := rawString(raw); ok && s != "" {
			return s
		}
	}
	return ""
}

func (o object) flag(aliases ...string) (value, present bool) {
	for _, a := range aliases {
		raw, ok := o.lookup(a)
		if !ok {
			continue
		}
		if b, ok := rawBool(raw); ok {
			return b, true
		}
	}
	return false, false
}

func (o object) integer(aliases ...string) (int64, bool) {
	for _, a := range aliases {
		raw, ok := o.lookup(a)
		if !ok {
			continue
		}
		if n, ok := rawInt(raw); ok {
			return n, true
		}
	}
	return 0, false
}

func (o object) child(aliases ...string) object {
	for _, a := range aliases {
		raw, ok := o.lookup(a)
		if !ok {
			continue
		}
		if c := decodeObject(raw); c != nil {
			return c
		}
	}
	return nil
}

// list reads an array of strings. Array elements that are objects
// contribute their message or code field.
func (o object) list(aliases ...string) []string {
	raw, ok := o.lookup(aliases...)
	if !ok {
		return nil
	}
	return rawStrings(raw)
}

func rawString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func rawBool(raw json.RawMessage) (bool, bool) {
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, true
	}
	if s, ok := rawString(raw); ok {
		if b, err := strconv.ParseBool(s); err == nil {
			return b, true
		}
	}
	return false, false
}

func rawInt(raw json.RawMessage) (int64, bool) {
	s, ok := rawString(raw)
	if !ok {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f), true
	}
	return 0, false
}

func rawStrings(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := rawString(item); ok {
			if s != "" {
				out = append(out, s)
			}
			continue
		}
		if o := decodeObject(item); o != nil {
			if s := o.str("message", "code", "key"); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// envelope is a response body viewed as layers probed in order: the nested
// data object first, then the top level.
type envelope []object

func parseEnvelope(body []byte) envelope {
	top := decodeObject(body)
	if top == nil {
		return nil
	}
	if data := top.child("data"); data != nil {
		return envelope{data, top}
	}
	return envelope{top}
}

func (e envelope) top() object {
	if len(e) == 0 {
		return nil
	}
	return e[len(e)-1]
}

func (e envelope) lookup(aliases ...string) (json.RawMessage, bool) {
	for _, o := range e {
		if raw, ok := o.lookup(aliases...); ok {
			return raw, true
		}
	}
	return nil, false
}

func (e envelope) str(aliases ...string) string {
	for _, o := range e {
		if s := o.str(aliases...); s != "" {
			return s
		}
	}
	return ""
}

func (e envelope) flag(aliases ...string) (value, present bool) {
	for _, o := range e {
		if v, ok := o.flag(aliases...); ok {
			return v, true
		}
	}
	return false, false
}

func (e envelope) integer(aliases ...string) (int64, bool) {
	for _, o := range e {
		if n, ok := o.integer(aliases...); ok {
			return n, true
		}
	}
	return 0, false
}

func (e envelope) object(aliases ...string) object {
	for _, o := range e {
		if c := o.child(aliases...); c != nil {
			return c
		}
	}
	return nil
}

func (e envelope) list(aliases ...string) []string {
	for _, o := range e {
		if s := o.list(aliases...); len(s) > 0 {
			return s
		}
	}
	return nil
}
