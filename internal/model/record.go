// Package model defines the records, uploads and errors shared across the console.
package model

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

type UserID string

// Record is a backend entity as decoded from JSON. Keys the console does not know
// about are carried through untouched.
type Record map[string]any

// ServerFields are assigned by the backend and never sent back on submit.
var ServerFields = []string{"_id", "createdAt", "updatedAt", "__v"}

func (r Record) ID() string {
	if id, ok := r["_id"]; ok {
		return stringify(id)
	}
	if id, ok := r["id"]; ok {
		return stringify(id)
	}
	return ""
}

func (r Record) Str(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

func (r Record) Bool(key string) bool {
	switch v := r[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

func (r Record) List(key string) []any {
	v, _ := r[key].([]any)
	return v
}

// Title picks the first human readable label a record carries.
func (r Record) Title() string {
	for _, k := range []string{"title", "name", "question", "fullName", "email"} {
		if s := r.Str(k); s != "" {
			return s
		}
	}
	return r.ID()
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

// Without returns a copy of r minus the given keys.
func (r Record) Without(keys ...string) Record {
	out := r.Clone()
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// SortedKeys returns the record keys in lexical order.
func (r Record) SortedKeys() []string {
	return slices.Sorted(maps.Keys(r))
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case Record:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// Stringify renders a decoded JSON value the way form inputs expect it.
func Stringify(v any) string {
	return stringify(v)
}
