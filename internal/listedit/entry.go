// Package listedit edits ordered collections of scalar or record entries.
//
// A Collection is immutable: every operation returns a fresh copy and leaves the
// receiver untouched. Entries carry a stable EntryID so asynchronous work such as
// image uploads can find its target again after the list was reordered.
package listedit

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"

	"github.com/debemdeboas/backoffice/internal/model"
)

var (
	ErrShapeMismatch = errors.New("entry does not match collection shape")
	ErrUnknownField  = errors.New("unknown field")
	ErrUploadPending = errors.New("an upload is already running for this field")
	ErrEntryGone     = errors.New("entry no longer exists")
)

type EntryID string

func NewEntryID() EntryID {
	return EntryID(uuid.NewString())
}

type Kind int

const (
	// Scalar entries hold a single string.
	Scalar Kind = iota
	// Record entries map declared field names to strings.
	Record
)

func (k Kind) String() string {
	if k == Record {
		return "record"
	}
	return "scalar"
}

// ImageField is the conventional name of a record field holding an image URL.
const ImageField = "image"

// Shape declares what entries of a collection look like.
type Shape struct {
	Kind   Kind
	Fields []string
}

func ScalarShape() Shape {
	return Shape{Kind: Scalar}
}

func RecordShape(fields ...string) Shape {
	return Shape{Kind: Record, Fields: fields}
}

func (s Shape) Declares(field string) bool {
	return slices.Contains(s.Fields, field)
}

// HasImage reports whether entries of this shape carry an image URL.
func (s Shape) HasImage() bool {
	return s.Kind == Record && s.Declares(ImageField)
}

// Template returns an empty entry of this shape, ready for Add.
func (s Shape) Template() Entry {
	if s.Kind == Scalar {
		return Entry{}
	}
	fields := make(map[string]string, len(s.Fields))
	for _, f := range s.Fields {
		fields[f] = ""
	}
	return Entry{Fields: fields}
}

// Entry is one element of a collection. Text is used by scalar entries, Fields by
// record entries. Extra keeps keys of a hydrated record that the shape does not
// declare, such as a sub-document _id.
type Entry struct {
	ID     EntryID
	Text   string
	Fields map[string]string
	Extra  map[string]any
}

// Get returns the value of field, or Text for scalar entries.
func (e Entry) Get(field string) string {
	if e.Fields == nil {
		return e.Text
	}
	return e.Fields[field]
}

func (e Entry) clone() Entry {
	out := Entry{ID: e.ID, Text: e.Text}
	if e.Fields != nil {
		out.Fields = maps.Clone(e.Fields)
	}
	if e.Extra != nil {
		out.Extra = map[string]any(model.Record(e.Extra).Clone())
	}
	return out
}

// conform checks tpl against s and returns a copy with a fresh identity.
func (s Shape) conform(tpl Entry) (Entry, error) {
	switch s.Kind {
	case Scalar:
		if tpl.Fields != nil {
			return Entry{}, fmt.Errorf("%w: scalar collection got record fields", ErrShapeMismatch)
		}
	case Record:
		if len(tpl.Fields) != len(s.Fields) {
			return Entry{}, fmt.Errorf("%w: want fields %v", ErrShapeMismatch, s.Fields)
		}
		for _, f := range s.Fields {
			if _, ok := tpl.Fields[f]; !ok {
				return Entry{}, fmt.Errorf("%w: missing field %q", ErrShapeMismatch, f)
			}
		}
	}
	e := tpl.clone()
	e.ID = NewEntryID()
	return e, nil
}

// entryFromValue builds an entry out of a decoded JSON element.
func (s Shape) entryFromValue(v any) (Entry, error) {
	if s.Kind == Scalar {
		switch t := v.(type) {
		case map[string]any, []any:
			return Entry{}, fmt.Errorf("%w: expected a plain value, got %T", ErrShapeMismatch, v)
		default:
			return Entry{ID: NewEntryID(), Text: model.Stringify(t)}, nil
		}
	}

	m, ok := v.(map[string]any)
	if !ok {
		if r, isRecord := v.(model.Record); isRecord {
			m = r
		} else {
			return Entry{}, fmt.Errorf("%w: expected an object, got %T", ErrShapeMismatch, v)
		}
	}

	e := Entry{ID: NewEntryID(), Fields: make(map[string]string, len(s.Fields))}
	for _, f := range s.Fields {
		e.Fields[f] = model.Stringify(m[f])
	}
	for k, val := range m {
		if s.Declares(k) {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		e.Extra[k] = model.Record{k: val}.Clone()[k]
	}
	return e, nil
}

// value renders the entry as it is sent to the backend.
func (s Shape) value(e Entry) any {
	if s.Kind == Scalar {
		return e.Text
	}
	out := make(map[string]any, len(e.Fields)+len(e.Extra))
	for k, v := range model.Record(e.Extra).Clone() {
		out[k] = v
	}
	for _, f := range s.Fields {
		out[f] = e.Fields[f]
	}
	return out
}
