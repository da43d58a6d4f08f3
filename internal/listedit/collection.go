package listedit

import (
	"fmt"
	"slices"

	"github.com/debemdeboas/backoffice/internal/model"
)

// Collection is an ordered, immutable list of entries sharing one Shape.
type Collection struct {
	shape   Shape
	entries []Entry
}

func New(shape Shape) Collection {
	return Collection{shape: shape}
}

// FromValues hydrates a collection from a decoded JSON array.
func FromValues(shape Shape, values []any) (Collection, error) {
	c := Collection{shape: shape, entries: make([]Entry, 0, len(values))}
	for i, v := range values {
		e, err := shape.entryFromValue(v)
		if err != nil {
			return Collection{}, fmt.Errorf("entry %d: %w", i, err)
		}
		c.entries = append(c.entries, e)
	}
	return c, nil
}

func (c Collection) Shape() Shape {
	return c.shape
}

func (c Collection) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the entries in order.
func (c Collection) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.clone()
	}
	return out
}

func (c Collection) At(index int) (Entry, error) {
	if err := c.checkIndex(index); err != nil {
		return Entry{}, err
	}
	return c.entries[index].clone(), nil
}

// IndexOf returns the current position of id, or -1.
func (c Collection) IndexOf(id EntryID) int {
	return slices.IndexFunc(c.entries, func(e Entry) bool { return e.ID == id })
}

// Values renders the collection as the JSON array the backend expects.
func (c Collection) Values() []any {
	out := make([]any, len(c.entries))
	for i, e := range c.entries {
		out[i] = c.shape.value(e)
	}
	return out
}

// Add appends a copy of template with a fresh identity.
func (c Collection) Add(template Entry) (Collection, error) {
	e, err := c.shape.conform(template)
	if err != nil {
		return c, err
	}
	next := c.copy(1)
	next.entries = append(next.entries, e)
	return next, nil
}

// AddEmpty appends the shape's empty template.
func (c Collection) AddEmpty() (Collection, error) {
	return c.Add(c.shape.Template())
}

// SetField replaces one field of the entry at index. Scalar collections ignore field.
func (c Collection) SetField(index int, field, value string) (Collection, error) {
	if err := c.checkIndex(index); err != nil {
		return c, err
	}
	if c.shape.Kind == Record && !c.shape.Declares(field) {
		return c, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	next := c.copy(0)
	e := &next.entries[index]
	if c.shape.Kind == Scalar {
		e.Text = value
	} else {
		e.Fields[field] = value
	}
	return next, nil
}

func (c Collection) SetFieldByID(id EntryID, field, value string) (Collection, error) {
	index := c.IndexOf(id)
	if index < 0 {
		return c, fmt.Errorf("%w: %s", ErrEntryGone, id)
	}
	return c.SetField(index, field, value)
}

// Remove excises the entry at index; later entries shift down by one.
func (c Collection) Remove(index int) (Collection, error) {
	if err := c.checkIndex(index); err != nil {
		return c, err
	}
	next := c.copy(0)
	next.entries = slices.Delete(next.entries, index, index+1)
	return next, nil
}

func (c Collection) RemoveByID(id EntryID) (Collection, error) {
	index := c.IndexOf(id)
	if index < 0 {
		return c, fmt.Errorf("%w: %s", ErrEntryGone, id)
	}
	return c.Remove(index)
}

// Move relocates the entry at from so that it ends up at index to.
func (c Collection) Move(from, to int) (Collection, error) {
	if err := c.checkIndex(from); err != nil {
		return c, err
	}
	if err := c.checkIndex(to); err != nil {
		return c, err
	}
	next := c.copy(0)
	e := next.entries[from]
	next.entries = slices.Delete(next.entries, from, from+1)
	next.entries = slices.Insert(next.entries, to, e)
	return next, nil
}

// MoveByID moves the entry id to index to.
func (c Collection) MoveByID(id EntryID, to int) (Collection, error) {
	from := c.IndexOf(id)
	if from < 0 {
		return c, fmt.Errorf("%w: %s", ErrEntryGone, id)
	}
	return c.Move(from, to)
}

func (c Collection) checkIndex(index int) error {
	if index < 0 || index >= len(c.entries) {
		return fmt.Errorf("%w: %d not in [0, %d)", model.ErrOutOfRange, index, len(c.entries))
	}
	return nil
}

// copy deep-copies the entries, reserving room for extra more.
func (c Collection) copy(extra int) Collection {
	next := Collection{shape: c.shape, entries: make([]Entry, len(c.entries), len(c.entries)+extra)}
	for i, e := range c.entries {
		next.entries[i] = e.clone()
	}
	return next
}
