package form

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/debemdeboas/backoffice/internal/api"
	"github.com/debemdeboas/backoffice/internal/listedit"
	"github.com/debemdeboas/backoffice/internal/model"
)

type Kind int

const (
	String Kind = iota
	Text
	Number
	Bool
	Image
	Choice
	// Markdown is a Text field rendered with a live preview.
	Markdown
)

func (k Kind) String() string {
	return [...]string{"string", "text", "number", "bool", "image", "choice", "markdown"}[k]
}

// ScalarField declares one non-collection field of an entity.
type ScalarField struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
	Default  any
	// Options lists the allowed values of a Choice field.
	Options []string
	// OptionsFrom names a resource whose records are the choices, by id.
	OptionsFrom string
}

func (f ScalarField) zero() any {
	if f.Default != nil {
		return f.Default
	}
	switch f.Kind {
	case Number:
		return float64(0)
	case Bool:
		return false
	default:
		return ""
	}
}

// parse converts raw form input into the value stored in the draft.
func (f ScalarField) parse(raw string) (any, error) {
	switch f.Kind {
	case Number:
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return f.zero(), nil
		}
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not a number", f.Name, raw)
		}
		return n, nil
	case Bool:
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "on", "true", "1", "yes":
			return true, nil
		default:
			return false, nil
		}
	default:
		return raw, nil
	}
}

// CollectionField declares a list-valued field edited through listedit.
type CollectionField struct {
	Name  string
	Label string
	Shape listedit.Shape
}

// Check returns a message when v is not acceptable, or "" when it is. v is a
// scalar value or, for collections, the slice sent to the backend.
type Check func(v any) string

type Rule struct {
	Field string
	Check Check
}

// NonEmpty rejects blank strings and lists without a single non-blank element.
func NonEmpty() Check {
	return func(v any) string {
		if isBlank(v) {
			return "must not be empty"
		}
		return ""
	}
}

// MinLength rejects strings shorter than n characters once trimmed.
func MinLength(n int) Check {
	return func(v any) string {
		s, _ := v.(string)
		if utf8.RuneCountInString(strings.TrimSpace(s)) < n {
			return fmt.Sprintf("must be at least %d characters", n)
		}
		return ""
	}
}

// OneOf rejects values outside options.
func OneOf(options ...string) Check {
	return func(v any) string {
		s, _ := v.(string)
		if !slices.Contains(options, s) {
			return "must be one of " + strings.Join(options, ", ")
		}
		return ""
	}
}

// Positive rejects numbers lower than one.
func Positive() Check {
	return func(v any) string {
		if n, ok := v.(float64); !ok || n < 1 {
			return "must be at least 1"
		}
		return ""
	}
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		for _, e := range t {
			if !isBlank(e) {
				return false
			}
		}
		return true
	case map[string]any:
		for _, e := range t {
			if !isBlank(e) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Schema describes an editable entity: its backend resource, its fields and the
// rules checked before submission.
type Schema struct {
	Resource    api.Resource
	Title       string
	Scalars     []ScalarField
	Collections []CollectionField
	Rules       []Rule
	// Prepare adjusts the outgoing payload, for instance to derive fields.
	Prepare func(payload model.Record)
}

func (s *Schema) Scalar(name string) (ScalarField, bool) {
	i := slices.IndexFunc(s.Scalars, func(f ScalarField) bool { return f.Name == name })
	if i < 0 {
		return ScalarField{}, false
	}
	return s.Scalars[i], true
}

func (s *Schema) Collection(name string) (CollectionField, bool) {
	i := slices.IndexFunc(s.Collections, func(f CollectionField) bool { return f.Name == name })
	if i < 0 {
		return CollectionField{}, false
	}
	return s.Collections[i], true
}

func (s *Schema) declares(name string) bool {
	_, scalar := s.Scalar(name)
	_, coll := s.Collection(name)
	return scalar || coll
}

// Validate checks payload against required fields and rules, reporting every
// failure at once.
func (s *Schema) Validate(payload model.Record) *model.ValidationError {
	var errs []model.FieldError
	failed := map[string]bool{}
	for _, f := range s.Scalars {
		if f.Required && f.Kind != Bool && isBlank(payload[f.Name]) {
			errs = append(errs, model.FieldError{Field: f.Name, Message: "is required"})
			failed[f.Name] = true
		}
	}
	for _, r := range s.Rules {
		if failed[r.Field] {
			continue
		}
		if msg := r.Check(payload[r.Field]); msg != "" {
			errs = append(errs, model.FieldError{Field: r.Field, Message: msg})
			failed[r.Field] = true
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return model.NewValidationErrors(errs)
}
