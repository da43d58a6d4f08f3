package editor

import (
	"context"
	"fmt"
	"net/url"

	"github.com/debemdeboas/backoffice/internal/api"
	"github.com/debemdeboas/backoffice/internal/form"
	"github.com/debemdeboas/backoffice/internal/listedit"
	"github.com/debemdeboas/backoffice/internal/model"
)

// FormView is what the form template renders for one session.
type FormView struct {
	DraftID  DraftID
	Resource string
	Title    string
	RecordID string
	State    string

	Scalars     []ScalarView
	Collections []CollectionView
}

func (v FormView) Editing() bool {
	return v.RecordID != ""
}

type Option struct {
	Value string
	Label string
}

type ScalarView struct {
	DraftID   DraftID
	Name      string
	Label     string
	Kind      string
	Value     string
	Checked   bool
	Required  bool
	Options   []Option
	Uploading bool
	Invalid   string
}

type CollectionView struct {
	DraftID  DraftID
	Name     string
	Label    string
	Record   bool
	HasImage bool
	Entries  []EntryView
}

type EntryView struct {
	ID        listedit.EntryID
	Index     int
	First     bool
	Last      bool
	Prev      int
	Next      int
	Text      string
	Fields    []FieldValue
	Uploading bool
}

type FieldValue struct {
	Name  string
	Value string
	Image bool
}

// OptionSource lists the records offered by a choice field.
type OptionSource interface {
	List(ctx context.Context, res api.Resource, query url.Values) ([]model.Record, error)
}

func buildForm(ctx context.Context, s *Session, options OptionSource) FormView {
	ctrl := s.Form
	schema := ctrl.Schema()
	v := FormView{
		DraftID:  s.ID,
		Resource: schema.Resource.Name,
		Title:    schema.Title,
		RecordID: ctrl.RecordID(),
		State:    ctrl.State().String(),
	}
	for _, f := range schema.Scalars {
		v.Scalars = append(v.Scalars, buildScalar(ctx, s, f, options))
	}
	for _, f := range schema.Collections {
		cv, err := buildCollection(s, f.Name)
		if err != nil {
			editorLogger.Error().Err(err).Str("draft_id", string(s.ID)).Msg("Failed to build collection view")
			continue
		}
		v.Collections = append(v.Collections, cv)
	}
	return v
}

func buildScalar(ctx context.Context, s *Session, f form.ScalarField, options OptionSource) ScalarView {
	value := s.Form.Scalar(f.Name)
	v := ScalarView{
		DraftID:  s.ID,
		Name:     f.Name,
		Label:    f.Label,
		Kind:     f.Kind.String(),
		Value:    model.Stringify(value),
		Required: f.Required,
	}
	if b, ok := value.(bool); ok {
		v.Checked = b
	}
	if f.Kind == form.Image {
		v.Uploading = s.Form.Uploading(f.Name)
	}
	if f.Kind == form.Choice {
		v.Options = choices(ctx, f, options)
	}
	return v
}

func choices(ctx context.Context, f form.ScalarField, options OptionSource) []Option {
	var out []Option
	for _, o := range f.Options {
		out = append(out, Option{Value: o, Label: o})
	}
	if f.OptionsFrom == "" || options == nil {
		return out
	}
	res, ok := api.Lookup(f.OptionsFrom)
	if !ok {
		return out
	}
	recs, err := options.List(ctx, res, nil)
	if err != nil {
		editorLogger.Warn().Err(err).Str("field", f.Name).Msg("Failed to load choices")
		return out
	}
	for _, r := range recs {
		out = append(out, Option{Value: r.ID(), Label: r.Title()})
	}
	return out
}

func buildCollection(s *Session, name string) (CollectionView, error) {
	field, ok := s.Form.Schema().Collection(name)
	if !ok {
		return CollectionView{}, fmt.Errorf("%w: collection %q", listedit.ErrUnknownField, name)
	}
	ed, err := s.Form.Editor(name)
	if err != nil {
		return CollectionView{}, err
	}

	coll := ed.Collection()
	v := CollectionView{
		DraftID:  s.ID,
		Name:     field.Name,
		Label:    field.Label,
		Record:   field.Shape.Kind == listedit.Record,
		HasImage: field.Shape.HasImage(),
	}
	entries := coll.Entries()
	for i, e := range entries {
		ev := EntryView{
			ID:    e.ID,
			Index: i,
			First: i == 0,
			Last:  i == len(entries)-1,
			Prev:  i - 1,
			Next:  i + 1,
			Text:  e.Text,
		}
		for _, name := range field.Shape.Fields {
			ev.Fields = append(ev.Fields, FieldValue{Name: name, Value: e.Fields[name], Image: name == listedit.ImageField})
		}
		if v.HasImage {
			ev.Uploading = ed.UploadingID(e.ID, listedit.ImageField)
		}
		v.Entries = append(v.Entries, ev)
	}
	return v, nil
}
