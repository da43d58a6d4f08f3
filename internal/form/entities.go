package form

import (
	"regexp"
	"strings"

	"github.com/debemdeboas/backoffice/internal/api"
	"github.com/debemdeboas/backoffice/internal/listedit"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/render"
)

var sectionShape = listedit.RecordShape("title", "content", "image")

var CategorySchema = &Schema{
	Resource: api.Categories,
	Title:    "Category",
	Scalars: []ScalarField{
		{Name: "title", Label: "Title", Kind: String, Required: true},
		{Name: "description", Label: "Description", Kind: Text},
		{Name: "image", Label: "Image", Kind: Image},
		{Name: "bannerImage", Label: "Banner image", Kind: Image},
	},
	Collections: []CollectionField{
		{Name: "sections", Label: "Sections", Shape: sectionShape},
	},
	Rules: []Rule{
		{Field: "title", Check: MinLength(3)},
		{Field: "description", Check: MinLength(10)},
	},
}

var ServiceSchema = &Schema{
	Resource: api.Services,
	Title:    "Service",
	Scalars: []ScalarField{
		{Name: "category", Label: "Category", Kind: Choice, Required: true, OptionsFrom: api.Categories.Name},
		{Name: "title", Label: "Title", Kind: String, Required: true},
		{Name: "summary", Label: "Summary", Kind: Text},
		{Name: "description", Label: "Description", Kind: Text},
		{Name: "image", Label: "Image", Kind: Image},
		{Name: "bannerImage", Label: "Banner image", Kind: Image},
		{Name: "benefitsImage", Label: "Benefits image", Kind: Image},
		{Name: "faqImage", Label: "FAQ image", Kind: Image},
		{Name: "faqSectionImage", Label: "FAQ section image", Kind: Image},
		{Name: "galleryEnabled", Label: "Show gallery", Kind: Bool},
		{Name: "metaTitle", Label: "Meta title", Kind: String},
		{Name: "metaDescription", Label: "Meta description", Kind: Text},
		{Name: "keywords", Label: "Keywords", Kind: String},
	},
	Collections: []CollectionField{
		{Name: "sections", Label: "Sections", Shape: sectionShape},
		{Name: "benefits", Label: "Benefits", Shape: listedit.ScalarShape()},
		{Name: "features", Label: "Features", Shape: listedit.RecordShape("title", "description")},
		{Name: "faqs", Label: "FAQs", Shape: listedit.RecordShape("question", "answer")},
		{Name: "gallery", Label: "Gallery", Shape: listedit.ScalarShape()},
	},
}

var JobTypes = []string{"Full-Time", "Part-Time", "Internship", "Contract"}

var JobSchema = &Schema{
	Resource: api.Jobs,
	Title:    "Job",
	Scalars: []ScalarField{
		{Name: "title", Label: "Title", Kind: String, Required: true},
		{Name: "type", Label: "Type", Kind: Choice, Required: true, Options: JobTypes, Default: JobTypes[0]},
		{Name: "location", Label: "Location", Kind: String, Required: true},
		{Name: "minQualification", Label: "Minimum qualification", Kind: String},
		{Name: "openings", Label: "Openings", Kind: Number, Default: float64(1)},
		{Name: "experience", Label: "Experience", Kind: String},
		{Name: "timing", Label: "Timing", Kind: String},
		{Name: "shift", Label: "Shift", Kind: String},
		{Name: "salary", Label: "Salary", Kind: String},
		{Name: "description", Label: "Description", Kind: Text},
	},
	Collections: []CollectionField{
		{Name: "skills", Label: "Skills", Shape: listedit.ScalarShape()},
	},
	Rules: []Rule{
		{Field: "type", Check: OneOf(JobTypes...)},
		{Field: "openings", Check: Positive()},
		{Field: "skills", Check: NonEmpty()},
		{Field: "description", Check: MinLength(30)},
	},
	Prepare: func(payload model.Record) {
		dropBlankEntries(payload, "skills")
	},
}

var BlogCategories = []string{"Automation", "Networking", "Business", "Information", "Education"}

var BlogSchema = &Schema{
	Resource: api.Blogs,
	Title:    "Blog post",
	Scalars: []ScalarField{
		{Name: "title", Label: "Title", Kind: String, Required: true},
		{Name: "subTitle", Label: "Subtitle", Kind: String},
		{Name: "category", Label: "Category", Kind: Choice, Required: true, Options: BlogCategories},
		{Name: "description", Label: "Content", Kind: Markdown},
		{Name: "image", Label: "Cover image", Kind: Image},
		{Name: "isPublished", Label: "Published", Kind: Bool},
		{Name: "author", Label: "Author", Kind: String, Default: "Admin"},
	},
	Rules: []Rule{
		{Field: "category", Check: OneOf(BlogCategories...)},
	},
	Prepare: func(payload model.Record) {
		payload["slug"] = Slugify(payload.Str("title"))
		payload["description"] = render.PublishHTML(payload.Str("description"))
	},
}

// Schemas indexes every editable entity by resource name.
var Schemas = map[string]*Schema{
	CategorySchema.Resource.Name: CategorySchema,
	ServiceSchema.Resource.Name:  ServiceSchema,
	JobSchema.Resource.Name:      JobSchema,
	BlogSchema.Resource.Name:     BlogSchema,
}

// dropBlankEntries removes blank entries of a scalar collection so empty rows
// left in the editor are never sent.
func dropBlankEntries(payload model.Record, field string) {
	values, ok := payload[field].([]any)
	if !ok {
		return
	}
	kept := make([]any, 0, len(values))
	for _, v := range values {
		if !isBlank(v) {
			kept = append(kept, v)
		}
	}
	payload[field] = kept
}

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases s, turns every run of other characters into a dash and trims
// dashes at both ends.
func Slugify(s string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
