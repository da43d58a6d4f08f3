package api

import (
	"net/http"
	"net/url"
	"strings"
)

// Resource describes how one backend collection is addressed. Empty paths mean the
// backend offers no such operation.
type Resource struct {
	Name string
	// ListKey and ItemKey name the envelope fields wrapping lists and single records.
	ListKey string
	ItemKey string

	ListPath   string
	GetPath    string
	CreatePath string
	UpdatePath string
	DeletePath string

	UpdateMethod string
	// Multipart resources are created and updated with multipart/form-data bodies.
	Multipart bool
}

var (
	Categories = Resource{
		Name:         "categories",
		ListKey:      "categories",
		ItemKey:      "category",
		ListPath:     "/categories",
		CreatePath:   "/categories",
		UpdatePath:   "/categories/{id}",
		DeletePath:   "/categories/{id}",
		UpdateMethod: http.MethodPut,
	}
	Services = Resource{
		Name:         "services",
		ListKey:      "services",
		ItemKey:      "service",
		ListPath:     "/services",
		GetPath:      "/services/{id}",
		CreatePath:   "/services",
		UpdatePath:   "/services/{id}",
		DeletePath:   "/services/{id}",
		UpdateMethod: http.MethodPut,
	}
	Blogs = Resource{
		Name:         "blogs",
		ListKey:      "blogs",
		ItemKey:      "blog",
		ListPath:     "/blogs/all",
		GetPath:      "/blogs/{id}",
		CreatePath:   "/blogs/add",
		UpdatePath:   "/blogs/update/{id}",
		DeletePath:   "/blogs/{id}",
		UpdateMethod: http.MethodPut,
		Multipart:    true,
	}
	Jobs = Resource{
		Name:       "jobs",
		ListKey:    "jobs",
		ItemKey:    "job",
		ListPath:   "/jobs",
		CreatePath: "/jobs",
		DeletePath: "/jobs/{id}",
	}
	Applications = Resource{
		Name:       "applications",
		ListKey:    "applications",
		ItemKey:    "application",
		ListPath:   "/jobs/{id}/applications",
		DeletePath: "/career/application/{id}",
	}
	ContactMessages = Resource{
		Name:     "contact-messages",
		ListKey:  "messages",
		ItemKey:  "message",
		ListPath: "/contact-messages",
	}
	DropdownServices = Resource{
		Name:       "dropdown-services",
		ListKey:    "services",
		ItemKey:    "service",
		ListPath:   "/dropdown-services",
		CreatePath: "/dropdown-services",
		DeletePath: "/dropdown-services/{id}",
	}
)

var resources = map[string]Resource{
	Categories.Name:       Categories,
	Services.Name:         Services,
	Blogs.Name:            Blogs,
	Jobs.Name:             Jobs,
	Applications.Name:     Applications,
	ContactMessages.Name:  ContactMessages,
	DropdownServices.Name: DropdownServices,
}

// Lookup finds a resource by name.
func Lookup(name string) (Resource, bool) {
	r, ok := resources[name]
	return r, ok
}

func Names() []string {
	return []string{
		Categories.Name, Services.Name, Blogs.Name, Jobs.Name,
		Applications.Name, ContactMessages.Name, DropdownServices.Name,
	}
}

func (r Resource) CanGet() bool    { return r.GetPath != "" || r.ListPath != "" }
func (r Resource) CanCreate() bool { return r.CreatePath != "" }
func (r Resource) CanUpdate() bool { return r.UpdatePath != "" }
func (r Resource) CanDelete() bool { return r.DeletePath != "" }

func expand(path, id string) string {
	return strings.ReplaceAll(path, "{id}", url.PathEscape(id))
}
