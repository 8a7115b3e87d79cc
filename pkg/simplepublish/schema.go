package simplepublish

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// PostTypeCaps names the capabilities gating each post-type action.
type PostTypeCaps struct {
	EditPosts       string `yaml:"edit_posts" json:"edit_posts"`
	PublishPosts    string `yaml:"publish_posts" json:"publish_posts"`
	EditOthersPosts string `yaml:"edit_others_posts" json:"edit_others_posts"`
	DeletePosts     string `yaml:"delete_posts" json:"delete_posts"`
}

// PostType is the schema for one content type: which optional attributes it
// supports, whether it is hierarchical, and which capabilities gate it.
type PostType struct {
	Name         string       `yaml:"name" json:"name"`
	Label        string       `yaml:"label" json:"label"`
	Hierarchical bool         `yaml:"hierarchical" json:"hierarchical"`
	Supports     []Feature    `yaml:"supports" json:"supports"`
	Capabilities PostTypeCaps `yaml:"capabilities" json:"cap"`
	Taxonomies   []string     `yaml:"taxonomies" json:"taxonomies"`

	supports map[Feature]bool
}

// SupportsFeature reports whether the type declares the optional attribute.
func (t *PostType) SupportsFeature(f Feature) bool {
	return t.supports[f]
}

// TaxonomyCaps names the capabilities gating each taxonomy action.
type TaxonomyCaps struct {
	ManageTerms string `yaml:"manage_terms" json:"manage_terms"`
	EditTerms   string `yaml:"edit_terms" json:"edit_terms"`
	DeleteTerms string `yaml:"delete_terms" json:"delete_terms"`
	AssignTerms string `yaml:"assign_terms" json:"assign_terms"`
}

// TaxonomySchema is the schema for one classification scheme.
type TaxonomySchema struct {
	Name         string       `yaml:"name" json:"name"`
	Label        string       `yaml:"label" json:"label"`
	Hierarchical bool         `yaml:"hierarchical" json:"hierarchical"`
	Capabilities TaxonomyCaps `yaml:"capabilities" json:"cap"`
	ObjectTypes  []string     `yaml:"object_types" json:"object_type"`
}

// RegistryDefaults carries process-wide write-path defaults.
type RegistryDefaults struct {
	CommentPolicy Policy `yaml:"comment_policy"`
	PingPolicy    Policy `yaml:"ping_policy"`
	Role          string `yaml:"role"`
}

// Registry holds the process-wide content schemas: post types, taxonomies,
// page templates, roles, and contact methods. It is populated once at
// startup and read-only afterwards, so unsynchronized concurrent reads are
// safe.
type Registry struct {
	postTypes      map[string]*PostType
	taxonomies     map[string]*TaxonomySchema
	pageTemplates  map[string]bool
	roles          map[string]string
	contactMethods []string
	defaults       RegistryDefaults
}

// registryFile is the YAML shape of a schema file.
type registryFile struct {
	PostTypes      []*PostType       `yaml:"post_types"`
	Taxonomies     []*TaxonomySchema `yaml:"taxonomies"`
	PageTemplates  []string          `yaml:"page_templates"`
	Roles          map[string]string `yaml:"roles"`
	ContactMethods []string          `yaml:"contact_methods"`
	Defaults       RegistryDefaults  `yaml:"defaults"`
}

// NewRegistry builds a registry from explicit schemas.
func NewRegistry(postTypes []*PostType, taxonomies []*TaxonomySchema, templates []string, roles map[string]string, contactMethods []string, defaults RegistryDefaults) (*Registry, error) {
	r := &Registry{
		postTypes:      make(map[string]*PostType),
		taxonomies:     make(map[string]*TaxonomySchema),
		pageTemplates:  make(map[string]bool),
		roles:          make(map[string]string),
		contactMethods: append([]string(nil), contactMethods...),
		defaults:       defaults,
	}

	for _, pt := range postTypes {
		if pt.Name == "" {
			return nil, fmt.Errorf("post type with empty name")
		}
		if _, dup := r.postTypes[pt.Name]; dup {
			return nil, fmt.Errorf("duplicate post type %q", pt.Name)
		}
		pt.supports = make(map[Feature]bool, len(pt.Supports))
		for _, f := range pt.Supports {
			pt.supports[f] = true
		}
		r.postTypes[pt.Name] = pt
	}
	for _, tx := range taxonomies {
		if tx.Name == "" {
			return nil, fmt.Errorf("taxonomy with empty name")
		}
		if _, dup := r.taxonomies[tx.Name]; dup {
			return nil, fmt.Errorf("duplicate taxonomy %q", tx.Name)
		}
		r.taxonomies[tx.Name] = tx
	}
	for _, pt := range r.postTypes {
		for _, name := range pt.Taxonomies {
			if _, ok := r.taxonomies[name]; !ok {
				return nil, fmt.Errorf("post type %q references unknown taxonomy %q", pt.Name, name)
			}
		}
	}

	// "default" is always a valid page template.
	r.pageTemplates["default"] = true
	for _, t := range templates {
		r.pageTemplates[t] = true
	}
	for name, label := range roles {
		r.roles[name] = label
	}

	if r.defaults.CommentPolicy == "" {
		r.defaults.CommentPolicy = PolicyOpen
	}
	if r.defaults.PingPolicy == "" {
		r.defaults.PingPolicy = PolicyOpen
	}
	return r, nil
}

// LoadRegistry reads a schema file in YAML form.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse schema file %s: %w", path, err)
	}
	return NewRegistry(f.PostTypes, f.Taxonomies, f.PageTemplates, f.Roles, f.ContactMethods, f.Defaults)
}

// DefaultRegistry returns the built-in schema set: the base post type, the
// hierarchical page type, the attachment type behind the media library, and
// the three stock taxonomies.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		[]*PostType{
			{
				Name:  TypePost,
				Label: "Posts",
				Supports: []Feature{
					FeatureTitle, FeatureEditor, FeatureExcerpt, FeatureAuthor,
					FeatureComments, FeatureTrackbacks, FeatureCustomFields,
				},
				Capabilities: PostTypeCaps{
					EditPosts:       "edit_posts",
					PublishPosts:    "publish_posts",
					EditOthersPosts: "edit_others_posts",
					DeletePosts:     "delete_posts",
				},
				Taxonomies: []string{TaxonomyCategory, TaxonomyTag, TaxonomyFormat},
			},
			{
				Name:         TypePage,
				Label:        "Pages",
				Hierarchical: true,
				Supports: []Feature{
					FeatureTitle, FeatureEditor, FeatureAuthor,
					FeaturePageAttributes, FeatureCustomFields,
				},
				Capabilities: PostTypeCaps{
					EditPosts:       "edit_pages",
					PublishPosts:    "publish_pages",
					EditOthersPosts: "edit_others_pages",
					DeletePosts:     "delete_pages",
				},
			},
			{
				Name:  TypeAttachment,
				Label: "Media",
				Supports: []Feature{
					FeatureTitle, FeatureCustomFields,
				},
				Capabilities: PostTypeCaps{
					EditPosts:       "upload_files",
					PublishPosts:    "upload_files",
					EditOthersPosts: "edit_others_posts",
					DeletePosts:     "delete_posts",
				},
			},
		},
		[]*TaxonomySchema{
			{
				Name:         TaxonomyCategory,
				Label:        "Categories",
				Hierarchical: true,
				Capabilities: TaxonomyCaps{
					ManageTerms: "manage_categories",
					EditTerms:   "manage_categories",
					DeleteTerms: "manage_categories",
					AssignTerms: "edit_posts",
				},
				ObjectTypes: []string{TypePost},
			},
			{
				Name:  TaxonomyTag,
				Label: "Tags",
				Capabilities: TaxonomyCaps{
					ManageTerms: "manage_categories",
					EditTerms:   "manage_categories",
					DeleteTerms: "manage_categories",
					AssignTerms: "edit_posts",
				},
				ObjectTypes: []string{TypePost},
			},
			{
				Name:  TaxonomyFormat,
				Label: "Formats",
				Capabilities: TaxonomyCaps{
					ManageTerms: "manage_categories",
					EditTerms:   "manage_categories",
					DeleteTerms: "manage_categories",
					AssignTerms: "edit_posts",
				},
				ObjectTypes: []string{TypePost},
			},
		},
		nil,
		map[string]string{
			"administrator": "Administrator",
			"editor":        "Editor",
			"author":        "Author",
			"contributor":   "Contributor",
			"subscriber":    "Subscriber",
		},
		[]string{"aim", "jabber", "yim"},
		RegistryDefaults{CommentPolicy: PolicyOpen, PingPolicy: PolicyOpen, Role: "subscriber"},
	)
	if err != nil {
		panic(err) // built-in schema is static
	}
	return r
}

// PostType resolves a type schema by name.
func (r *Registry) PostType(name string) (*PostType, bool) {
	pt, ok := r.postTypes[name]
	return pt, ok
}

// PostTypes lists all registered type schemas in name order.
func (r *Registry) PostTypes() []*PostType {
	out := make([]*PostType, 0, len(r.postTypes))
	for _, pt := range r.postTypes {
		out = append(out, pt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Taxonomy resolves a taxonomy schema by name.
func (r *Registry) Taxonomy(name string) (*TaxonomySchema, bool) {
	tx, ok := r.taxonomies[name]
	return tx, ok
}

// Taxonomies lists all registered taxonomy schemas in name order.
func (r *Registry) Taxonomies() []*TaxonomySchema {
	out := make([]*TaxonomySchema, 0, len(r.taxonomies))
	for _, tx := range r.taxonomies {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TaxonomiesFor lists the taxonomy names associated with a post type.
func (r *Registry) TaxonomiesFor(postType string) []string {
	pt, ok := r.postTypes[postType]
	if !ok {
		return nil
	}
	return append([]string(nil), pt.Taxonomies...)
}

// ValidPageTemplate reports whether the template name is registered.
func (r *Registry) ValidPageTemplate(name string) bool {
	return r.pageTemplates[name]
}

// ValidRole reports whether the role name is registered.
func (r *Registry) ValidRole(name string) bool {
	_, ok := r.roles[name]
	return ok
}

// Roles returns the registered role names mapped to display labels.
func (r *Registry) Roles() map[string]string {
	out := make(map[string]string, len(r.roles))
	for k, v := range r.roles {
		out[k] = v
	}
	return out
}

// ContactMethods returns the registered contact-method keys.
func (r *Registry) ContactMethods() []string {
	return append([]string(nil), r.contactMethods...)
}

// ValidContactMethod reports whether the contact-method key is registered.
func (r *Registry) ValidContactMethod(key string) bool {
	for _, m := range r.contactMethods {
		if m == key {
			return true
		}
	}
	return false
}

// Defaults returns the write-path defaults.
func (r *Registry) Defaults() RegistryDefaults {
	return r.defaults
}
