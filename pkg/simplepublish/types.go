package simplepublish

import (
	"time"
)

// PostStatus is the domain type for post lifecycle states.
type PostStatus string

// Post status constants (typed).
const (
	StatusDraft   PostStatus = "draft"
	StatusPending PostStatus = "pending"
	StatusPrivate PostStatus = "private"
	StatusPublish PostStatus = "publish"

	// StatusFuture is the internal scheduled state. It is never accepted
	// from a client and projects as "publish"; a scheduler outside this
	// module performs the actual flip.
	StatusFuture PostStatus = "future"
)

// Policy is the comment/trackback policy for a post.
type Policy string

// Policy constants (typed).
const (
	PolicyOpen   Policy = "open"
	PolicyClosed Policy = "closed"
)

// Feature names a per-type optional capability of posts.
type Feature string

// Post type feature constants.
const (
	FeatureTitle          Feature = "title"
	FeatureEditor         Feature = "editor"
	FeatureExcerpt        Feature = "excerpt"
	FeatureAuthor         Feature = "author"
	FeaturePageAttributes Feature = "page-attributes"
	FeatureComments       Feature = "comments"
	FeatureTrackbacks     Feature = "trackbacks"
	FeatureCustomFields   Feature = "custom-fields"
)

// Well-known type and taxonomy names. The base post type is the only one
// that may carry the sticky flag; the attachment type backs the media
// library.
const (
	TypePost       = "post"
	TypePage       = "page"
	TypeAttachment = "attachment"

	TaxonomyCategory = "category"
	TaxonomyTag      = "post_tag"
	TaxonomyFormat   = "post_format"
)

// Post represents a content item of some registered post type.
//
// Date/DateGMT (and Modified/ModifiedGMT) are independently stored values,
// not derived from each other at read time. The write path keeps them
// consistent; the projector serializes each one as stored.
type Post struct {
	ID           int64      `json:"id"`
	Type         string     `json:"type"`
	Status       PostStatus `json:"status"`
	Title        string     `json:"title,omitempty"`
	Content      string     `json:"content,omitempty"`
	Excerpt      string     `json:"excerpt,omitempty"`
	Slug         string     `json:"slug,omitempty"`
	Password     string     `json:"password,omitempty"`
	ParentID     int64      `json:"parent_id,omitempty"`
	MenuOrder    int        `json:"menu_order,omitempty"`
	PageTemplate string     `json:"page_template,omitempty"`
	AuthorID     int64      `json:"author_id"`
	Sticky       bool       `json:"sticky,omitempty"`

	CommentPolicy Policy `json:"comment_policy,omitempty"`
	PingPolicy    Policy `json:"ping_policy,omitempty"`
	ToPing        string `json:"to_ping,omitempty"`

	Date        time.Time `json:"date"`
	DateGMT     time.Time `json:"date_gmt"`
	Modified    time.Time `json:"modified"`
	ModifiedGMT time.Time `json:"modified_gmt"`
}

// Term is a classification entry inside a taxonomy.
type Term struct {
	ID          int64  `json:"term_id"`
	Taxonomy    string `json:"taxonomy"`
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	ParentID    int64  `json:"parent,omitempty"`
	Description string `json:"description,omitempty"`
	Count       int64  `json:"count"`
}

// Enclosure is podcast-style media metadata attached to a post. At most one
// enclosure is meaningful per post; the first stored value wins.
type Enclosure struct {
	URL    string `json:"url"`
	Length int64  `json:"length"`
	Type   string `json:"type"`
}

// User is an account known to the repository. Login is immutable after
// creation. ContactMethods may only carry keys present in the registry's
// contact-method set.
type User struct {
	ID             int64             `json:"id"`
	Login          string            `json:"login"`
	Password       string            `json:"-"`
	Email          string            `json:"email"`
	Role           string            `json:"role"`
	DisplayName    string            `json:"display_name,omitempty"`
	FirstName      string            `json:"first_name,omitempty"`
	LastName       string            `json:"last_name,omitempty"`
	Nickname       string            `json:"nickname,omitempty"`
	NiceName       string            `json:"nicename,omitempty"`
	Bio            string            `json:"bio,omitempty"`
	URL            string            `json:"url,omitempty"`
	Registered     time.Time         `json:"registered"`
	ContactMethods map[string]string `json:"contact_methods,omitempty"`
}

// PostFilter defines filtering options for listing posts.
type PostFilter struct {
	Type    string
	Status  PostStatus
	Number  int
	Offset  int
	OrderBy string
	Order   string

	// ParentID filters on the exact parent; used internally to find orphan
	// attachments (parent 0).
	ParentID *int64
}

// TermFilter defines filtering options for listing terms.
type TermFilter struct {
	Search     string
	HideEmpty  bool
	Number     int
	Offset     int
}

// UserFilter defines filtering options for listing users.
type UserFilter struct {
	Number int
	Offset int
	Role   string
}

// moreSeparator splits a post body into its lead and extended parts.
const moreSeparator = "<!--more-->"
