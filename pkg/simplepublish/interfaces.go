package simplepublish

import (
	"context"
	"io"
	"time"
)

// CapabilityGate answers whether an actor may exercise a named capability,
// optionally scoped to a specific object. objectID zero means unscoped.
//
// The gate is an external oracle: this package never decides authorization
// itself, it only asks in the order the validation rules prescribe.
type CapabilityGate interface {
	Allowed(ctx context.Context, actorID int64, capability string, objectID int64) bool
}

// PostRepository is the object store behind the write and read paths. The
// service calls it exactly once per validated mutation; all guard failures
// happen before any call lands here.
type PostRepository interface {
	CreatePost(ctx context.Context, post *Post) (int64, error)
	UpdatePost(ctx context.Context, post *Post) (int64, error)
	DeletePost(ctx context.Context, id int64) (bool, error)
	GetPost(ctx context.Context, id int64) (*Post, error)
	ListPosts(ctx context.Context, filter PostFilter) ([]*Post, error)

	// Custom-attribute primitives. Values are a string-keyed multimap.
	GetCustomFields(ctx context.Context, postID int64) (map[string][]string, error)
	SetCustomFields(ctx context.Context, postID int64, fields map[string][]string) error
	AddCustomField(ctx context.Context, postID int64, key, value string) error
}

// TermRepository is the term store: term lookup/CRUD plus the single
// assignment primitive every term form (modern and legacy) funnels into.
type TermRepository interface {
	CreateTerm(ctx context.Context, term *Term) (*Term, error)
	UpdateTerm(ctx context.Context, term *Term) (*Term, error)
	DeleteTerm(ctx context.Context, id int64, taxonomy string) (bool, error)
	GetTerm(ctx context.Context, id int64, taxonomy string) (*Term, error)
	GetTermByName(ctx context.Context, name, taxonomy string) (*Term, error)
	ListTerms(ctx context.Context, taxonomy string, filter TermFilter) ([]*Term, error)

	// EnsureTerm returns the term named name, creating it when absent.
	// Backs the legacy keyword and format forms.
	EnsureTerm(ctx context.Context, name, taxonomy string) (*Term, error)

	// SetPostTerms assigns termIDs to the post within one taxonomy.
	// append false replaces the taxonomy's prior assignment.
	SetPostTerms(ctx context.Context, postID int64, taxonomy string, termIDs []int64, append bool) error
	ListPostTerms(ctx context.Context, postID int64, taxonomies []string) ([]*Term, error)
}

// UserRepository is the account store.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) (int64, error)
	UpdateUser(ctx context.Context, user *User) (int64, error)
	DeleteUser(ctx context.Context, id int64) (bool, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByLogin(ctx context.Context, login string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]*User, error)
}

// Repository bundles the three stores; the bundled backends (memory,
// postgres) implement all of them over one underlying database.
type Repository interface {
	PostRepository
	TermRepository
	UserRepository
}

// BlobStore is the media library backend used by attachment uploads and
// enclosure metadata resolution.
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader) error
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Meta(ctx context.Context, key string) (*BlobMeta, error)
	DownloadURL(ctx context.Context, key string) (string, error)
}

// BlobMeta describes a stored media object.
type BlobMeta struct {
	Key       string
	Size      int64
	MimeType  string
	UpdatedAt time.Time
	ETag      string
}
