package simplepublish

import (
	"context"
)

// Service is the validation-and-projection layer over the repositories.
// Every method takes the already-authenticated actor's user id; credential
// verification happens at the transport edge, never here.
type Service interface {
	// Post operations.
	CreatePost(ctx context.Context, actor int64, req CreatePostRequest) (int64, error)
	EditPost(ctx context.Context, actor int64, req EditPostRequest) (int64, error)
	DeletePosts(ctx context.Context, actor int64, ids []int64) ([]int64, error)
	GetPost(ctx context.Context, actor int64, id int64, fields FieldSet) (map[string]any, error)
	ListPosts(ctx context.Context, actor int64, filter PostFilter, fields FieldSet) ([]map[string]any, error)
	GetPostTerms(ctx context.Context, actor int64, postID int64) ([]*Term, error)
	SetPostTerms(ctx context.Context, actor int64, postID int64, terms map[string][]int64, appendTerms bool) error
	GetPostType(ctx context.Context, actor int64, name string) (*PostType, error)
	ListPostTypes(ctx context.Context, actor int64) (map[string]*PostType, error)

	// Term and taxonomy operations.
	CreateTerm(ctx context.Context, actor int64, req CreateTermRequest) (int64, error)
	EditTerm(ctx context.Context, actor int64, req EditTermRequest) (int64, error)
	DeleteTerm(ctx context.Context, actor int64, taxonomy string, termID int64) (bool, error)
	GetTerm(ctx context.Context, actor int64, taxonomy string, termID int64) (*Term, error)
	ListTerms(ctx context.Context, actor int64, taxonomy string, filter TermFilter) ([]*Term, error)
	GetTaxonomy(ctx context.Context, actor int64, name string) (*TaxonomySchema, error)
	ListTaxonomies(ctx context.Context, actor int64) (map[string]*TaxonomySchema, error)

	// User operations.
	CreateUser(ctx context.Context, actor int64, req CreateUserRequest) (int64, error)
	EditUser(ctx context.Context, actor int64, req EditUserRequest) (int64, error)
	DeleteUsers(ctx context.Context, actor int64, ids []int64) ([]int64, error)
	GetUser(ctx context.Context, actor int64, id int64) (map[string]any, error)
	ListUsers(ctx context.Context, actor int64, filter UserFilter) ([]map[string]any, error)

	// Media operations.
	CreateAttachment(ctx context.Context, actor int64, req CreateAttachmentRequest) (*Post, string, error)
}
