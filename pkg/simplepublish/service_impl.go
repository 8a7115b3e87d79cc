package simplepublish

import (
	"context"
	"strings"
	"time"
)

// service implements the Service interface.
type service struct {
	repo     Repository
	gate     CapabilityGate
	registry *Registry
	media    BlobStore
	hooks    *Hooks

	projectionFilters []ProjectionFilter
	baseURL           string
	now               func() time.Time
}

// Option represents a functional option for configuring the service.
type Option func(*service)

// WithRepository sets the backing repository bundle.
func WithRepository(repo Repository) Option {
	return func(s *service) { s.repo = repo }
}

// WithCapabilityGate sets the authorization oracle.
func WithCapabilityGate(gate CapabilityGate) Option {
	return func(s *service) { s.gate = gate }
}

// WithRegistry sets the post-type/taxonomy schema registry.
func WithRegistry(reg *Registry) Option {
	return func(s *service) { s.registry = reg }
}

// WithMediaStore sets the blob store backing attachment uploads.
func WithMediaStore(store BlobStore) Option {
	return func(s *service) { s.media = store }
}

// WithHooks sets the lifecycle hooks.
func WithHooks(hooks *Hooks) Option {
	return func(s *service) { s.hooks = hooks }
}

// WithProjectionFilter appends a read-path extension filter. Filters run in
// registration order after core projection.
func WithProjectionFilter(filters ...ProjectionFilter) Option {
	return func(s *service) { s.projectionFilters = append(s.projectionFilters, filters...) }
}

// WithBaseURL sets the public base URL used to build permalinks.
func WithBaseURL(url string) Option {
	return func(s *service) { s.baseURL = url }
}

// WithClock overrides the time source; tests use this to pin timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// New creates a service instance with the given options.
func New(options ...Option) (Service, error) {
	s := &service{
		baseURL: "http://localhost",
		now:     time.Now,
	}
	for _, option := range options {
		option(s)
	}
	if s.repo == nil {
		return nil, NewError(CodeInternal, "repository is required")
	}
	if s.gate == nil {
		return nil, NewError(CodeInternal, "capability gate is required")
	}
	if s.registry == nil {
		s.registry = DefaultRegistry()
	}
	return s, nil
}

// mutationPlan is the fully validated, side-effect-free description of a
// create or update. The object store is invoked exactly once to persist
// plan.post; everything else applies through separate primitives afterwards.
type mutationPlan struct {
	post *Post

	customFields map[string][]string
	terms        []termAssignment // modern form, validated
	hasTerms     bool
	categoryIDs  []int64 // legacy categories, resolved
	hasCategories bool
	keywords     []string
	hasKeywords  bool
	format       string
	hasFormat    bool
	enclosure    *Enclosure
}

// Post operations

func (s *service) CreatePost(ctx context.Context, actor int64, req CreatePostRequest) (int64, error) {
	if err := s.hooks.executeBeforePostCreate(ctx, &req); err != nil {
		return 0, err
	}

	pt, ok := s.registry.PostType(req.Type)
	if !ok {
		return 0, NewError(CodeNotFound, "invalid post type %q", req.Type)
	}
	if !s.gate.Allowed(ctx, actor, pt.Capabilities.EditPosts, 0) {
		return 0, NewError(CodeUnauthorized, "you are not allowed to create posts in this post type")
	}

	plan, err := s.buildPlan(ctx, actor, pt, nil, &req.PostContent, req.Publish)
	if err != nil {
		s.hooks.executeOnError(ctx, "create_post", err)
		return 0, err
	}

	id, err := s.repo.CreatePost(ctx, plan.post)
	if err != nil {
		s.hooks.executeOnError(ctx, "create_post", err)
		return 0, WrapError(CodeInternal, err, "insert post")
	}
	if id == 0 {
		return 0, NewError(CodeInternal, "operation failed")
	}
	plan.post.ID = id

	if err := s.applyPlan(ctx, plan, false); err != nil {
		s.hooks.executeOnError(ctx, "create_post", err)
		return 0, err
	}
	if err := s.hooks.executeAfterPostCreate(ctx, plan.post); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *service) EditPost(ctx context.Context, actor int64, req EditPostRequest) (int64, error) {
	existing, err := s.repo.GetPost(ctx, req.ID)
	if err != nil {
		return 0, WrapError(CodeNotFound, err, "invalid post ID %d", req.ID)
	}
	pt, ok := s.registry.PostType(existing.Type)
	if !ok {
		return 0, NewError(CodeInternal, "post %d has unregistered type %q", req.ID, existing.Type)
	}
	if !s.gate.Allowed(ctx, actor, pt.Capabilities.EditPosts, req.ID) {
		return 0, NewError(CodeUnauthorized, "you are not allowed to edit this post")
	}

	plan, err := s.buildPlan(ctx, actor, pt, existing, &req.PostContent, req.Publish)
	if err != nil {
		s.hooks.executeOnError(ctx, "edit_post", err)
		return 0, err
	}

	id, err := s.repo.UpdatePost(ctx, plan.post)
	if err != nil {
		s.hooks.executeOnError(ctx, "edit_post", err)
		return 0, WrapError(CodeInternal, err, "update post")
	}
	if id == 0 {
		return 0, NewError(CodeInternal, "operation failed")
	}

	if err := s.applyPlan(ctx, plan, false); err != nil {
		s.hooks.executeOnError(ctx, "edit_post", err)
		return 0, err
	}
	if err := s.hooks.executeAfterPostEdit(ctx, plan.post); err != nil {
		return 0, err
	}
	return id, nil
}

// buildPlan walks the request's optional attributes in fixed order, applying
// the (type-support, actor-capability) guard pair per attribute. The first
// failing guard is terminal; nothing reaches a store until the whole plan
// validates.
func (s *service) buildPlan(ctx context.Context, actor int64, pt *PostType, existing *Post, req *PostContent, publish bool) (*mutationPlan, error) {
	creating := existing == nil

	post := &Post{Type: pt.Name, AuthorID: actor}
	if !creating {
		copied := *existing
		post = &copied
	}

	// Target status: explicit value wins, else the publish flag decides.
	status := PostStatus(req.Status)
	if req.Status == "" {
		if publish {
			status = StatusPublish
		} else {
			status = StatusDraft
		}
	}
	var scope int64
	if !creating {
		scope = existing.ID
	}
	switch status {
	case StatusDraft, StatusPending:
		// Covered by the edit capability already checked by the caller.
	case StatusPrivate:
		if !s.gate.Allowed(ctx, actor, pt.Capabilities.PublishPosts, scope) {
			return nil, NewError(CodeUnauthorized, "you are not allowed to create private posts in this post type")
		}
	case StatusPublish:
		if !s.gate.Allowed(ctx, actor, pt.Capabilities.PublishPosts, scope) {
			return nil, NewError(CodeUnauthorized, "you are not allowed to publish posts in this post type")
		}
	default:
		return nil, NewError(CodeInvalidArgument, "invalid post status %q", status)
	}
	post.Status = status

	if req.Password != nil {
		if !s.gate.Allowed(ctx, actor, pt.Capabilities.PublishPosts, scope) {
			return nil, NewError(CodeUnauthorized, "you are not allowed to create password protected posts in this post type")
		}
		post.Password = *req.Password
	}

	if req.Slug != nil {
		post.Slug = *req.Slug
	}

	if req.MenuOrder != nil {
		if !pt.SupportsFeature(FeaturePageAttributes) {
			return nil, NewError(CodeInvalidArgument, "this post type does not support page attributes")
		}
		post.MenuOrder = *req.MenuOrder
	}

	if req.ParentID != nil {
		if !pt.Hierarchical {
			return nil, NewError(CodeInvalidArgument, "this post type does not support post hierarchy")
		}
		if *req.ParentID != 0 {
			parent, err := s.repo.GetPost(ctx, *req.ParentID)
			if err != nil {
				return nil, WrapError(CodeInvalidArgument, err, "invalid parent ID %d", *req.ParentID)
			}
			if parent.Type != pt.Name {
				return nil, NewError(CodeInvalidArgument, "the parent post is of a different post type")
			}
		}
		post.ParentID = *req.ParentID
	}

	if req.PageTemplate != nil {
		if pt.Name != TypePage {
			return nil, NewError(CodeInvalidArgument, "page templates are only supported by pages")
		}
		if !s.registry.ValidPageTemplate(*req.PageTemplate) {
			return nil, NewError(CodeInvalidArgument, "invalid page template %q", *req.PageTemplate)
		}
		post.PageTemplate = *req.PageTemplate
	}

	if req.AuthorID != nil && *req.AuthorID != actor {
		if !pt.SupportsFeature(FeatureAuthor) {
			return nil, NewError(CodeInvalidArgument, "this post type does not support setting an author")
		}
		if !s.gate.Allowed(ctx, actor, pt.Capabilities.EditOthersPosts, 0) {
			return nil, NewError(CodeUnauthorized, "you are not allowed to create posts as this user")
		}
		if _, err := s.repo.GetUser(ctx, *req.AuthorID); err != nil {
			return nil, WrapError(CodeNotFound, err, "invalid author ID %d", *req.AuthorID)
		}
		post.AuthorID = *req.AuthorID
	}

	if req.Title != nil {
		if !pt.SupportsFeature(FeatureTitle) {
			return nil, NewError(CodeInvalidArgument, "this post type does not support the title attribute")
		}
		post.Title = *req.Title
	}

	if req.Content != nil {
		if !pt.SupportsFeature(FeatureEditor) {
			return nil, NewError(CodeInvalidArgument, "this post type does not support post content")
		}
		post.Content = *req.Content
	}

	if req.Excerpt != nil {
		if !pt.SupportsFeature(FeatureExcerpt) {
			return nil, NewError(CodeInvalidArgument, "this post type does not support the post excerpt")
		}
		post.Excerpt = *req.Excerpt
	}

	if err := s.resolvePolicies(pt, post, req, creating); err != nil {
		return nil, err
	}

	// The more marker appends unconditionally; no capability gates it.
	if req.TextMore != nil {
		post.Content = post.Content + moreSeparator + *req.TextMore
	}

	if len(req.PingURLs) > 0 {
		post.ToPing = strings.Join(req.PingURLs, " ")
	}

	now := s.now()
	switch {
	case req.DateGMT != nil:
		// A UTC-qualified timestamp is authoritative; local derives from it.
		post.DateGMT = req.DateGMT.UTC()
		post.Date = post.DateGMT.In(time.Local)
	case req.Date != nil:
		post.Date = *req.Date
		post.DateGMT = post.Date.UTC()
	case creating:
		post.Date = now
		post.DateGMT = now.UTC()
	}
	post.Modified = now
	post.ModifiedGMT = now.UTC()

	if req.Sticky != nil {
		if pt.Name != TypePost {
			return nil, NewError(CodeInvalidArgument, "only posts can be sticky")
		}
		if *req.Sticky {
			if post.Status != StatusPublish {
				return nil, NewError(CodeInvalidArgument, "only published posts can be made sticky")
			}
			if !s.gate.Allowed(ctx, actor, pt.Capabilities.EditOthersPosts, 0) {
				return nil, NewError(CodeUnauthorized, "you are not allowed to stick this post")
			}
		}
		post.Sticky = *req.Sticky
	}

	plan := &mutationPlan{post: post, enclosure: req.Enclosure}

	if req.CustomFields != nil {
		if !pt.SupportsFeature(FeatureCustomFields) {
			return nil, NewError(CodeInvalidArgument, "this post type does not support custom fields")
		}
		plan.customFields = req.CustomFields
	}

	if err := s.planTermForms(ctx, pt, req, plan); err != nil {
		return nil, err
	}

	return plan, nil
}

// resolvePolicies coerces comment/trackback policy values. On create,
// supported features receive the registry default before any requested
// override; presence of a policy key for an unsupported feature is an error
// in either mode.
func (s *service) resolvePolicies(pt *PostType, post *Post, req *PostContent, creating bool) error {
	defaults := s.registry.Defaults()

	if pt.SupportsFeature(FeatureComments) {
		if creating {
			post.CommentPolicy = defaults.CommentPolicy
		}
		if req.Comments != nil {
			policy, err := req.Comments.Policy()
			if err != nil {
				return err
			}
			post.CommentPolicy = policy
		}
	} else if req.Comments != nil {
		return NewError(CodeInvalidArgument, "this post type does not support comments")
	}

	if pt.SupportsFeature(FeatureTrackbacks) {
		if creating {
			post.PingPolicy = defaults.PingPolicy
		}
		if req.Pings != nil {
			policy, err := req.Pings.Policy()
			if err != nil {
				return err
			}
			post.PingPolicy = policy
		}
	} else if req.Pings != nil {
		return NewError(CodeInvalidArgument, "this post type does not support trackbacks")
	}

	return nil
}

// applyPlan runs the post-persist primitives: custom fields, then term
// assignments, then enclosure and attachment side effects. The object row
// is already durable when this runs.
func (s *service) applyPlan(ctx context.Context, plan *mutationPlan, appendTerms bool) error {
	if plan.customFields != nil {
		if err := s.repo.SetCustomFields(ctx, plan.post.ID, plan.customFields); err != nil {
			return WrapError(CodeInternal, err, "set custom fields")
		}
	}

	if err := s.applyTermForms(ctx, plan, appendTerms); err != nil {
		return err
	}

	if plan.enclosure != nil {
		if err := s.addEnclosureIfNew(ctx, plan.post.ID, plan.enclosure); err != nil {
			return err
		}
	}
	if err := s.attachUploads(ctx, plan.post.ID, plan.post.Content); err != nil {
		return err
	}
	return nil
}

func (s *service) DeletePosts(ctx context.Context, actor int64, ids []int64) ([]int64, error) {
	// Validate every id and capability before deleting anything.
	for _, id := range ids {
		post, err := s.repo.GetPost(ctx, id)
		if err != nil {
			return nil, WrapError(CodeNotFound, err, "one of the post IDs is invalid")
		}
		pt, ok := s.registry.PostType(post.Type)
		if !ok {
			return nil, NewError(CodeInternal, "post %d has unregistered type %q", id, post.Type)
		}
		if !s.gate.Allowed(ctx, actor, pt.Capabilities.DeletePosts, id) {
			return nil, NewError(CodeUnauthorized, "you are not allowed to delete one of the posts")
		}
	}

	deleted := make([]int64, 0, len(ids))
	for _, id := range ids {
		ok, err := s.repo.DeletePost(ctx, id)
		if err != nil {
			return deleted, WrapError(CodeInternal, err, "delete post %d", id)
		}
		if ok {
			deleted = append(deleted, id)
			if err := s.hooks.executeAfterPostDelete(ctx, id); err != nil {
				return deleted, err
			}
		}
	}
	return deleted, nil
}

func (s *service) GetPost(ctx context.Context, actor int64, id int64, fields FieldSet) (map[string]any, error) {
	post, err := s.repo.GetPost(ctx, id)
	if err != nil {
		return nil, WrapError(CodeNotFound, err, "invalid post ID %d", id)
	}
	pt, ok := s.registry.PostType(post.Type)
	if !ok {
		return nil, NewError(CodeInternal, "post %d has unregistered type %q", id, post.Type)
	}
	if !s.gate.Allowed(ctx, actor, pt.Capabilities.EditPosts, id) {
		return nil, NewError(CodeUnauthorized, "you cannot edit this post")
	}
	return s.projectPost(ctx, post, fields)
}

func (s *service) ListPosts(ctx context.Context, actor int64, filter PostFilter, fields FieldSet) ([]map[string]any, error) {
	if filter.Type != "" {
		pt, ok := s.registry.PostType(filter.Type)
		if !ok {
			return nil, NewError(CodeInvalidArgument, "the post type specified is not valid")
		}
		if !s.gate.Allowed(ctx, actor, pt.Capabilities.EditPosts, 0) {
			return nil, NewError(CodeUnauthorized, "you are not allowed to edit posts in this post type")
		}
	}

	posts, err := s.repo.ListPosts(ctx, filter)
	if err != nil {
		return nil, WrapError(CodeInternal, err, "list posts")
	}

	out := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		pt, ok := s.registry.PostType(post.Type)
		if !ok {
			continue
		}
		// Posts the actor cannot edit are skipped, not errors.
		if !s.gate.Allowed(ctx, actor, pt.Capabilities.EditPosts, post.ID) {
			continue
		}
		projection, err := s.projectPost(ctx, post, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, projection)
	}
	return out, nil
}

func (s *service) GetPostType(ctx context.Context, actor int64, name string) (*PostType, error) {
	pt, ok := s.registry.PostType(name)
	if !ok {
		return nil, NewError(CodeNotFound, "invalid post type %q", name)
	}
	if !s.gate.Allowed(ctx, actor, pt.Capabilities.EditPosts, 0) {
		return nil, NewError(CodeUnauthorized, "you are not allowed to edit this post type")
	}
	return pt, nil
}

func (s *service) ListPostTypes(ctx context.Context, actor int64) (map[string]*PostType, error) {
	out := make(map[string]*PostType)
	for _, pt := range s.registry.PostTypes() {
		if !s.gate.Allowed(ctx, actor, pt.Capabilities.EditPosts, 0) {
			continue
		}
		out[pt.Name] = pt
	}
	return out, nil
}
