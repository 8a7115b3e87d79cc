package simplepublish

import (
	"context"
	"sort"
	"strings"
)

// termAssignment is one taxonomy's validated, deduplicated id list.
type termAssignment struct {
	taxonomy string
	termIDs  []int64
}

// planTermForms validates whichever term form the request carries. The
// modern per-taxonomy map wins when present; the legacy category, keyword,
// and format forms are validated only when it is absent. No assignment
// happens here.
func (s *service) planTermForms(ctx context.Context, pt *PostType, req *PostContent, plan *mutationPlan) error {
	if req.Terms != nil {
		assignments, err := s.reconcileTerms(ctx, pt, req.Terms)
		if err != nil {
			return err
		}
		plan.terms = assignments
		plan.hasTerms = true
		return nil
	}

	if req.Categories != nil {
		if !s.typeHasTaxonomy(pt, TaxonomyCategory) {
			return NewError(CodeInvalidArgument, "sorry, one of the given taxonomies is not supported by the post type")
		}
		ids := make([]int64, 0, len(req.Categories))
		for _, name := range req.Categories {
			term, err := s.repo.GetTermByName(ctx, name, TaxonomyCategory)
			if err != nil {
				return WrapError(CodeInvalidArgument, err, "invalid category name %q", name)
			}
			ids = append(ids, term.ID)
		}
		plan.categoryIDs = dedupeIDs(ids)
		plan.hasCategories = true
	}

	if req.Keywords != nil {
		if !s.typeHasTaxonomy(pt, TaxonomyTag) {
			return NewError(CodeInvalidArgument, "sorry, one of the given taxonomies is not supported by the post type")
		}
		plan.keywords = req.Keywords
		plan.hasKeywords = true
	}

	if req.Format != nil {
		if !s.typeHasTaxonomy(pt, TaxonomyFormat) {
			return NewError(CodeInvalidArgument, "sorry, one of the given taxonomies is not supported by the post type")
		}
		plan.format = *req.Format
		plan.hasFormat = true
	}

	return nil
}

// reconcileTerms validates a modern term map against the post type's
// taxonomy set. Every taxonomy and every term id is checked before the
// caller applies anything, so a bad id in the last taxonomy leaves all
// assignments untouched.
func (s *service) reconcileTerms(ctx context.Context, pt *PostType, terms map[string][]int64) ([]termAssignment, error) {
	supported := make(map[string]bool, len(pt.Taxonomies))
	for _, tx := range pt.Taxonomies {
		supported[tx] = true
	}

	assignments := make([]termAssignment, 0, len(terms))
	for _, taxonomy := range sortedKeys(terms) {
		if !supported[taxonomy] {
			return nil, NewError(CodeInvalidArgument, "sorry, one of the given taxonomies is not supported by the post type")
		}
		ids := dedupeIDs(terms[taxonomy])
		for _, id := range ids {
			if _, err := s.repo.GetTerm(ctx, id, taxonomy); err != nil {
				return nil, WrapError(CodeNotFound, err, "invalid term ID %d in taxonomy %q", id, taxonomy)
			}
		}
		assignments = append(assignments, termAssignment{taxonomy: taxonomy, termIDs: ids})
	}
	return assignments, nil
}

// applyTermForms applies whichever form the plan validated. A present
// modern map short-circuits the legacy forms entirely.
func (s *service) applyTermForms(ctx context.Context, plan *mutationPlan, appendTerms bool) error {
	postID := plan.post.ID

	if plan.hasTerms {
		return s.applyAssignments(ctx, postID, plan.terms, appendTerms)
	}

	if plan.hasCategories {
		if err := s.setTerms(ctx, postID, TaxonomyCategory, plan.categoryIDs, false); err != nil {
			return err
		}
	}

	if plan.hasKeywords {
		ids := make([]int64, 0, len(plan.keywords))
		for _, name := range plan.keywords {
			name = strings.TrimSpace(name)
			if name == "" {
				continue
			}
			term, err := s.repo.EnsureTerm(ctx, name, TaxonomyTag)
			if err != nil {
				return WrapError(CodeInternal, err, "ensure tag %q", name)
			}
			ids = append(ids, term.ID)
		}
		if err := s.setTerms(ctx, postID, TaxonomyTag, dedupeIDs(ids), false); err != nil {
			return err
		}
	}

	if plan.hasFormat {
		format := strings.TrimSpace(plan.format)
		if format == "" || format == "standard" {
			// Standard is the absence of a format term.
			return s.setTerms(ctx, postID, TaxonomyFormat, nil, false)
		}
		term, err := s.repo.EnsureTerm(ctx, "post-format-"+format, TaxonomyFormat)
		if err != nil {
			return WrapError(CodeInternal, err, "ensure format %q", format)
		}
		if err := s.setTerms(ctx, postID, TaxonomyFormat, []int64{term.ID}, false); err != nil {
			return err
		}
	}

	return nil
}

func (s *service) applyAssignments(ctx context.Context, postID int64, assignments []termAssignment, appendTerms bool) error {
	for _, a := range assignments {
		if err := s.setTerms(ctx, postID, a.taxonomy, a.termIDs, appendTerms); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) setTerms(ctx context.Context, postID int64, taxonomy string, ids []int64, appendTerms bool) error {
	if err := s.repo.SetPostTerms(ctx, postID, taxonomy, ids, appendTerms); err != nil {
		return WrapError(CodeInternal, err, "set post terms in %q", taxonomy)
	}
	return s.hooks.executeAfterTermsSet(ctx, postID, taxonomy, ids)
}

func (s *service) typeHasTaxonomy(pt *PostType, taxonomy string) bool {
	for _, tx := range pt.Taxonomies {
		if tx == taxonomy {
			return true
		}
	}
	return false
}

// Post term operations

func (s *service) GetPostTerms(ctx context.Context, actor int64, postID int64) ([]*Term, error) {
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return nil, WrapError(CodeNotFound, err, "invalid post ID %d", postID)
	}
	pt, ok := s.registry.PostType(post.Type)
	if !ok {
		return nil, NewError(CodeInternal, "post %d has unregistered type %q", postID, post.Type)
	}
	if !s.gate.Allowed(ctx, actor, pt.Capabilities.EditPosts, postID) {
		return nil, NewError(CodeUnauthorized, "you cannot edit this post")
	}
	terms, err := s.repo.ListPostTerms(ctx, postID, s.registry.TaxonomiesFor(post.Type))
	if err != nil {
		return nil, WrapError(CodeInternal, err, "list post terms")
	}
	return terms, nil
}

func (s *service) SetPostTerms(ctx context.Context, actor int64, postID int64, terms map[string][]int64, appendTerms bool) error {
	post, err := s.repo.GetPost(ctx, postID)
	if err != nil {
		return WrapError(CodeNotFound, err, "invalid post ID %d", postID)
	}
	pt, ok := s.registry.PostType(post.Type)
	if !ok {
		return NewError(CodeInternal, "post %d has unregistered type %q", postID, post.Type)
	}
	if !s.gate.Allowed(ctx, actor, pt.Capabilities.EditPosts, postID) {
		return NewError(CodeUnauthorized, "you cannot edit this post")
	}
	for _, taxonomy := range sortedKeys(terms) {
		tx, ok := s.registry.Taxonomy(taxonomy)
		if !ok {
			return NewError(CodeInvalidArgument, "invalid taxonomy %q", taxonomy)
		}
		if !s.gate.Allowed(ctx, actor, tx.Capabilities.AssignTerms, 0) {
			return NewError(CodeUnauthorized, "you are not allowed to assign terms in this taxonomy")
		}
	}
	assignments, err := s.reconcileTerms(ctx, pt, terms)
	if err != nil {
		return err
	}
	return s.applyAssignments(ctx, postID, assignments, appendTerms)
}

// Term operations

func (s *service) CreateTerm(ctx context.Context, actor int64, req CreateTermRequest) (int64, error) {
	tx, ok := s.registry.Taxonomy(req.Taxonomy)
	if !ok {
		return 0, NewError(CodeNotFound, "invalid taxonomy %q", req.Taxonomy)
	}
	if !s.gate.Allowed(ctx, actor, tx.Capabilities.ManageTerms, 0) {
		return 0, NewError(CodeUnauthorized, "you are not allowed to create terms in this taxonomy")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return 0, NewError(CodeInvalidArgument, "the term name cannot be empty")
	}

	term := &Term{
		Taxonomy:    req.Taxonomy,
		Name:        name,
		Slug:        req.Slug,
		Description: req.Description,
	}
	if req.ParentID != nil && *req.ParentID != 0 {
		if !tx.Hierarchical {
			return 0, NewError(CodeInvalidArgument, "this taxonomy is not hierarchical")
		}
		if _, err := s.repo.GetTerm(ctx, *req.ParentID, req.Taxonomy); err != nil {
			return 0, WrapError(CodeNotFound, err, "parent term does not exist")
		}
		term.ParentID = *req.ParentID
	}

	created, err := s.repo.CreateTerm(ctx, term)
	if err != nil {
		return 0, WrapError(CodeInternal, err, "create term")
	}
	return created.ID, nil
}

func (s *service) EditTerm(ctx context.Context, actor int64, req EditTermRequest) (int64, error) {
	tx, ok := s.registry.Taxonomy(req.Taxonomy)
	if !ok {
		return 0, NewError(CodeNotFound, "invalid taxonomy %q", req.Taxonomy)
	}
	if !s.gate.Allowed(ctx, actor, tx.Capabilities.EditTerms, req.ID) {
		return 0, NewError(CodeUnauthorized, "you are not allowed to edit terms in this taxonomy")
	}

	term, err := s.repo.GetTerm(ctx, req.ID, req.Taxonomy)
	if err != nil {
		return 0, WrapError(CodeNotFound, err, "invalid term ID %d", req.ID)
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return 0, NewError(CodeInvalidArgument, "the term name cannot be empty")
		}
		term.Name = name
	}
	if req.Slug != nil {
		term.Slug = *req.Slug
	}
	if req.Description != nil {
		term.Description = *req.Description
	}
	if req.ParentID != nil {
		if !tx.Hierarchical {
			return 0, NewError(CodeInvalidArgument, "this taxonomy is not hierarchical")
		}
		if *req.ParentID != 0 {
			if _, err := s.repo.GetTerm(ctx, *req.ParentID, req.Taxonomy); err != nil {
				return 0, WrapError(CodeNotFound, err, "parent term does not exist")
			}
		}
		term.ParentID = *req.ParentID
	}

	updated, err := s.repo.UpdateTerm(ctx, term)
	if err != nil {
		return 0, WrapError(CodeInternal, err, "update term")
	}
	return updated.ID, nil
}

func (s *service) DeleteTerm(ctx context.Context, actor int64, taxonomy string, termID int64) (bool, error) {
	tx, ok := s.registry.Taxonomy(taxonomy)
	if !ok {
		return false, NewError(CodeNotFound, "invalid taxonomy %q", taxonomy)
	}
	if !s.gate.Allowed(ctx, actor, tx.Capabilities.DeleteTerms, termID) {
		return false, NewError(CodeUnauthorized, "you are not allowed to delete terms in this taxonomy")
	}
	if _, err := s.repo.GetTerm(ctx, termID, taxonomy); err != nil {
		return false, WrapError(CodeNotFound, err, "invalid term ID %d", termID)
	}
	ok, err := s.repo.DeleteTerm(ctx, termID, taxonomy)
	if err != nil {
		return false, WrapError(CodeInternal, err, "delete term")
	}
	return ok, nil
}

func (s *service) GetTerm(ctx context.Context, actor int64, taxonomy string, termID int64) (*Term, error) {
	tx, ok := s.registry.Taxonomy(taxonomy)
	if !ok {
		return nil, NewError(CodeNotFound, "invalid taxonomy %q", taxonomy)
	}
	if !s.gate.Allowed(ctx, actor, tx.Capabilities.AssignTerms, 0) {
		return nil, NewError(CodeUnauthorized, "you are not allowed to assign terms in this taxonomy")
	}
	term, err := s.repo.GetTerm(ctx, termID, taxonomy)
	if err != nil {
		return nil, WrapError(CodeNotFound, err, "invalid term ID %d", termID)
	}
	return term, nil
}

func (s *service) ListTerms(ctx context.Context, actor int64, taxonomy string, filter TermFilter) ([]*Term, error) {
	tx, ok := s.registry.Taxonomy(taxonomy)
	if !ok {
		return nil, NewError(CodeNotFound, "invalid taxonomy %q", taxonomy)
	}
	if !s.gate.Allowed(ctx, actor, tx.Capabilities.AssignTerms, 0) {
		return nil, NewError(CodeUnauthorized, "you are not allowed to assign terms in this taxonomy")
	}
	terms, err := s.repo.ListTerms(ctx, taxonomy, filter)
	if err != nil {
		return nil, WrapError(CodeInternal, err, "list terms")
	}
	return terms, nil
}

// Taxonomy operations

func (s *service) GetTaxonomy(ctx context.Context, actor int64, name string) (*TaxonomySchema, error) {
	tx, ok := s.registry.Taxonomy(name)
	if !ok {
		return nil, NewError(CodeNotFound, "invalid taxonomy %q", name)
	}
	if !s.gate.Allowed(ctx, actor, tx.Capabilities.AssignTerms, 0) {
		return nil, NewError(CodeUnauthorized, "you are not allowed to assign terms in this taxonomy")
	}
	return tx, nil
}

func (s *service) ListTaxonomies(ctx context.Context, actor int64) (map[string]*TaxonomySchema, error) {
	out := make(map[string]*TaxonomySchema)
	for _, tx := range s.registry.Taxonomies() {
		if !s.gate.Allowed(ctx, actor, tx.Capabilities.AssignTerms, 0) {
			continue
		}
		out[tx.Name] = tx
	}
	return out, nil
}

// dedupeIDs removes duplicate ids preserving first-seen order.
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// sortedKeys gives a deterministic walk order; terminal-first-failure
// semantics depend on it.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
