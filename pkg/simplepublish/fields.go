package simplepublish

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Wire field names accepted by the read path. Clients select fields by
// concrete name or by conceptual group; group tokens expand through
// fieldGroups below.
const (
	FieldPostID       = "postid"
	FieldTitle        = "title"
	FieldDate         = "post_date"
	FieldDateGMT      = "post_date_gmt"
	FieldModified     = "post_modified"
	FieldModifiedGMT  = "post_modified_gmt"
	FieldStatus       = "post_status"
	FieldType         = "post_type"
	FieldFormat       = "post_format"
	FieldSlug         = "wp_slug"
	FieldLink         = "link"
	FieldPermalink    = "permaLink"
	FieldUserID       = "userid"
	FieldAuthorID     = "wp_author_id"
	FieldComments     = "mt_allow_comments"
	FieldPings        = "mt_allow_pings"
	FieldSticky       = "sticky"
	FieldPassword     = "wp_password"
	FieldExcerpt      = "mt_excerpt"
	FieldDescription  = "description"
	FieldTextMore     = "mt_text_more"
	FieldTerms        = "terms"
	FieldKeywords     = "mt_keywords"
	FieldCategories   = "categories"
	FieldCustomFields = "custom_fields"
	FieldEnclosure    = "enclosure"

	// Group tokens.
	GroupPost       = "post"
	GroupTaxonomies = "taxonomies"
)

// fieldGroups is the fixed expansion table from conceptual group to the
// concrete fields it implies. custom_fields and enclosure belong to no
// group: they are included only when requested by name.
var fieldGroups = map[string][]string{
	GroupPost: {
		FieldTitle, FieldDate, FieldDateGMT, FieldModified, FieldModifiedGMT,
		FieldStatus, FieldType, FieldFormat, FieldSlug, FieldLink,
		FieldPermalink, FieldUserID, FieldAuthorID, FieldComments, FieldPings,
		FieldSticky, FieldPassword, FieldExcerpt, FieldDescription,
	},
	GroupTaxonomies: {
		FieldTerms, FieldKeywords, FieldCategories,
	},
}

// projectionTimeLayout is the legacy compact timestamp form the wire format
// uses. Stored local and GMT values serialize independently through it; no
// timezone conversion happens at read time.
const projectionTimeLayout = "20060102T15:04:05"

// FieldSet is a resolved field selection: explicit concrete names plus any
// requested groups. The zero value selects nothing; use DefaultFields for
// the read path's default selection.
type FieldSet struct {
	names  map[string]bool
	groups map[string]bool
}

// NewFieldSet resolves request tokens into a field set. A token matching a
// group name selects the group; anything else is treated as a concrete
// field name.
func NewFieldSet(tokens ...string) FieldSet {
	fs := FieldSet{
		names:  make(map[string]bool),
		groups: make(map[string]bool),
	}
	for _, tok := range tokens {
		if _, ok := fieldGroups[tok]; ok {
			fs.groups[tok] = true
			continue
		}
		fs.names[tok] = true
	}
	return fs
}

// DefaultFields is the selection used when a request names no fields.
func DefaultFields() FieldSet {
	return NewFieldSet(GroupPost, GroupTaxonomies, FieldCustomFields)
}

// Has reports whether the concrete field is selected, either explicitly or
// through a requested group.
func (fs FieldSet) Has(field string) bool {
	if fs.names[field] {
		return true
	}
	for group := range fs.groups {
		for _, f := range fieldGroups[group] {
			if f == field {
				return true
			}
		}
	}
	return false
}

// Tokens returns the raw selection, groups first, for logging.
func (fs FieldSet) Tokens() []string {
	out := make([]string, 0, len(fs.groups)+len(fs.names))
	for g := range fs.groups {
		out = append(out, g)
	}
	for n := range fs.names {
		out = append(out, n)
	}
	return out
}

// ProjectionFilter is the extension point run after core projection. Filters
// run in registration order, exactly once per projection, and may add,
// remove, or rewrite keys in place.
type ProjectionFilter func(projection map[string]any, post *Post, fields FieldSet)

// projectPost serializes a post into the wire map restricted by fields.
// Authorization has already happened by the time this runs.
func (s *service) projectPost(ctx context.Context, post *Post, fields FieldSet) (map[string]any, error) {
	out := map[string]any{FieldPostID: post.ID}

	if fields.Has(FieldTitle) {
		out[FieldTitle] = post.Title
	}
	if fields.Has(FieldDate) {
		out[FieldDate] = post.Date.Format(projectionTimeLayout)
	}
	if fields.Has(FieldDateGMT) {
		out[FieldDateGMT] = post.DateGMT.Format(projectionTimeLayout)
	}
	if fields.Has(FieldModified) {
		out[FieldModified] = post.Modified.Format(projectionTimeLayout)
	}
	if fields.Has(FieldModifiedGMT) {
		out[FieldModifiedGMT] = post.ModifiedGMT.Format(projectionTimeLayout)
	}
	if fields.Has(FieldStatus) {
		// Scheduled posts read as published; storage is untouched.
		if post.Status == StatusFuture {
			out[FieldStatus] = string(StatusPublish)
		} else {
			out[FieldStatus] = string(post.Status)
		}
	}
	if fields.Has(FieldType) {
		out[FieldType] = post.Type
	}
	if fields.Has(FieldSlug) {
		out[FieldSlug] = post.Slug
	}
	if fields.Has(FieldLink) || fields.Has(FieldPermalink) {
		link := s.permalink(post)
		if fields.Has(FieldLink) {
			out[FieldLink] = link
		}
		if fields.Has(FieldPermalink) {
			out[FieldPermalink] = link
		}
	}
	if fields.Has(FieldUserID) {
		out[FieldUserID] = post.AuthorID
	}
	if fields.Has(FieldAuthorID) {
		out[FieldAuthorID] = post.AuthorID
	}
	if fields.Has(FieldComments) {
		out[FieldComments] = string(post.CommentPolicy)
	}
	if fields.Has(FieldPings) {
		out[FieldPings] = string(post.PingPolicy)
	}
	if fields.Has(FieldSticky) {
		// Only the base type carries the flag; everything else reads false.
		out[FieldSticky] = post.Type == TypePost && post.Sticky
	}
	if fields.Has(FieldPassword) {
		out[FieldPassword] = post.Password
	}
	if fields.Has(FieldExcerpt) {
		out[FieldExcerpt] = post.Excerpt
	}
	if fields.Has(FieldDescription) {
		main, extended := splitMore(post.Content)
		out[FieldDescription] = main
		out[FieldTextMore] = extended
	}

	if fields.Has(FieldFormat) {
		format, err := s.postFormat(ctx, post)
		if err != nil {
			return nil, err
		}
		out[FieldFormat] = format
	}

	if fields.Has(FieldTerms) {
		terms, err := s.repo.ListPostTerms(ctx, post.ID, s.registry.TaxonomiesFor(post.Type))
		if err != nil {
			return nil, WrapError(CodeInternal, err, "list post terms")
		}
		out[FieldTerms] = terms
	}
	if fields.Has(FieldKeywords) {
		tags, err := s.repo.ListPostTerms(ctx, post.ID, []string{TaxonomyTag})
		if err != nil {
			return nil, WrapError(CodeInternal, err, "list post tags")
		}
		names := make([]string, 0, len(tags))
		for _, t := range tags {
			names = append(names, t.Name)
		}
		out[FieldKeywords] = strings.Join(names, ", ")
	}
	if fields.Has(FieldCategories) {
		cats, err := s.repo.ListPostTerms(ctx, post.ID, []string{TaxonomyCategory})
		if err != nil {
			return nil, WrapError(CodeInternal, err, "list post categories")
		}
		names := make([]string, 0, len(cats))
		for _, c := range cats {
			names = append(names, c.Name)
		}
		out[FieldCategories] = names
	}

	if fields.Has(FieldCustomFields) {
		cf, err := s.repo.GetCustomFields(ctx, post.ID)
		if err != nil {
			return nil, WrapError(CodeInternal, err, "get custom fields")
		}
		out[FieldCustomFields] = cf
	}
	if fields.Has(FieldEnclosure) {
		cf, err := s.repo.GetCustomFields(ctx, post.ID)
		if err != nil {
			return nil, WrapError(CodeInternal, err, "get custom fields")
		}
		out[FieldEnclosure] = enclosureFromFields(cf)
	}

	for _, f := range s.projectionFilters {
		f(out, post, fields)
	}
	return out, nil
}

func (s *service) permalink(post *Post) string {
	if post.Slug != "" {
		return fmt.Sprintf("%s/%s", strings.TrimRight(s.baseURL, "/"), post.Slug)
	}
	return fmt.Sprintf("%s/?p=%d", strings.TrimRight(s.baseURL, "/"), post.ID)
}

// postFormat reads the assigned format term, defaulting to "standard".
func (s *service) postFormat(ctx context.Context, post *Post) (string, error) {
	terms, err := s.repo.ListPostTerms(ctx, post.ID, []string{TaxonomyFormat})
	if err != nil {
		return "", WrapError(CodeInternal, err, "list post formats")
	}
	if len(terms) == 0 {
		return "standard", nil
	}
	return strings.TrimPrefix(terms[0].Name, "post-format-"), nil
}

// splitMore divides a body into its lead and extended parts.
func splitMore(content string) (main, extended string) {
	main, extended, found := strings.Cut(content, moreSeparator)
	if !found {
		return content, ""
	}
	return strings.TrimRight(main, "\n"), strings.TrimLeft(extended, "\n")
}

// enclosureFromFields parses the first stored enclosure value. The custom
// field holds "url\nlength\ntype"; first match wins.
func enclosureFromFields(fields map[string][]string) *Enclosure {
	values := fields["enclosure"]
	if len(values) == 0 {
		return nil
	}
	parts := strings.SplitN(values[0], "\n", 3)
	enc := &Enclosure{URL: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		enc.Length, _ = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	}
	if len(parts) > 2 {
		enc.Type = strings.TrimSpace(parts[2])
	}
	return enc
}

// encodeEnclosure is the inverse of enclosureFromFields.
func encodeEnclosure(enc *Enclosure) string {
	return fmt.Sprintf("%s\n%d\n%s", enc.URL, enc.Length, enc.Type)
}
