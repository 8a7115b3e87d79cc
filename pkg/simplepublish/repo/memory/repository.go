package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// Repository implements simplepublish.Repository using in-memory storage.
// Intended for tests and local development.
type Repository struct {
	mu sync.RWMutex

	posts        map[int64]*simplepublish.Post
	customFields map[int64]map[string][]string // post_id -> key -> values
	terms        map[int64]*simplepublish.Term
	termsByName  map[string]int64          // "taxonomy\x00name" -> term_id
	assignments  map[int64]map[string][]int64 // post_id -> taxonomy -> term_ids
	users        map[int64]*simplepublish.User

	nextPostID int64
	nextTermID int64
	nextUserID int64
}

// New creates a new in-memory repository.
func New() simplepublish.Repository {
	return &Repository{
		posts:        make(map[int64]*simplepublish.Post),
		customFields: make(map[int64]map[string][]string),
		terms:        make(map[int64]*simplepublish.Term),
		termsByName:  make(map[string]int64),
		assignments:  make(map[int64]map[string][]int64),
		users:        make(map[int64]*simplepublish.User),
	}
}

func termKey(taxonomy, name string) string {
	return taxonomy + "\x00" + strings.ToLower(name)
}

// Post operations

func (r *Repository) CreatePost(ctx context.Context, post *simplepublish.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextPostID++
	postCopy := *post
	postCopy.ID = r.nextPostID
	r.posts[postCopy.ID] = &postCopy

	return postCopy.ID, nil
}

func (r *Repository) UpdatePost(ctx context.Context, post *simplepublish.Post) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[post.ID]; !exists {
		return 0, simplepublish.ErrPostNotFound
	}
	postCopy := *post
	r.posts[post.ID] = &postCopy

	return post.ID, nil
}

func (r *Repository) DeletePost(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[id]; !exists {
		return false, nil
	}
	delete(r.posts, id)
	delete(r.customFields, id)
	r.dropAssignments(id)

	return true, nil
}

func (r *Repository) GetPost(ctx context.Context, id int64) (*simplepublish.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	post, exists := r.posts[id]
	if !exists {
		return nil, simplepublish.ErrPostNotFound
	}
	postCopy := *post
	return &postCopy, nil
}

func (r *Repository) ListPosts(ctx context.Context, filter simplepublish.PostFilter) ([]*simplepublish.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var posts []*simplepublish.Post
	for _, post := range r.posts {
		if filter.Type != "" && post.Type != filter.Type {
			continue
		}
		if filter.Status != "" && post.Status != filter.Status {
			continue
		}
		if filter.ParentID != nil && post.ParentID != *filter.ParentID {
			continue
		}
		postCopy := *post
		posts = append(posts, &postCopy)
	}

	sortPosts(posts, filter.OrderBy, filter.Order)
	return paginate(posts, filter.Offset, filter.Number), nil
}

func sortPosts(posts []*simplepublish.Post, orderBy, order string) {
	desc := !strings.EqualFold(order, "ASC")
	sort.Slice(posts, func(i, j int) bool {
		var less bool
		switch orderBy {
		case "title":
			less = posts[i].Title < posts[j].Title
		case "modified":
			less = posts[i].Modified.Before(posts[j].Modified)
		default:
			// Newest first by default, id as tiebreaker.
			if !posts[i].Date.Equal(posts[j].Date) {
				less = posts[i].Date.Before(posts[j].Date)
			} else {
				less = posts[i].ID < posts[j].ID
			}
		}
		if desc {
			return !less
		}
		return less
	})
}

func paginate[T any](items []T, offset, number int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if number > 0 && number < len(items) {
		items = items[:number]
	}
	return items
}

// Custom field operations

func (r *Repository) GetCustomFields(ctx context.Context, postID int64) (map[string][]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.posts[postID]; !exists {
		return nil, simplepublish.ErrPostNotFound
	}
	out := make(map[string][]string, len(r.customFields[postID]))
	for k, values := range r.customFields[postID] {
		out[k] = append([]string(nil), values...)
	}
	return out, nil
}

func (r *Repository) SetCustomFields(ctx context.Context, postID int64, fields map[string][]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[postID]; !exists {
		return simplepublish.ErrPostNotFound
	}
	stored := r.customFields[postID]
	if stored == nil {
		stored = make(map[string][]string)
		r.customFields[postID] = stored
	}
	for k, values := range fields {
		if len(values) == 0 {
			delete(stored, k)
			continue
		}
		stored[k] = append([]string(nil), values...)
	}
	return nil
}

func (r *Repository) AddCustomField(ctx context.Context, postID int64, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[postID]; !exists {
		return simplepublish.ErrPostNotFound
	}
	if r.customFields[postID] == nil {
		r.customFields[postID] = make(map[string][]string)
	}
	r.customFields[postID][key] = append(r.customFields[postID][key], value)
	return nil
}

// Term operations

func (r *Repository) CreateTerm(ctx context.Context, term *simplepublish.Term) (*simplepublish.Term, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := termKey(term.Taxonomy, term.Name)
	if _, exists := r.termsByName[key]; exists {
		return nil, simplepublish.ErrDuplicateTerm
	}

	r.nextTermID++
	termCopy := *term
	termCopy.ID = r.nextTermID
	if termCopy.Slug == "" {
		termCopy.Slug = slugify(termCopy.Name)
	}
	r.terms[termCopy.ID] = &termCopy
	r.termsByName[key] = termCopy.ID

	out := termCopy
	return &out, nil
}

func (r *Repository) UpdateTerm(ctx context.Context, term *simplepublish.Term) (*simplepublish.Term, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.terms[term.ID]
	if !exists || existing.Taxonomy != term.Taxonomy {
		return nil, simplepublish.ErrTermNotFound
	}

	termCopy := *term
	termCopy.Count = existing.Count
	delete(r.termsByName, termKey(existing.Taxonomy, existing.Name))
	r.termsByName[termKey(termCopy.Taxonomy, termCopy.Name)] = termCopy.ID
	r.terms[term.ID] = &termCopy

	out := termCopy
	return &out, nil
}

func (r *Repository) DeleteTerm(ctx context.Context, id int64, taxonomy string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	term, exists := r.terms[id]
	if !exists || term.Taxonomy != taxonomy {
		return false, nil
	}
	delete(r.termsByName, termKey(term.Taxonomy, term.Name))
	delete(r.terms, id)
	for _, byTaxonomy := range r.assignments {
		byTaxonomy[taxonomy] = removeID(byTaxonomy[taxonomy], id)
	}
	return true, nil
}

func (r *Repository) GetTerm(ctx context.Context, id int64, taxonomy string) (*simplepublish.Term, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	term, exists := r.terms[id]
	if !exists || term.Taxonomy != taxonomy {
		return nil, simplepublish.ErrTermNotFound
	}
	termCopy := *term
	return &termCopy, nil
}

func (r *Repository) GetTermByName(ctx context.Context, name, taxonomy string) (*simplepublish.Term, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.termsByName[termKey(taxonomy, name)]
	if !exists {
		return nil, simplepublish.ErrTermNotFound
	}
	termCopy := *r.terms[id]
	return &termCopy, nil
}

func (r *Repository) ListTerms(ctx context.Context, taxonomy string, filter simplepublish.TermFilter) ([]*simplepublish.Term, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var terms []*simplepublish.Term
	for _, term := range r.terms {
		if term.Taxonomy != taxonomy {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(term.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.HideEmpty && term.Count == 0 {
			continue
		}
		termCopy := *term
		terms = append(terms, &termCopy)
	}
	sort.Slice(terms, func(i, j int) bool { return terms[i].Name < terms[j].Name })
	return paginate(terms, filter.Offset, filter.Number), nil
}

func (r *Repository) EnsureTerm(ctx context.Context, name, taxonomy string) (*simplepublish.Term, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.termsByName[termKey(taxonomy, name)]; exists {
		termCopy := *r.terms[id]
		return &termCopy, nil
	}

	r.nextTermID++
	term := &simplepublish.Term{
		ID:       r.nextTermID,
		Taxonomy: taxonomy,
		Name:     name,
		Slug:     slugify(name),
	}
	r.terms[term.ID] = term
	r.termsByName[termKey(taxonomy, name)] = term.ID

	termCopy := *term
	return &termCopy, nil
}

func (r *Repository) SetPostTerms(ctx context.Context, postID int64, taxonomy string, termIDs []int64, appendTerms bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.posts[postID]; !exists {
		return simplepublish.ErrPostNotFound
	}
	for _, id := range termIDs {
		term, exists := r.terms[id]
		if !exists || term.Taxonomy != taxonomy {
			return simplepublish.ErrTermNotFound
		}
	}

	byTaxonomy := r.assignments[postID]
	if byTaxonomy == nil {
		byTaxonomy = make(map[string][]int64)
		r.assignments[postID] = byTaxonomy
	}

	prior := byTaxonomy[taxonomy]
	next := termIDs
	if appendTerms {
		next = append(append([]int64(nil), prior...), termIDs...)
		next = dedupe(next)
	} else {
		next = dedupe(append([]int64(nil), termIDs...))
	}
	byTaxonomy[taxonomy] = next

	r.adjustCounts(prior, -1)
	r.adjustCounts(next, +1)
	return nil
}

func (r *Repository) ListPostTerms(ctx context.Context, postID int64, taxonomies []string) ([]*simplepublish.Term, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, exists := r.posts[postID]; !exists {
		return nil, simplepublish.ErrPostNotFound
	}

	byTaxonomy := r.assignments[postID]
	var terms []*simplepublish.Term
	for _, taxonomy := range taxonomies {
		for _, id := range byTaxonomy[taxonomy] {
			term, exists := r.terms[id]
			if !exists {
				continue
			}
			termCopy := *term
			terms = append(terms, &termCopy)
		}
	}
	return terms, nil
}

// dropAssignments removes a deleted post's term links and fixes counts.
// Caller holds the write lock.
func (r *Repository) dropAssignments(postID int64) {
	for _, ids := range r.assignments[postID] {
		r.adjustCounts(ids, -1)
	}
	delete(r.assignments, postID)
}

// adjustCounts applies delta to each term's usage count. Caller holds the
// write lock.
func (r *Repository) adjustCounts(ids []int64, delta int64) {
	for _, id := range ids {
		if term, exists := r.terms[id]; exists {
			term.Count += delta
			if term.Count < 0 {
				term.Count = 0
			}
		}
	}
}

// User operations

func (r *Repository) CreateUser(ctx context.Context, user *simplepublish.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Login, user.Login) {
			return 0, simplepublish.ErrDuplicateLogin
		}
		if strings.EqualFold(existing.Email, user.Email) {
			return 0, simplepublish.ErrDuplicateEmail
		}
	}

	r.nextUserID++
	userCopy := *user
	userCopy.ID = r.nextUserID
	userCopy.ContactMethods = copyContacts(user.ContactMethods)
	r.users[userCopy.ID] = &userCopy

	return userCopy.ID, nil
}

func (r *Repository) UpdateUser(ctx context.Context, user *simplepublish.User) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[user.ID]; !exists {
		return 0, simplepublish.ErrUserNotFound
	}
	for _, existing := range r.users {
		if existing.ID != user.ID && strings.EqualFold(existing.Email, user.Email) {
			return 0, simplepublish.ErrDuplicateEmail
		}
	}
	userCopy := *user
	userCopy.ContactMethods = copyContacts(user.ContactMethods)
	r.users[user.ID] = &userCopy

	return user.ID, nil
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.users[id]; !exists {
		return false, nil
	}
	delete(r.users, id)
	return true, nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (*simplepublish.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, exists := r.users[id]
	if !exists {
		return nil, simplepublish.ErrUserNotFound
	}
	userCopy := *user
	userCopy.ContactMethods = copyContacts(user.ContactMethods)
	return &userCopy, nil
}

func (r *Repository) GetUserByLogin(ctx context.Context, login string) (*simplepublish.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Login, login) {
			userCopy := *user
			userCopy.ContactMethods = copyContacts(user.ContactMethods)
			return &userCopy, nil
		}
	}
	return nil, simplepublish.ErrUserNotFound
}

func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*simplepublish.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			userCopy := *user
			userCopy.ContactMethods = copyContacts(user.ContactMethods)
			return &userCopy, nil
		}
	}
	return nil, simplepublish.ErrUserNotFound
}

func (r *Repository) ListUsers(ctx context.Context, filter simplepublish.UserFilter) ([]*simplepublish.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var users []*simplepublish.User
	for _, user := range r.users {
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		userCopy := *user
		userCopy.ContactMethods = copyContacts(user.ContactMethods)
		users = append(users, &userCopy)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return paginate(users, filter.Offset, filter.Number), nil
}

func copyContacts(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func removeID(ids []int64, id int64) []int64 {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

func dedupe(ids []int64) []int64 {
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

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	return slug
}
