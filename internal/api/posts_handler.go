package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// PostsHandler handles HTTP requests for posts
type PostsHandler struct {
	service simplepublish.Service
}

// NewPostsHandler creates a new posts handler
func NewPostsHandler(service simplepublish.Service) *PostsHandler {
	return &PostsHandler{service: service}
}

// Routes returns the routes for posts
func (h *PostsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreatePost)
	r.Get("/", h.ListPosts)
	r.Get("/{id}", h.GetPost)
	r.Put("/{id}", h.EditPost)
	r.Post("/delete", h.DeletePosts)

	r.Get("/{id}/terms", h.GetPostTerms)
	r.Put("/{id}/terms", h.SetPostTerms)

	return r
}

// CreatePost creates a new post
func (h *PostsHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	var req simplepublish.CreatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, simplepublish.WrapError(simplepublish.CodeInvalidArgument, err, "invalid request body"))
		return
	}
	if req.Type == "" {
		req.Type = simplepublish.TypePost
	}

	id, err := h.service.CreatePost(r.Context(), ActorID(r.Context()), req)
	if err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]int64{"post_id": id})
}

// EditPost updates an existing post
func (h *PostsHandler) EditPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req simplepublish.EditPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, simplepublish.WrapError(simplepublish.CodeInvalidArgument, err, "invalid request body"))
		return
	}
	req.ID = id

	if _, err := h.service.EditPost(r.Context(), ActorID(r.Context()), req); err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"ok": true})
}

// DeletePostsRequest is the request body for batch deletion
type DeletePostsRequest struct {
	IDs []int64 `json:"post_ids"`
}

// DeletePosts deletes a batch of posts, all-or-nothing on validation
func (h *PostsHandler) DeletePosts(w http.ResponseWriter, r *http.Request) {
	var req DeletePostsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, simplepublish.WrapError(simplepublish.CodeInvalidArgument, err, "invalid request body"))
		return
	}

	deleted, err := h.service.DeletePosts(r.Context(), ActorID(r.Context()), req.IDs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, map[string][]int64{"deleted": deleted})
}

// GetPost retrieves a single post projection
func (h *PostsHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	projection, err := h.service.GetPost(r.Context(), ActorID(r.Context()), id, fieldsParam(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, projection)
}

// ListPosts lists post projections restricted by filter
func (h *PostsHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	filter := simplepublish.PostFilter{
		Type:    r.URL.Query().Get("post_type"),
		Status:  simplepublish.PostStatus(r.URL.Query().Get("post_status")),
		OrderBy: r.URL.Query().Get("orderby"),
		Order:   r.URL.Query().Get("order"),
	}
	if v := r.URL.Query().Get("number"); v != "" {
		filter.Number, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	posts, err := h.service.ListPosts(r.Context(), ActorID(r.Context()), filter, fieldsParam(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, posts)
}

// GetPostTerms lists the terms assigned to a post
func (h *PostsHandler) GetPostTerms(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	terms, err := h.service.GetPostTerms(r.Context(), ActorID(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, terms)
}

// SetPostTermsRequest is the request body for assigning terms
type SetPostTermsRequest struct {
	Terms  map[string][]int64 `json:"terms"`
	Append bool               `json:"append"`
}

// SetPostTerms replaces or appends a post's term assignments
func (h *PostsHandler) SetPostTerms(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req SetPostTermsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, simplepublish.WrapError(simplepublish.CodeInvalidArgument, err, "invalid request body"))
		return
	}

	if err := h.service.SetPostTerms(r.Context(), ActorID(r.Context()), id, req.Terms, req.Append); err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"ok": true})
}

// PostTypesHandler handles HTTP requests for post type schemas
type PostTypesHandler struct {
	service simplepublish.Service
}

// NewPostTypesHandler creates a new post types handler
func NewPostTypesHandler(service simplepublish.Service) *PostTypesHandler {
	return &PostTypesHandler{service: service}
}

// Routes returns the routes for post types
func (h *PostTypesHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListPostTypes)
	r.Get("/{name}", h.GetPostType)
	return r
}

// GetPostType retrieves a post type schema
func (h *PostTypesHandler) GetPostType(w http.ResponseWriter, r *http.Request) {
	pt, err := h.service.GetPostType(r.Context(), ActorID(r.Context()), chi.URLParam(r, "name"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, pt)
}

// ListPostTypes lists the post type schemas the actor may edit
func (h *PostTypesHandler) ListPostTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.service.ListPostTypes(r.Context(), ActorID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, types)
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, simplepublish.NewError(simplepublish.CodeInvalidArgument, "invalid %s", name)
	}
	return id, nil
}

// fieldsParam parses the comma-separated fields selector, defaulting to the
// full post and taxonomy groups plus custom fields.
func fieldsParam(r *http.Request) simplepublish.FieldSet {
	raw := r.URL.Query().Get("fields")
	if raw == "" {
		return simplepublish.DefaultFields()
	}
	var tokens []string
	for _, tok := range strings.Split(raw, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return simplepublish.NewFieldSet(tokens...)
}
