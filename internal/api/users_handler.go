package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// UsersHandler handles HTTP requests for user accounts
type UsersHandler struct {
	service simplepublish.Service
}

// NewUsersHandler creates a new users handler
func NewUsersHandler(service simplepublish.Service) *UsersHandler {
	return &UsersHandler{service: service}
}

// Routes returns the routes for users
func (h *UsersHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.CreateUser)
	r.Get("/", h.ListUsers)
	r.Get("/me", h.GetSelf)
	r.Get("/{id}", h.GetUser)
	r.Put("/{id}", h.EditUser)
	r.Post("/delete", h.DeleteUsers)

	return r
}

// CreateUser creates a new user account
func (h *UsersHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req simplepublish.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, simplepublish.WrapError(simplepublish.CodeInvalidArgument, err, "invalid request body"))
		return
	}

	id, err := h.service.CreateUser(r.Context(), ActorID(r.Context()), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]int64{"user_id": id})
}

// EditUser updates an existing user account
func (h *UsersHandler) EditUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req simplepublish.EditUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, simplepublish.WrapError(simplepublish.CodeInvalidArgument, err, "invalid request body"))
		return
	}
	req.ID = id

	if _, err := h.service.EditUser(r.Context(), ActorID(r.Context()), req); err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"ok": true})
}

// DeleteUsersRequest is the request body for batch deletion
type DeleteUsersRequest struct {
	IDs []int64 `json:"user_ids"`
}

// DeleteUsers deletes a batch of users, all-or-nothing on validation
func (h *UsersHandler) DeleteUsers(w http.ResponseWriter, r *http.Request) {
	var req DeleteUsersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, simplepublish.WrapError(simplepublish.CodeInvalidArgument, err, "invalid request body"))
		return
	}

	deleted, err := h.service.DeleteUsers(r.Context(), ActorID(r.Context()), req.IDs)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, map[string][]int64{"deleted": deleted})
}

// GetSelf retrieves the authenticated user's own profile
func (h *UsersHandler) GetSelf(w http.ResponseWriter, r *http.Request) {
	actor := ActorID(r.Context())
	profile, err := h.service.GetUser(r.Context(), actor, actor)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, profile)
}

// GetUser retrieves a user profile projection
func (h *UsersHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	profile, err := h.service.GetUser(r.Context(), ActorID(r.Context()), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, profile)
}

// ListUsers lists user profiles restricted by filter
func (h *UsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	filter := simplepublish.UserFilter{
		Role: r.URL.Query().Get("role"),
	}
	if v := r.URL.Query().Get("number"); v != "" {
		filter.Number, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	users, err := h.service.ListUsers(r.Context(), ActorID(r.Context()), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, users)
}
