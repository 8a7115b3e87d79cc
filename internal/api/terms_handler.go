package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// TermsHandler handles HTTP requests for taxonomies and their terms
type TermsHandler struct {
	service simplepublish.Service
}

// NewTermsHandler creates a new terms handler
func NewTermsHandler(service simplepublish.Service) *TermsHandler {
	return &TermsHandler{service: service}
}

// Routes returns the routes for taxonomies and terms
func (h *TermsHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListTaxonomies)
	r.Get("/{taxonomy}", h.GetTaxonomy)

	r.Post("/{taxonomy}/terms", h.CreateTerm)
	r.Get("/{taxonomy}/terms", h.ListTerms)
	r.Get("/{taxonomy}/terms/{id}", h.GetTerm)
	r.Put("/{taxonomy}/terms/{id}", h.EditTerm)
	r.Delete("/{taxonomy}/terms/{id}", h.DeleteTerm)

	return r
}

// ListTaxonomies lists the taxonomy schemas the actor may assign within
func (h *TermsHandler) ListTaxonomies(w http.ResponseWriter, r *http.Request) {
	taxonomies, err := h.service.ListTaxonomies(r.Context(), ActorID(r.Context()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, taxonomies)
}

// GetTaxonomy retrieves a taxonomy schema
func (h *TermsHandler) GetTaxonomy(w http.ResponseWriter, r *http.Request) {
	tx, err := h.service.GetTaxonomy(r.Context(), ActorID(r.Context()), chi.URLParam(r, "taxonomy"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, tx)
}

// CreateTerm creates a new term in a taxonomy
func (h *TermsHandler) CreateTerm(w http.ResponseWriter, r *http.Request) {
	var req simplepublish.CreateTermRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, simplepublish.WrapError(simplepublish.CodeInvalidArgument, err, "invalid request body"))
		return
	}
	req.Taxonomy = chi.URLParam(r, "taxonomy")

	id, err := h.service.CreateTerm(r.Context(), ActorID(r.Context()), req)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, map[string]int64{"term_id": id})
}

// EditTerm updates an existing term
func (h *TermsHandler) EditTerm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req simplepublish.EditTermRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, simplepublish.WrapError(simplepublish.CodeInvalidArgument, err, "invalid request body"))
		return
	}
	req.ID = id
	req.Taxonomy = chi.URLParam(r, "taxonomy")

	if _, err := h.service.EditTerm(r.Context(), ActorID(r.Context()), req); err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"ok": true})
}

// DeleteTerm removes a term from a taxonomy
func (h *TermsHandler) DeleteTerm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	deleted, err := h.service.DeleteTerm(r.Context(), ActorID(r.Context()), chi.URLParam(r, "taxonomy"), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"deleted": deleted})
}

// GetTerm retrieves a single term
func (h *TermsHandler) GetTerm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		respondError(w, r, err)
		return
	}

	term, err := h.service.GetTerm(r.Context(), ActorID(r.Context()), chi.URLParam(r, "taxonomy"), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, term)
}

// ListTerms lists a taxonomy's terms restricted by filter
func (h *TermsHandler) ListTerms(w http.ResponseWriter, r *http.Request) {
	filter := simplepublish.TermFilter{
		Search:    r.URL.Query().Get("search"),
		HideEmpty: r.URL.Query().Get("hide_empty") == "true",
	}
	if v := r.URL.Query().Get("number"); v != "" {
		filter.Number, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		filter.Offset, _ = strconv.Atoi(v)
	}

	terms, err := h.service.ListTerms(r.Context(), ActorID(r.Context()), chi.URLParam(r, "taxonomy"), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	render.JSON(w, r, terms)
}
