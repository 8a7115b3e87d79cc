package api

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// maxUploadBytes caps a single media upload.
const maxUploadBytes = 64 << 20

// MediaHandler handles HTTP requests for media uploads
type MediaHandler struct {
	service simplepublish.Service
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(service simplepublish.Service) *MediaHandler {
	return &MediaHandler{service: service}
}

// Routes returns the routes for media
func (h *MediaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Upload)
	return r
}

// UploadResponse is the response body for a completed upload
type UploadResponse struct {
	PostID int64  `json:"post_id"`
	URL    string `json:"url"`
}

// Upload accepts a multipart file, stores it, and registers the attachment
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, r, simplepublish.WrapError(simplepublish.CodeInvalidArgument, err, "invalid multipart body"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, r, simplepublish.WrapError(simplepublish.CodeInvalidArgument, err, "missing file part"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, simplepublish.WrapError(simplepublish.CodeInternal, err, "read upload"))
		return
	}

	post, url, err := h.service.CreateAttachment(r.Context(), ActorID(r.Context()), simplepublish.CreateAttachmentRequest{
		FileName: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{PostID: post.ID, URL: url})
}
