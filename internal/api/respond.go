package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"
	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// ErrorResponse is the wire shape of a failed call.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var e *simplepublish.Error
	if errors.As(err, &e) {
		render.Status(r, e.Code.HTTPStatus())
		render.JSON(w, r, ErrorResponse{Code: string(e.Code), Message: e.Message})
		return
	}
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, ErrorResponse{Code: string(simplepublish.CodeInternal), Message: "internal error"})
}
