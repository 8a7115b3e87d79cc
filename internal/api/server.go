package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/tendant/simple-publish/pkg/simplepublish"
)

// Server wires the HTTP routes over a simplepublish.Service.
type Server struct {
	router    chi.Router
	tokenAuth *jwtauth.JWTAuth
}

// NewServer builds the router. All API routes require a valid HS256 bearer
// token carrying a numeric user_id claim.
func NewServer(service simplepublish.Service, logger *slog.Logger, jwtSecret string) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		tokenAuth: jwtauth.New("HS256", []byte(jwtSecret), nil),
	}

	s.router.Use(RequestID)
	s.router.Use(RequestLogger(logger))
	s.router.Use(render.SetContentType(render.ContentTypeJSON))

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(jwtauth.Verifier(s.tokenAuth))
		r.Use(jwtauth.Authenticator)
		r.Use(Actor)

		r.Mount("/posts", NewPostsHandler(service).Routes())
		r.Mount("/post-types", NewPostTypesHandler(service).Routes())
		r.Mount("/taxonomies", NewTermsHandler(service).Routes())
		r.Mount("/users", NewUsersHandler(service).Routes())
		r.Mount("/media", NewMediaHandler(service).Routes())
	})

	return s
}

// Router returns the configured router.
func (s *Server) Router() chi.Router {
	return s.router
}

// TokenAuth exposes the JWT authority, used by tests to mint tokens.
func (s *Server) TokenAuth() *jwtauth.JWTAuth {
	return s.tokenAuth
}
