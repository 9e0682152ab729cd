package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/social-text-api/internal/api/middleware"
)

// buildRouter assembles the HTTP routing table. Auth endpoints are
// public; everything under /posts requires a valid access token.
func (app *application) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.TraceMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", app.authHandler.Signup)
		r.Post("/auth/login", app.authHandler.Login)
		r.Post("/auth/refresh", app.authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(app.authMiddleware.Authenticate)

			r.Post("/posts", app.postHandler.CreatePost)
			r.Get("/posts", app.postHandler.ListPosts)
			r.Get("/posts/{postID}", app.postHandler.GetPost)
			r.Put("/posts/{postID}", app.postHandler.UpdatePost)
			r.Delete("/posts/{postID}", app.postHandler.DeletePost)

			r.Post("/posts/{postID}/like", app.postHandler.LikePost)
			r.Delete("/posts/{postID}/like", app.postHandler.UnlikePost)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	return r
}
