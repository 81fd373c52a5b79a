package server

import (
	_ "embed"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kiesman99/gridstitch/internal/api"
)

// APIPrefix is where the generated routes are mounted.
const APIPrefix = "/api/v1"

//go:embed index.html
var indexPage []byte

// NewRouter wires middleware, the generated API routes, the upload page and
// the OpenAPI document.
func NewRouter(apiServer *Server, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	// Add middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	r.Use(cors)

	api.HandlerWithOptions(apiServer, api.ChiServerOptions{
		BaseURL:          APIPrefix,
		BaseRouter:       r,
		ErrorHandlerFunc: apiServer.ParamErrorHandler,
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(indexPage)
	})
	r.Get(APIPrefix+"/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		w.Write(api.Spec)
	})

	// Legacy health endpoint (without /api/v1 prefix)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, APIPrefix+"/health", http.StatusMovedPermanently)
	})

	return r
}

// cors allows the API to be called from other origins
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, X-Artifact-Name, Location")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
