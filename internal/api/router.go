package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/isdelr/nukta-be/internal/api/handlers"
	"github.com/isdelr/nukta-be/internal/apperror"
	"github.com/isdelr/nukta-be/internal/auth"
	"github.com/isdelr/nukta-be/internal/services"
	"github.com/isdelr/nukta-be/internal/websocket"
)

// Dependencies are the components the router wires into handlers.
type Dependencies struct {
	Users      services.UserServiceProvider
	Posts      services.PostServiceProvider
	Summarizer handlers.Summarizer
	Hub        *websocket.Hub

	AllowedOrigin   string
	Production      bool
	TokenTTL        time.Duration
	UploadDir       string
	UploadURLPrefix string
	Uploads         handlers.UploadLimits
}

// NewRouter creates and configures a new Chi router.
func NewRouter(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	// Basic middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{deps.AllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	errs := handlers.NewErrorResponder(!deps.Production)
	requireAuth := auth.Middleware(deps.Users, errs.Write)

	userHandler := handlers.NewUserHandler(deps.Users, errs, deps.TokenTTL, deps.Production)
	postHandler := handlers.NewPostHandler(deps.Posts, deps.Summarizer, errs, deps.Uploads)
	healthHandler := handlers.NewHealthHandler(deps.UploadDir)

	r.Get("/", healthHandler.Welcome)
	r.Get("/health", healthHandler.Health)

	prefix := "/" + strings.Trim(deps.UploadURLPrefix, "/")
	r.Handle(prefix+"/*", http.StripPrefix(prefix, staticFiles(deps.UploadDir)))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", userHandler.Signup)
			r.Post("/login", userHandler.Login)
			r.With(requireAuth).Post("/logout", userHandler.Logout)
			r.With(requireAuth).Get("/me", userHandler.GetMe)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Get("/", postHandler.List)
			r.With(requireAuth).Post("/", postHandler.Create)
			r.With(requireAuth).Get("/user/my-posts", postHandler.ListMine)
			r.Route("/{slug}", func(r chi.Router) {
				r.Get("/", postHandler.Get)
				r.Get("/summarize", postHandler.Summarize)
				r.With(requireAuth).Put("/", postHandler.Update)
				r.With(requireAuth).Delete("/", postHandler.Delete)
			})
		})

		if deps.Hub != nil {
			r.Get("/feed/ws", handlers.NewWebSocketHandler(deps.Hub, deps.AllowedOrigin).Serve)
		}
	})

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		errs.Write(w, req, apperror.NewNotFound("Route "+req.URL.RequestURI()+" not found"))
	})

	return r
}

// staticFiles serves uploaded media without directory listings.
func staticFiles(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		fs.ServeHTTP(w, r)
	})
}
