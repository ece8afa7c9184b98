package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/greg5320/mappool/internal/auth"
	"github.com/greg5320/mappool/internal/guard"
	"github.com/greg5320/mappool/internal/handler"
	"github.com/greg5320/mappool/internal/repository"
	"github.com/greg5320/mappool/internal/service"
	"github.com/greg5320/mappool/internal/session"
	"github.com/greg5320/mappool/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultCookieName is the session cookie used when RouterDeps leaves it unset.
const DefaultCookieName = "session_id"

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	DB       repository.DB
	Repos    repository.Set
	Sessions session.Store
	Images   storage.ImageStore
	Logger   *slog.Logger

	CookieName             string
	SessionTTL             time.Duration
	CookieSecure           bool
	CORSAllowedOrigins     []string
	AllowStaffRegistration bool
	MaxUploadBytes         int64
	// LoginRateLimit is requests per minute per IP on /auth/login; zero disables it.
	LoginRateLimit int

	// Now and Popularity default to the wall clock and a random score.
	Now        service.Clock
	Popularity service.PopularitySource
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	db := deps.DB
	repos := deps.Repos
	logger := deps.Logger

	popularity := deps.Popularity
	if popularity == nil {
		popularity = service.RandomPopularity
	}
	if deps.CookieName == "" {
		deps.CookieName = DefaultCookieName
	}

	// Services
	lockout := guard.NewLockout(db, repos.LoginAttempts, logger, deps.Now)
	accountSvc := service.NewAccountService(db, repos, deps.Sessions, lockout, service.AccountConfig{
		SessionTTL:             deps.SessionTTL,
		AllowStaffRegistration: deps.AllowStaffRegistration,
	}, logger)
	catalogSvc := service.NewCatalogService(db, repos, deps.Images, logger)
	membershipSvc := service.NewMembershipService(db, repos, logger, deps.Now)
	lifecycleSvc := service.NewLifecycleService(db, repos, logger, deps.Now, popularity)
	querySvc := service.NewQueryService(db, repos)

	// Handlers
	authHandler := handler.NewAuthHandler(accountSvc, handler.CookieConfig{
		Name:   deps.CookieName,
		TTL:    deps.SessionTTL,
		Secure: deps.CookieSecure,
	})
	mapHandler := handler.NewMapHandler(catalogSvc, deps.MaxUploadBytes)
	poolHandler := handler.NewPoolHandler(membershipSvc, lifecycleSvc, querySvc)

	resolver := session.NewResolver(deps.Sessions, db, repos.Users)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health and metrics (no auth)
	breakers := map[string]handler.BreakerState{}
	if b, ok := deps.Images.(handler.BreakerState); ok {
		breakers["image_store"] = b
	}
	r.Get("/health", handler.HealthHandler(db, breakers))
	r.Handle("/metrics", promhttp.Handler())

	// Session lifecycle routes run without identity resolution so a stale
	// cookie never blocks login or logout.
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.With(loginLimiter(deps.LoginRateLimit)...).Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(resolver, deps.CookieName, handler.RespondError, logger))

		r.Put("/auth/profile", authHandler.Profile)
		r.Get("/auth/me", authHandler.Me)

		r.Route("/maps", func(r chi.Router) {
			r.Get("/", mapHandler.List)
			r.Post("/", mapHandler.Create)
			r.Get("/{id}", mapHandler.Get)
			r.Put("/{id}", mapHandler.Update)
			r.Delete("/{id}", mapHandler.Delete)
			r.Post("/{id}/image", mapHandler.UploadImage)
		})

		r.Route("/map-pools", func(r chi.Router) {
			r.Get("/", poolHandler.List)
			r.Post("/draft", poolHandler.AddToDraft)
			r.Get("/{id}", poolHandler.Get)
			r.Put("/{id}", poolHandler.SetPlayerLogin)
			r.Delete("/{id}", poolHandler.Delete)
			r.Put("/{id}/submit", poolHandler.Submit)
			r.Put("/{id}/moderate", poolHandler.Moderate)
			r.Put("/{id}/maps/{mapID}", poolHandler.Reposition)
			r.Delete("/{id}/maps/{mapID}", poolHandler.RemoveMap)
		})
	})

	return r
}

func loginLimiter(perMinute int) []func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return nil
	}
	return []func(http.Handler) http.Handler{
		httprate.Limit(perMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				handler.RespondJSON(w, http.StatusTooManyRequests, map[string]string{
					"code":    "RATE_LIMITED",
					"message": "too many login attempts",
				})
			}),
		),
	}
}
