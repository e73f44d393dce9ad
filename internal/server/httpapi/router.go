// Package httpapi is the REST transport: routing, auth middleware, and thin
// handlers that translate between JSON and the service layer.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/verdalabs/wellspring/internal/logging"
	"github.com/verdalabs/wellspring/internal/server/models"
	"github.com/verdalabs/wellspring/internal/server/services"
)

// SyncAPI is the slice of SyncService the handlers need.
type SyncAPI interface {
	Push(ctx context.Context, userID string, req *models.SyncPushRequest) (*models.SyncPushResponse, error)
	Pull(ctx context.Context, userID string, lastSyncAt *time.Time) (*models.SyncPullResponse, error)
	Status(ctx context.Context, userID, deviceID string) (*models.SyncStatus, error)
	Conflicts(ctx context.Context, userID, deviceID string) ([]*models.SyncConflict, error)
	Resolve(ctx context.Context, userID string, res *models.SyncConflictResolution) error
	Reset(ctx context.Context, userID, deviceID string) error
}

// AuthAPI is the slice of UserService the handlers need.
type AuthAPI interface {
	Register(ctx context.Context, email, password string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*services.TokenPair, error)
	RefreshToken(ctx context.Context, refreshToken string) (*services.TokenPair, error)
}

// FeedAPI is the slice of FeedService the handlers need.
type FeedAPI interface {
	RecentAnalyses(ctx context.Context, userID string) ([]models.DailyAnalysis, error)
	RecentPodcasts(ctx context.Context, userID string) ([]models.Podcast, error)
}

// Router wires services into HTTP routes.
type Router struct {
	sync      SyncAPI
	auth      AuthAPI
	feeds     FeedAPI
	db        *sql.DB
	jwtSecret []byte
	log       logging.Logger
}

func NewRouter(sync SyncAPI, auth AuthAPI, feeds FeedAPI, db *sql.DB, jwtSecret []byte, log logging.Logger) *Router {
	return &Router{
		sync:      sync,
		auth:      auth,
		feeds:     feeds,
		db:        db,
		jwtSecret: jwtSecret,
		log:       log,
	}
}

// Routes builds the full route tree. Sync and feed routes require a bearer
// token; auth routes and the health probe do not.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(rt.log))

	r.Get("/healthz", rt.handleHealthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", rt.handleRegister)
			r.Post("/login", rt.handleLogin)
			r.Post("/refresh", rt.handleRefresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate(rt.jwtSecret))

			r.Route("/sync", func(r chi.Router) {
				r.Post("/push", rt.handlePush)
				r.Get("/pull", rt.handlePull)
				r.Get("/status", rt.handleStatus)
				r.Get("/conflicts", rt.handleConflicts)
				r.Post("/resolve", rt.handleResolve)
				r.Post("/reset", rt.handleReset)
			})

			r.Get("/analysis/recent", rt.handleAnalyses)
			r.Get("/podcasts", rt.handlePodcasts)
		})
	})

	return r
}

func (rt *Router) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if rt.db != nil {
		if err := rt.db.PingContext(r.Context()); err != nil {
			respondError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
