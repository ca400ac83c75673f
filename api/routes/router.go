package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pairspace/pairspace-backend/api/controllers"
	"github.com/pairspace/pairspace-backend/api/middleware"
	"github.com/pairspace/pairspace-backend/internal/pairing"
	"github.com/pairspace/pairspace-backend/internal/photos"
	"github.com/pairspace/pairspace-backend/internal/presence"
	"github.com/pairspace/pairspace-backend/internal/spaces"
	"github.com/pairspace/pairspace-backend/internal/users"
	"github.com/pairspace/pairspace-backend/pkg/config"
	"github.com/pairspace/pairspace-backend/pkg/db"
	"github.com/pairspace/pairspace-backend/pkg/logger"
	"github.com/pairspace/pairspace-backend/pkg/redis"
)

// RouterParams carries everything the HTTP surface needs.
type RouterParams struct {
	Config   *config.Config
	Logger   *logger.Logger
	DB       *db.Client
	Redis    *redis.Client
	Users    users.Service
	Pairing  pairing.Service
	Spaces   spaces.Service
	Photos   photos.Service
	Hub      *presence.Hub
	Gateway  *presence.Gateway
	Registry *prometheus.Registry
}

func NewRouter(p RouterParams) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	registerPolicy := middleware.NewRateLimitPolicy(
		"register",
		cfg.RateLimit.RegisterWindow,
		cfg.RateLimit.RegisterIPLimit,
	)

	var dbPinger, cachePinger controllers.Pinger
	if p.DB != nil {
		dbPinger = p.DB
	}
	if p.Redis != nil {
		cachePinger = p.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, dbPinger, cachePinger, logg))
	})

	if p.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	if p.Gateway != nil {
		r.Get("/ws", p.Gateway.HandleWS)
	}

	registerLimiter := middleware.RateLimit(registerPolicy, nil, logg)
	if p.Redis != nil {
		registerLimiter = middleware.RateLimit(registerPolicy, p.Redis, logg)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.With(registerLimiter).
			Post("/users/register", controllers.Register(p.Users, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.Get("/users/me/code", controllers.MyInviteCode(p.Users, logg))

			r.Route("/invitations", func(r chi.Router) {
				r.Post("/", controllers.SendInvitation(p.Pairing, logg))
				r.Get("/incoming", controllers.IncomingInvitations(p.Pairing, logg))
				r.Get("/sent", controllers.OutgoingInvitation(p.Pairing, logg))
				r.Get("/{id}", controllers.GetInvitation(p.Pairing, logg))
				r.Patch("/{id}/accept", controllers.AcceptInvitation(p.Pairing, logg))
				r.Patch("/{id}/reject", controllers.RejectInvitation(p.Pairing, logg))
				r.Delete("/{id}", controllers.CancelInvitation(p.Pairing, logg))
			})

			r.Route("/spaces/mine", func(r chi.Router) {
				r.Get("/", controllers.MySpace(p.Spaces, logg))
				r.Delete("/", controllers.DissolveSpace(p.Pairing, p.Hub, logg))
				r.Post("/location", controllers.ReportLocation(p.Spaces, logg))
			})

			r.Route("/photos", func(r chi.Router) {
				r.Get("/", controllers.PhotoFeed(p.Photos, logg))
				r.Post("/", controllers.SharePhoto(p.Photos, logg))
				r.Get("/upload-signature", controllers.PhotoUploadSignature(p.Photos, logg))
			})
		})
	})

	return r
}
