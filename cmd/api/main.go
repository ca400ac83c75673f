package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/pairspace/pairspace-backend/api/routes"
	"github.com/pairspace/pairspace-backend/internal/feeding"
	"github.com/pairspace/pairspace-backend/internal/pairing"
	"github.com/pairspace/pairspace-backend/internal/photos"
	"github.com/pairspace/pairspace-backend/internal/presence"
	"github.com/pairspace/pairspace-backend/internal/spaces"
	"github.com/pairspace/pairspace-backend/internal/users"
	"github.com/pairspace/pairspace-backend/pkg/config"
	"github.com/pairspace/pairspace-backend/pkg/db"
	"github.com/pairspace/pairspace-backend/pkg/logger"
	"github.com/pairspace/pairspace-backend/pkg/metrics"
	"github.com/pairspace/pairspace-backend/pkg/migrate"
	"github.com/pairspace/pairspace-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	presenceMetrics := metrics.NewPresenceMetrics(registry)

	usersRepo := users.NewRepository(dbClient.DB())
	spacesRepo := spaces.NewRepository(dbClient.DB())
	pairingRepo := pairing.NewRepository(dbClient.DB())
	feedingRepo := feeding.NewRepository(dbClient.DB())
	photosRepo := photos.NewRepository(dbClient.DB())

	usersService, err := users.NewService(users.ServiceParams{
		Repo:   usersRepo,
		JWT:    cfg.JWT,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	spacesService, err := spaces.NewService(spaces.ServiceParams{
		Repo:   spacesRepo,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create spaces service", err)
		os.Exit(1)
	}

	pairingService, err := pairing.NewService(pairing.ServiceParams{
		Repo:      pairingRepo,
		UserRepo:  usersRepo,
		SpaceRepo: spacesRepo,
		Tx:        dbClient,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pairing service", err)
		os.Exit(1)
	}

	feedingService, err := feeding.NewService(feeding.ServiceParams{
		Repo:      feedingRepo,
		SpaceRepo: spacesRepo,
		Metrics:   presenceMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create feeding service", err)
		os.Exit(1)
	}

	var signer *photos.Signer
	if cfg.Media.UploadSigningSecret != "" {
		signer, err = photos.NewSigner(cfg.Media)
		if err != nil {
			logg.Error(context.Background(), "failed to create upload signer", err)
			os.Exit(1)
		}
	}

	photosService, err := photos.NewService(photos.ServiceParams{
		Repo:      photosRepo,
		SpaceRepo: spacesRepo,
		Signer:    signer,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create photos service", err)
		os.Exit(1)
	}

	hub := presence.NewHub(logg, presenceMetrics)
	gateway, err := presence.NewGateway(presence.GatewayParams{
		Logger:   logg,
		Hub:      hub,
		Spaces:   spacesService,
		Feeding:  feedingService,
		Metrics:  presenceMetrics,
		JWT:      cfg.JWT,
		Presence: cfg.Presence,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create presence gateway", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Users:    usersService,
			Pairing:  pairingService,
			Spaces:   spacesService,
			Photos:   photosService,
			Hub:      hub,
			Gateway:  gateway,
			Registry: registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
