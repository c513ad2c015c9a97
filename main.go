package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"sitelens/auth"
	"sitelens/collector"
	"sitelens/config"
	"sitelens/live"
	"sitelens/websites"
)

func main() {
	// A local .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	sites, err := websites.NewManager(cfg.RegistryPath, cfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize website registry")
	}

	hub := live.NewHub()
	col := collector.New(sites, hub)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	r := chi.NewRouter()
	r.Use(collector.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Collection endpoint, consumed by the tracking agent. Origin
		// checks happen per event inside the handler.
		r.Post("/batch", col.BatchHandler())

		// Dashboard-facing routes require a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(verifier.Middleware)
			r.Post("/websites", sites.CreateWebsiteHandler())
			r.Get("/websites", sites.ListWebsitesHandler())
			r.Get("/websites/{websiteID}", sites.GetWebsiteHandler())
			r.Delete("/websites/{websiteID}", sites.DeleteWebsiteHandler())
			r.Get("/websites/{websiteID}/events", sites.RealtimeEventsHandler())
			r.Get("/live/{websiteID}", hub.Handler())
		})
	})

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go gracefulShutdown(server)

	log.Info().Str("addr", cfg.ListenAddr).Msg("starting server")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// gracefulShutdown waits for a termination signal and drains the server.
func gracefulShutdown(server *http.Server) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	log.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down server")
	}
	log.Info().Msg("server stopped")
}
