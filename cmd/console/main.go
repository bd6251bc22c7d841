package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/velibadmin/console/internal/backend"
	"github.com/velibadmin/console/internal/cache"
	"github.com/velibadmin/console/internal/config"
	"github.com/velibadmin/console/internal/detail"
	"github.com/velibadmin/console/internal/mapview"
	"github.com/velibadmin/console/internal/server"
	"github.com/velibadmin/console/internal/session"
	"github.com/velibadmin/console/pkg/http/client"
)

const (
	geocodeCacheSize = 128
	geocodeCacheTTL  = 15 * time.Minute
)

func main() {
	// Local development keeps its settings in a .env file.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "loading .env: %v\n", err)
	}

	cfg := config.LoadFromEnv()
	cfg.InitializeLogging()

	if cfg.Environment != "local" && cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info().
		Str("env", cfg.Environment).
		Str("backend", cfg.BackendBaseURL).
		Int("port", cfg.ListenPort).
		Msg("velib console starting")

	if cfg.MapboxToken == "" {
		log.Warn().Msg("no MAPBOX_TOKEN configured, the console will show a placeholder instead of the map")
	}

	gate := session.NewGate(session.NewFileStore(cfg.TokenFile))
	if err := gate.Init(); err != nil {
		log.Error().Err(err).Msg("session check failed, starting unauthenticated")
	}

	httpClient := client.New(client.Options{
		BaseURL:        cfg.BackendBaseURL,
		Timeout:        cfg.HTTPTimeout,
		TokenSource:    gate.Token,
		OnUnauthorized: gate.HandleUnauthorized,
	})
	api := backend.New(httpClient)

	geocodeCache, err := cache.NewGeocodeCache(geocodeCacheSize, geocodeCacheTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("creating geocode cache")
	}

	view := mapview.NewManager(mapview.Options{
		Source:       api,
		ReloadDelay:  cfg.ReloadDelay,
		GeocodeCache: geocodeCache,
	})
	popup := detail.NewController(api)

	consoleServer := server.New(server.Options{
		Gate:        gate,
		Auth:        api,
		View:        view,
		Popup:       popup,
		MapboxToken: cfg.MapboxToken,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	consoleServer.Start(ctx)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ListenPort),
		Handler: consoleServer.Router(),
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down")
		cancel()
		view.Close()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown")
		}
	}()

	log.Info().Msgf("console listening at http://localhost:%d", cfg.ListenPort)
	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}
