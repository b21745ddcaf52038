package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"nanoedit/internal/http/handlers"
	httpapi "nanoedit/internal/http/httpapi"
	"nanoedit/internal/infra"
	"nanoedit/internal/infra/geoip"
	"nanoedit/internal/metrics"
	mw "nanoedit/internal/middleware"
	"nanoedit/internal/service"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	if missing := cfg.MissingEditKeys(); len(missing) > 0 {
		logger.Warn().Strs("missing", missing).Msg("edit backend not configured; edit endpoints will answer MISCONFIG")
	}
	if missing := cfg.MissingAnimateKeys(); len(missing) > 0 {
		logger.Warn().Strs("missing", missing).Msg("animate backend not configured")
	}

	collector := metrics.NewCollector()
	svc := service.New(cfg, &logger, collector)

	app := &handlers.App{
		Editor:         svc.Pipeline,
		Chain:          svc.Orchestrator,
		Resolver:       svc.Resolver,
		Animator:       svc.Animator,
		Fallback:       svc.Fallback,
		AnimateMissing: svc.AnimateMissing,
		Metrics:        collector,
		MaxBodyBytes:   cfg.MaxBodyBytes,
	}

	var geo mw.CountryResolver
	countries, err := geoip.Open(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip disabled")
	} else if countries != nil {
		defer countries.Close()
		geo = countries
	}

	router := httpapi.NewRouter(httpapi.Options{
		App:             app,
		Geo:             geo,
		Logger:          logger,
		AllowOrigin:     cfg.AllowOrigin,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Registry:        collector.Registry(),
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("addr", server.Addr()).
			Str("fallback", string(svc.Fallback.Mode())).
			Msg("API listening")
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
