package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/safar/quickcart/internal/api"
	"github.com/safar/quickcart/internal/auth"
	"github.com/safar/quickcart/internal/config"
	"github.com/safar/quickcart/internal/database"
	"github.com/safar/quickcart/internal/gateway"
	"github.com/safar/quickcart/internal/telemetry"
	"github.com/spf13/pflag"
)

func main() {
	envFile := pflag.String("env-file", ".env", "env file to load before reading the environment")
	port := pflag.String("port", "", "listen port (overrides SERVER_PORT)")
	debug := pflag.Bool("debug", false, "run gin in debug mode")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}
	if *port != "" {
		cfg.Server.Port = *port
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, os.Stderr)
	if err != nil {
		log.Fatalf("Set up tracing: %v", err)
	}
	defer shutdownTracing(context.Background())

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	logger.Info("connected to database")

	tokens, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if err != nil {
		log.Fatalf("Configure tokens: %v", err)
	}

	gw := gateway.NewPostgres(db, tokens, logger)

	if !*debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := api.NewServer(api.Deps{
		Catalog: gw,
		Carts:   gw,
		Auth:    gw,
		Tokens:  tokens,

		AllowOrigins: cfg.Server.AllowOrigins,
	}, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      telemetry.Handler(srv.Router(), cfg.Telemetry.ServiceName),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("server starting", "port", cfg.Server.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server error: %v", err)
	}
}
