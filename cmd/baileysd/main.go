package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/config"
	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/app"
	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/restapi"
	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/whatsapp"
)

var cfile = flag.String("c", "baileys.yml", "config file")

func main() {
	flag.Parse()

	cfg := config.LoadConfig(*cfile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	factory, err := whatsapp.NewWhatsmeowFactory(cfg.System.Workdir)
	if err != nil {
		zap.S().Fatalf("init whatsapp factory: %v", err)
	}

	store := whatsapp.NewGormInstanceStore(application.DB())
	audit := whatsapp.NewGormAuditStore(application.DB())
	registry := whatsapp.NewRegistry(store, audit, factory.NewClient, whatsapp.SessionConfig{
		MaxReconnectAttempts: cfg.WhatsApp.MaxReconnectAttempts,
		ReconnectDelay:       time.Duration(cfg.WhatsApp.ReconnectDelaySec) * time.Second,
	}, factory.PurgeCredentials)

	if _, err := registry.Hydrate(); err != nil {
		zap.S().Fatalf("hydrate instances: %v", err)
	}

	dispatcher := whatsapp.NewDispatcher(audit)
	gateway := whatsapp.NewAuthGateway(registry)

	server, err := restapi.NewServer(cfg, registry, dispatcher, gateway)
	if err != nil {
		zap.S().Fatalf("init rest server: %v", err)
	}

	stats := registry.Stats()
	zap.L().Info("baileysd started",
		zap.Int("instances", stats.Total),
		zap.Int("connected", stats.Connected),
		zap.Int("disconnected", stats.Disconnected),
		zap.Int("qr", stats.QR),
		zap.Int("port", cfg.Web.Port))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(server.Start)
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("baileysd shutting down")

		// Sessions first: cancels retry timers so nothing reconnects while
		// the server drains and the database closes.
		registry.DisconnectAll()

		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		zap.S().Errorf("baileysd exited with error: %v", err)
	}
	zap.L().Info("baileysd stopped")
}
