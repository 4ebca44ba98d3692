package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amar-Omerika/stake-limit-service/config"
	"github.com/Amar-Omerika/stake-limit-service/internal/app"
	"github.com/Amar-Omerika/stake-limit-service/internal/app/dto"
	httphandler "github.com/Amar-Omerika/stake-limit-service/internal/handlers/http"
	"github.com/Amar-Omerika/stake-limit-service/internal/lib/logger/handlers/slogpretty"
	"github.com/Amar-Omerika/stake-limit-service/pkg/utils"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.LoadConfig()
	log := setupLogger(cfg.Env)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown on SIGINT/SIGTERM
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutting down...")
		cancel()
	}()

	log.Info("initializing app...")
	application, err := app.NewApp(ctx, log, cfg)
	if err != nil {
		log.Error(fmt.Sprintf("failed to initialize app: %v", err))
		os.Exit(1)
	}

	log.Info("starting event processor...")
	go application.EventProcessor.Run(ctx)

	// Optional demo traffic against the configured ingestion path.
	if cfg.DemoGenerator {
		generator := utils.NewTicketGenerator(nil)
		go func() {
			log.Info("starting demo ticket generator...")
			for ctx.Err() == nil {
				tickets := generator.GenerateTickets(10)
				if application.KafkaProducer != nil {
					_ = application.KafkaProducer.PublishTicketBatch(ctx, dto.TicketsFromModels(tickets))
				} else {
					for _, t := range tickets {
						select {
						case <-ctx.Done():
							return
						case application.TicketCh <- dto.TicketFromModel(t):
						}
					}
				}
				time.Sleep(time.Second)
			}
			log.Info("demo ticket generator stopped")
		}()
	}

	httpServer := httphandler.NewServer(httphandler.ServerConfig{
		Addr:             fmt.Sprintf(":%s", cfg.HTTPPort),
		APIKey:           cfg.APIKey,
		RatePerSecond:    cfg.RatePerSecond,
		RateBurst:        cfg.RateBurst,
		TicketsPerSecond: cfg.TicketsPerSecond,
		TicketBurst:      cfg.TicketBurst,
	}, application.Evaluator, application.DeviceManager, application.Archive, application.Broadcaster, log)

	go func() {
		log.Info(fmt.Sprintf("HTTP server listening on :%s", cfg.HTTPPort))
		if err := httpServer.Start(); err != nil {
			log.Info(fmt.Sprintf("HTTP server stopped: %v", err))
		}
	}()

	<-ctx.Done()

	log.Info("cleaning up app resources...")
	application.Cleanup(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	log.Info("shutting down HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error(fmt.Sprintf("HTTP server shutdown error: %v", err))
	}

	log.Info("service stopped.")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
