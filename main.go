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

	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"gatego-backend/internal/api"
	"gatego-backend/internal/config"
	"gatego-backend/internal/db"
	"gatego-backend/internal/iso"
	"gatego-backend/internal/kafka"
	"gatego-backend/internal/logging"
	"gatego-backend/internal/metrics"
	"gatego-backend/internal/pib"
	"gatego-backend/internal/service"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка инициализации логирования: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Fatal("сервис остановлен с ошибкой", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	repo, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer repo.Close()

	if err := repo.Migrate(ctx, service.DefaultClassifications()); err != nil {
		return err
	}

	metrics.Init()

	var quotes *service.QuoteSigner
	if cfg.Quote.SigningKey != "" {
		quotes = service.NewQuoteSigner([]byte(cfg.Quote.SigningKey), cfg.Quote.TTL)
	} else {
		logging.Warn("QUOTE_SIGNING_KEY не задан, токены расчета не выпускаются")
	}

	calc := &service.Calculator{
		Classifications:     repo,
		DefaultExchangeRate: cfg.ExchangeRate,
		Quotes:              quotes,
	}

	if cfg.KafkaEnabled() {
		kafka.StartKafkaJSONConsumer(ctx, cfg.Kafka, calc, repo)
		kafka.StartXMLConsumer(ctx, cfg.Kafka, calc, repo)
		kafka.StartEventsConsumer(ctx, cfg.Kafka, repo)
	}

	if cfg.ISO.Enabled {
		isoServer := &iso.Server{Calculator: calc, Log: repo}
		go func() {
			if err := isoServer.ListenAndServe(ctx, ":"+cfg.ISO.Port); err != nil {
				logging.Error("ISO8583 сервер остановлен", zap.Error(err))
			}
		}()
	}

	server := &api.Server{
		Store:      repo,
		Calculator: calc,
		Quotes:     quotes,
		Generator:  pib.NewGenerator(),
		NewID:      uuid.NewString,
		Now:        time.Now,
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           cors.Default().Handler(server.Router()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("сервер запущен", zap.String("port", cfg.Server.Port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	logging.Info("остановка сервера")
	return httpServer.Shutdown(shutdownCtx)
}
