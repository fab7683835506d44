// Package main запускает HTTP-сервер сервиса бронирования артистов.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/artist-booking/internal/config"
	"github.com/mmeshcher/artist-booking/internal/events"
	"github.com/mmeshcher/artist-booking/internal/handler"
	"github.com/mmeshcher/artist-booking/internal/locale"
	"github.com/mmeshcher/artist-booking/internal/middleware"
	"github.com/mmeshcher/artist-booking/internal/payment"
	"github.com/mmeshcher/artist-booking/internal/repository"
	"github.com/mmeshcher/artist-booking/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var repo service.Repository
	if cfg.DatabaseURI != "" {
		repo, err = repository.NewPostgresRepository(cfg.DatabaseURI)
		if err != nil {
			sugar.Fatalw("database initialization error", "error", err.Error())
		}
	} else {
		sugar.Warn("DATABASE_URI is not set, bookings are kept in memory")
		repo = repository.NewMemoryRepository()
	}

	var bus events.PubSub
	if cfg.RedisAddress != "" {
		bus, err = events.NewRedisPubSub(ctx, cfg.RedisAddress, logger)
		if err != nil {
			sugar.Fatalw("event bus initialization error", "error", err.Error())
		}
	} else {
		bus = events.NewGoChannel(logger)
	}
	defer bus.Close()

	var payments service.PaymentClient
	if cfg.PaymentSystemAddress != "" {
		payments = payment.NewClient(cfg.PaymentSystemAddress)
	}

	svc := service.NewService(repo, events.NewPublisher(bus), payments, service.Settings{
		Currency:           cfg.Currency,
		VATRate:            cfg.VATRate,
		DefaultLocale:      locale.Parse(cfg.DefaultLocale),
		QuotationValidDays: cfg.QuotationValidDays,
		InvoiceDueDays:     cfg.InvoiceDueDays,
	}, logger)
	defer svc.Close()

	if cfg.AuthSecret == "" {
		sugar.Warn("AUTH_SECRET is not set, tokens are signed with a random key")
	}
	authMiddleware := middleware.NewAuthMiddleware(cfg.AuthSecret)
	h := handler.NewHandler(svc, logger, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Сверка оплат с платёжной системой
	g.Go(func() error {
		svc.RunPaymentUpdates(ctx, cfg.PaymentPollInterval)
		return nil
	})

	// Журнал переходов
	g.Go(func() error {
		return events.Consume(ctx, bus, logger, events.AuditLog(logger))
	})

	g.Go(func() error {
		sugar.Infow("starting artist booking server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
