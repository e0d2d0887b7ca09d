package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hazemadel/accounts/internal/config"
	"github.com/hazemadel/accounts/internal/mailer"
	"github.com/hazemadel/accounts/pkg/logger"
)

func main() {
	cfg, err := config.LoadMailer()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.New("accounts-mailer", cfg.LogLevel)
	log.Info("starting accounts mailer",
		slog.String("environment", cfg.Environment),
		slog.Any("brokers", cfg.KafkaBrokers),
		slog.String("consumer_group", cfg.ConsumerGroup),
	)

	sender := mailer.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.FromAddress)
	handler := mailer.NewHandler(sender, log)
	consumers := mailer.NewConsumers(cfg.KafkaBrokers, cfg.ConsumerGroup, handler, log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var wg sync.WaitGroup
	for _, consumer := range consumers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := consumer.Start(ctx); err != nil {
				log.Error("kafka consumer error", slog.String("error", err.Error()))
			}
		}()
	}

	<-ctx.Done()
	log.Info("shutdown signal received")

	for _, consumer := range consumers {
		if err := consumer.Close(); err != nil {
			log.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}
	wg.Wait()

	log.Info("accounts mailer stopped")
}
