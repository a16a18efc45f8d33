// Comando sweep executa uma única varredura e encerra. Útil para rodar
// via cron externo em vez do loop embutido na API.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/recadastro/internal/config"
	"github.com/gestaozabele/recadastro/internal/db"
	"github.com/gestaozabele/recadastro/internal/mailer"
	"github.com/gestaozabele/recadastro/internal/metrics"
	"github.com/gestaozabele/recadastro/internal/recadastro"
	"github.com/gestaozabele/recadastro/internal/servidor"
	"github.com/gestaozabele/recadastro/internal/sweep"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("sweep encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	campanhaRepo := recadastro.NewCampanhaRepository(pool)
	envioRepo := recadastro.NewEnvioRepository(pool)
	servidorRepo := servidor.NewRepository(pool)

	mail := mailer.NewHTTPMailer(cfg.Mailer, log.With().Str("component", "mailer").Logger())
	notifier := sweep.NewSlackNotifier(cfg.Sweep.AlertWebhookURL)

	svc := sweep.NewService(campanhaRepo, envioRepo, servidorRepo, mail, metrics.New(), redisClient,
		cfg.Sweep, log.With().Str("component", "sweep").Logger(), notifier)

	return svc.RunOnce(ctx)
}
