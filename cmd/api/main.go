package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gestaozabele/recadastro/internal/audit"
	"github.com/gestaozabele/recadastro/internal/auth"
	"github.com/gestaozabele/recadastro/internal/campo"
	"github.com/gestaozabele/recadastro/internal/config"
	"github.com/gestaozabele/recadastro/internal/db"
	"github.com/gestaozabele/recadastro/internal/grupo"
	internalhttp "github.com/gestaozabele/recadastro/internal/http"
	"github.com/gestaozabele/recadastro/internal/mailer"
	"github.com/gestaozabele/recadastro/internal/metrics"
	"github.com/gestaozabele/recadastro/internal/recadastro"
	"github.com/gestaozabele/recadastro/internal/repo"
	"github.com/gestaozabele/recadastro/internal/servidor"
	"github.com/gestaozabele/recadastro/internal/service"
	"github.com/gestaozabele/recadastro/internal/sweep"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
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

	repository := repo.New(pool)
	servidorRepo := servidor.NewRepository(pool)
	grupoRepo := grupo.NewRepository(pool)
	campoRepo := campo.NewRepository(pool)
	campanhaRepo := recadastro.NewCampanhaRepository(pool)
	envioRepo := recadastro.NewEnvioRepository(pool)

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	authService := service.NewAuthService(repository, servidorRepo, redisClient, jwtManager, cfg.JWTRefreshTTL)

	mts := metrics.New()
	mail := mailer.NewHTTPMailer(cfg.Mailer, log.With().Str("component", "mailer").Logger())

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo, log.With().Str("component", "audit").Logger())
	go auditService.Run(ctx)

	processor := recadastro.NewProcessor(envioRepo, servidorRepo, mail, auditService, mts,
		log.With().Str("component", "processor").Logger())
	recadastroService := recadastro.NewService(campanhaRepo, envioRepo, campoRepo, grupoRepo, servidorRepo,
		processor, mail, auditService, redisClient,
		log.With().Str("component", "recadastro").Logger())
	recadastroHandler := recadastro.NewHandler(recadastroService)

	sweepNotifier := sweep.NewSlackNotifier(cfg.Sweep.AlertWebhookURL)
	sweepService := sweep.NewService(campanhaRepo, envioRepo, servidorRepo, mail, mts, redisClient,
		cfg.Sweep, log.With().Str("component", "sweep").Logger(), sweepNotifier)
	sweepService.Start(ctx)
	defer sweepService.Stop()

	handler := internalhttp.NewRouter(cfg, pool, redisClient, authService, recadastroHandler)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
