package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config centraliza a configuração carregada do ambiente.
type Config struct {
	Port            int
	DBDSN           string
	RedisURL        string
	JWTAccessTTL    time.Duration
	JWTRefreshTTL   time.Duration
	JWTSecret       string
	AllowOrigins    []string
	RateLimitPublic RateLimitConfig
	RateLimitAuth   RateLimitConfig
	Mailer          MailerConfig
	Sweep           SweepConfig
	VerifyBaseURL   string
}

// RateLimitConfig representa limites simples para throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// MailerConfig parametriza o disparo de e-mails transacionais.
// Enabled desligado suprime todo envio, independente dos toggles por campanha.
type MailerConfig struct {
	Enabled  bool
	BaseURL  string
	APIToken string
	From     string
	Timeout  time.Duration
}

// SweepConfig controla a varredura diária de campanhas.
type SweepConfig struct {
	Enabled         bool
	Interval        time.Duration
	AlertWebhookURL string
}

// Load carrega variáveis de ambiente e aplica defaults seguros.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	portStr := getEnv("PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return nil, errors.New("PORT inválida")
	}
	cfg.Port = port

	cfg.DBDSN = getEnv("DB_DSN", "")
	if cfg.DBDSN == "" {
		return nil, errors.New("DB_DSN obrigatório")
	}

	cfg.RedisURL = getEnv("REDIS_URL", "")
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL obrigatório")
	}

	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", ""))
	if len(cfg.JWTSecret) < 32 {
		return nil, errors.New("JWT_SECRET deve ter pelo menos 32 caracteres")
	}

	accessTTL, err := parseDurationEnv("JWT_ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.JWTAccessTTL = accessTTL

	refreshTTL, err := parseDurationEnv("JWT_REFRESH_TTL", 30*24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.JWTRefreshTTL = refreshTTL

	allowOrigins := strings.Split(getEnv("ALLOW_ORIGINS", ""), ",")
	cfg.AllowOrigins = nil
	for _, origin := range allowOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowOrigins = append(cfg.AllowOrigins, origin)
		}
	}

	cfg.RateLimitPublic = RateLimitConfig{RequestsPerSecond: 10, Burst: 20}
	cfg.RateLimitAuth = RateLimitConfig{RequestsPerSecond: 10, Burst: 40}

	cfg.Mailer.Enabled = getEnv("MAILER_ENABLED", "true") != "false"
	cfg.Mailer.BaseURL = strings.TrimSpace(getEnv("MAILER_BASE_URL", ""))
	cfg.Mailer.APIToken = strings.TrimSpace(getEnv("MAILER_API_TOKEN", ""))
	cfg.Mailer.From = strings.TrimSpace(getEnv("MAILER_FROM", "recadastro@zabele.pb.gov.br"))
	mailerTimeout, err := parseDurationEnv("MAILER_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.Mailer.Timeout = mailerTimeout
	if cfg.Mailer.Enabled && cfg.Mailer.BaseURL == "" {
		return nil, errors.New("MAILER_BASE_URL obrigatório quando MAILER_ENABLED")
	}

	cfg.Sweep.Enabled = getEnv("SWEEP_ENABLED", "true") != "false"
	sweepInterval, err := parseDurationEnv("SWEEP_INTERVAL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.Sweep.Interval = sweepInterval
	cfg.Sweep.AlertWebhookURL = strings.TrimSpace(getEnv("SWEEP_ALERT_WEBHOOK", ""))

	cfg.VerifyBaseURL = strings.TrimSpace(getEnv("VERIFY_BASE_URL", "http://localhost:5173/verificar"))

	return cfg, nil
}

func getEnv(key, def string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	val := getEnv(key, "")
	if val == "" {
		return def, nil
	}
	dur, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " inválido")
	}
	return dur, nil
}
