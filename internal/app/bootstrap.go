package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"tumocare-auth/internal/auth"
	"tumocare-auth/internal/db"
	"tumocare-auth/internal/mailer"
	"tumocare-auth/internal/observability"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Close   func() error
}

// Build wires the whole service from environment configuration and
// returns the root HTTP handler.
func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	logger := observability.NewLogger()

	databaseURL, err := mustEnv("DATABASE_URL")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := mustEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	if err := observability.InitSentry(os.Getenv("SENTRY_DSN"), envOrDefault("APP_ENV", "development")); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	database.SetMaxOpenConns(envIntOrDefault("DB_MAX_OPEN_CONNS", 10))
	database.SetMaxIdleConns(envIntOrDefault("DB_MAX_IDLE_CONNS", 5))
	database.SetConnMaxLifetime(envMinutesOrDefault("DB_CONN_MAX_LIFETIME_MINUTES", 30))
	database.SetConnMaxIdleTime(envMinutesOrDefault("DB_CONN_MAX_IDLE_TIME_MINUTES", 10))

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	mail, err := mailer.New(mailer.Config{
		Host:       os.Getenv("SMTP_HOST"),
		User:       os.Getenv("SMTP_USER"),
		Pass:       os.Getenv("SMTP_PASS"),
		From:       envOrDefault("MAIL_FROM", "Tumocare Support <no-reply@tumocare.local>"),
		SkipVerify: EnvBoolOrDefault("SMTP_SKIP_VERIFY", false),
	})
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("init mailer: %w", err)
	}
	if !mail.IsEnabled() {
		logger.Info("mail_disabled", map[string]any{"reason": "smtp not configured"})
	}

	tokenService := auth.NewTokenService(jwtSecret)
	tokenService.WithLifetimes(
		envMinutesOrDefault("SESSION_TOKEN_TTL_MINUTES", 60),
		envMinutesOrDefault("RESET_TOKEN_TTL_MINUTES", 15),
	)

	hasher := auth.NewPasswordHasher(envIntOrDefault("BCRYPT_COST", 10))
	authRepo := auth.NewRepository(database)
	authService := auth.NewService(
		authRepo,
		hasher,
		tokenService,
		mail,
		logger,
		envOrDefault("RESET_LINK_BASE_URL", "http://localhost:3000/reset-password"),
	)
	authHandler := auth.NewHandler(authService)

	if err := authService.EnsureDefaultAccount(
		context.Background(),
		os.Getenv("DEFAULT_USER_EMAIL"),
		os.Getenv("DEFAULT_USER_PASSWORD"),
	); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("seed default account: %w", err)
	}

	limiter := auth.NewRateLimiter(
		envIntOrDefault("RATE_LIMIT_MAX", 100),
		envMinutesOrDefault("RATE_LIMIT_WINDOW_MINUTES", 15),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", authHandler.Register)
	mux.Handle("POST /login", limiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /forgot-password", limiter.Middleware(http.HandlerFunc(authHandler.ForgotPassword)))
	mux.HandleFunc("POST /reset-password", authHandler.ResetPassword)
	mux.Handle("GET /me", auth.SessionMiddleware(tokenService, http.HandlerFunc(authHandler.Me)))
	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.RecoverMiddleware(logger,
		observability.SecurityHeadersMiddleware(
			observability.CORSMiddleware(os.Getenv("CORS_ALLOWED_ORIGIN"),
				observability.RequestLoggingMiddleware(logger, mux))))

	return &Runtime{
		Handler: handler,
		Close: func() error {
			observability.FlushSentry()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func mustEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("missing required env: %s", name)
	}
	return value, nil
}

func envOrDefault(name, fallback string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return value
}

func envIntOrDefault(name string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envMinutesOrDefault(name string, fallback int) time.Duration {
	return time.Duration(envIntOrDefault(name, fallback)) * time.Minute
}

func EnvBoolOrDefault(name string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if value == "" {
		return fallback
	}

	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
