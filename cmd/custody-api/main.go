package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/yourorg/custodian/internal/anchor"
	"github.com/yourorg/custodian/internal/auditlog"
	"github.com/yourorg/custodian/internal/auth"
	"github.com/yourorg/custodian/internal/custody"
	"github.com/yourorg/custodian/internal/storage"
)

type serverConfig struct {
	Addr     string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	_ = godotenv.Load()

	var cfg serverConfig
	_ = env.Parse(&cfg)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := storage.Open(ctx, storage.LoadConfig())
	if err != nil {
		logger.Error("open storage", "error", err)
		os.Exit(1)
	}
	defer backend.Close()

	router := newRouter(backend, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("custody api listening", "addr", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "error", err)
	}
}

func newRouter(backend *storage.Backend, logger *slog.Logger) http.Handler {
	chain := auditlog.NewChain(backend.Audit, backend.Pointers, auditlog.LoadConfig(), auditlog.WithLogger(logger))

	authSvc := auth.NewService(auth.NewUserStore(backend.Data), chain, auth.LoadConfig(), logger)

	anchorCfg := anchor.LoadConfig()
	anchorSvc := anchor.NewService(backend.Data, backend.Blocks, anchor.NewHTTPPriceFeed(anchorCfg, nil), chain, logger)

	custodySvc := custody.NewService(custody.NewStore(backend.Data), authSvc, chain, custody.LoadConfig(), logger)

	auditH := auditlog.NewHandler(chain, logger)
	authH := auth.NewHandler(authSvc, logger)
	anchorH := anchor.NewHandler(anchorSvc, anchorCfg, logger)
	custodyH := custody.NewHandler(custodySvc, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(authSvc, logger))

		r.Post("/upload", anchorH.Upload)
		r.Get("/verify", anchorH.Verify)
		r.Get("/attachments/{name}", anchorH.Attachment)
		r.Get("/images/{name}", anchorH.Image)

		r.Get("/audit-log/verify", auditH.Verify)
		r.Get("/audit-log/head", auditH.Head)
		r.Get("/audit-log/entries/{hash}", auditH.Entry)

		r.Post("/login", authH.Login)
		r.Post("/users", authH.CreateUser)
		r.Delete("/users/{token}", authH.DeleteUser)

		r.Get("/data", custodyH.Data)

		r.Post("/todos", custodyH.AddTodo())
		r.Post("/todos/status", custodyH.SetTodoStatus())
		r.Post("/todos/text", custodyH.UpdateTodoText())
		r.Post("/todos/delete", custodyH.DeleteTodo())
		r.Post("/todos/restore", custodyH.RestoreTodo())

		r.Post("/progress", custodyH.AddProgress())
		r.Post("/progress/update", custodyH.UpdateProgress())
		r.Post("/progress/delete", custodyH.DeleteProgress())
		r.Post("/progress/restore", custodyH.RestoreProgress())

		r.Post("/items", custodyH.AddItem())
		r.Post("/items/name", custodyH.RenameItem())
		r.Post("/items/transfer", custodyH.TransferItem())
		r.Post("/items/return", custodyH.ReturnItem())
		r.Post("/items/delete", custodyH.DeleteItem())
		r.Post("/items/restore", custodyH.RestoreItem())
	})
	return r
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
