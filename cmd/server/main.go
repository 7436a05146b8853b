package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"repochat/internal/auth"
	"repochat/internal/config"
	"repochat/internal/handler"
	"repochat/internal/middleware"
	"repochat/internal/repository/postgres"
	"repochat/internal/service/chat"
	"repochat/internal/service/ingest"
	"repochat/internal/service/llm"
	"repochat/internal/service/llm/providers/anthropic"
	"repochat/internal/service/llm/providers/lorem"
	"repochat/internal/service/llm/providers/ollama"
	"repochat/internal/service/prefs"
	"repochat/internal/stream"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Environment == "dev" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	jwtVerifier, err := auth.NewJWTVerifier(cfg.AuthJWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()

	logger.Info("database connected")

	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	repoRepo := postgres.NewRepoRepository(repoConfig)
	fileRepo := postgres.NewFileRepository(repoConfig)
	sessionRepo := postgres.NewSessionRepository(repoConfig)
	messageRepo := postgres.NewMessageRepository(repoConfig)
	userPrefsRepo := postgres.NewUserPreferencesRepository(repoConfig)
	txManager := postgres.NewTransactionManager(pool)

	providerRegistry, err := setupProviders(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to setup LLM providers: %v", err)
	}

	rules, err := ingest.LoadRules()
	if err != nil {
		log.Fatalf("Failed to load ingestion rules: %v", err)
	}
	cloner := ingest.NewCloner(cfg.GitBinary, time.Duration(cfg.CloneTimeoutSec)*time.Second)
	ingestService := ingest.NewService(repoRepo, fileRepo, txManager, cloner, rules, logger)

	hub := stream.NewHub()
	chatService := chat.NewService(sessionRepo, messageRepo, repoRepo, fileRepo,
		txManager, providerRegistry, hub, cfg.DefaultModel, logger)
	prefsService := prefs.NewService(userPrefsRepo, logger)

	repoHandler := handler.NewRepoHandler(ingestService, logger)
	chatHandler := handler.NewChatHandler(chatService, logger)
	sseHandler := handler.NewSSEHandler(hub, chatService, logger)
	prefsHandler := handler.NewPreferencesHandler(prefsService, logger)

	logger.Info("services initialized", "providers", providerRegistry.Names())

	// Router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", repoHandler.HealthCheck)

	// Repository routes
	mux.HandleFunc("POST /api/v1/repos", repoHandler.LoadRepo)
	mux.HandleFunc("GET /api/v1/repos", repoHandler.ListRepos)
	mux.HandleFunc("GET /api/v1/repos/{repoID}", repoHandler.GetRepo)
	mux.HandleFunc("GET /api/v1/repos/{repoID}/tree", repoHandler.GetTree)
	mux.HandleFunc("GET /api/v1/repos/{repoID}/file", repoHandler.GetFileContent)
	mux.HandleFunc("POST /api/v1/repos/{repoID}/files", repoHandler.CreateFile)

	// Session routes
	mux.HandleFunc("POST /api/v1/sessions", chatHandler.CreateSession)
	mux.HandleFunc("GET /api/v1/sessions", chatHandler.ListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{sessionID}", chatHandler.GetSession)
	mux.HandleFunc("PATCH /api/v1/sessions/{sessionID}", chatHandler.UpdateSession)
	mux.HandleFunc("DELETE /api/v1/sessions/{sessionID}", chatHandler.DeleteSession)
	mux.HandleFunc("GET /api/v1/sessions/{sessionID}/messages", chatHandler.ListMessages)
	mux.HandleFunc("POST /api/v1/sessions/{sessionID}/messages", chatHandler.CreateMessage)

	// Streaming routes
	mux.HandleFunc("GET /api/v1/messages/{messageID}/stream", sseHandler.StreamMessage)
	mux.HandleFunc("POST /api/v1/messages/{messageID}/interrupt", chatHandler.InterruptMessage)

	// User preferences routes
	mux.HandleFunc("GET /api/v1/preferences", prefsHandler.GetPreferences)
	mux.HandleFunc("PATCH /api/v1/preferences", prefsHandler.UpdatePreferences)

	// Middleware chain: CORS → Recovery → Auth → Routes
	var root http.Handler = mux
	root = middleware.AuthMiddleware(jwtVerifier)(root)
	root = middleware.Recovery(logger)(root)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	})
	root = corsHandler.Handler(root)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// setupProviders registers the configured LLM providers. Lorem is always
// available so development works without API keys.
func setupProviders(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*llm.Registry, error) {
	registry := llm.NewRegistry()

	if cfg.AnthropicAPIKey != "" {
		p, err := anthropic.NewProvider(cfg.AnthropicAPIKey)
		if err != nil {
			return nil, err
		}
		registry.Register(p)
		logger.Info("registered llm provider", "provider", p.Name())
	}

	if cfg.OllamaURL != "" {
		p := ollama.NewProvider(cfg.OllamaURL)
		if err := p.Ping(ctx); err != nil {
			logger.Warn("ollama not reachable at startup", "url", cfg.OllamaURL, "error", err)
		}
		registry.Register(p)
		logger.Info("registered llm provider", "provider", p.Name(), "url", cfg.OllamaURL)
	}

	registry.Register(lorem.NewProvider())
	return registry, nil
}
