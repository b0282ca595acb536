package internal

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/FreedomSnow/sinoname/internal/config"
	"github.com/FreedomSnow/sinoname/internal/crypto"
	"github.com/FreedomSnow/sinoname/internal/idp"
	"github.com/FreedomSnow/sinoname/internal/log"
	"github.com/FreedomSnow/sinoname/internal/naming"
	"github.com/FreedomSnow/sinoname/internal/server"
	"github.com/FreedomSnow/sinoname/internal/session"
	"github.com/FreedomSnow/sinoname/internal/storage"
)

// SinoName is the complete application: OAuth login flow, session
// endpoints, and the naming proxy.
type SinoName struct {
	config     config.Config
	httpServer *server.HTTPServer
	storage    storage.Storage
}

// NewSinoName builds the application with all dependencies wired
func NewSinoName(ctx context.Context, cfg config.Config) (*SinoName, error) {
	log.LogInfoWithFields("sinoname", "Building application", map[string]any{
		"baseURL":  cfg.Server.BaseURL,
		"provider": cfg.Auth.IDP.Provider,
		"storage":  string(cfg.Auth.Storage),
	})

	if _, err := url.Parse(cfg.Server.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}

	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	provider, err := idp.NewProvider(ctx, &cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to setup identity provider: %w", err)
	}

	sealer, err := crypto.NewSealer(cfg.Auth.EncryptionKeyID, map[string][]byte{
		cfg.Auth.EncryptionKeyID: []byte(cfg.Auth.EncryptionKey),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session sealer: %w", err)
	}
	codec := session.NewCodec(sealer)

	mux := buildHTTPHandler(cfg, store, provider, codec)
	httpServer := server.NewHTTPServer(mux, cfg.Server.Addr)

	return &SinoName{
		config:     cfg,
		httpServer: httpServer,
		storage:    store,
	}, nil
}

// Run starts the application and blocks until shutdown
func (s *SinoName) Run() error {
	log.LogInfoWithFields("sinoname", "Starting application", map[string]any{
		"addr": s.config.Server.Addr,
	})

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("sinoname", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("sinoname", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Stop(shutdownCtx); err != nil {
		log.LogErrorWithFields("sinoname", "HTTP server shutdown error", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	if err := s.storage.Close(); err != nil {
		log.LogErrorWithFields("sinoname", "Storage close error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("sinoname", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return nil
}

// setupStorage creates storage based on configuration
func setupStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	if cfg.Auth.Storage == config.StorageFirestore {
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    cfg.Auth.GCPProject,
			"database":   cfg.Auth.FirestoreDatabase,
			"collection": cfg.Auth.FirestoreCollection,
		})
		return storage.NewFirestoreStorage(
			ctx,
			cfg.Auth.GCPProject,
			cfg.Auth.FirestoreDatabase,
			cfg.Auth.FirestoreCollection,
		)
	}

	log.LogInfoWithFields("storage", "Using in-memory storage", map[string]any{})
	return storage.NewMemoryStorage(), nil
}

// buildHTTPHandler registers all routes with their middleware chains
func buildHTTPHandler(cfg config.Config, store storage.Storage, provider idp.Provider, codec *session.Codec) http.Handler {
	mux := http.NewServeMux()

	baseURL := strings.TrimSuffix(cfg.Server.BaseURL, "/")
	authHandlers := server.NewAuthHandlers(
		provider,
		codec,
		store,
		baseURL+cfg.Auth.SuccessPath,
		baseURL+cfg.Auth.ErrorPath,
	)

	corsMiddleware := server.NewCORSMiddleware(cfg.Server.AllowedOrigins)
	authLogger := server.NewLoggerMiddleware("auth")
	namingLogger := server.NewLoggerMiddleware("naming")
	recoverMiddleware := server.NewRecoverMiddleware("server")

	mux.Handle("/health", server.NewHealthHandler())

	// ChainMiddleware wraps outward, so the last entry is outermost
	authMiddleware := []server.MiddlewareFunc{
		corsMiddleware,
		authLogger,
		recoverMiddleware,
	}
	mux.Handle("/api/auth/login", server.ChainMiddleware(http.HandlerFunc(authHandlers.LoginHandler), authMiddleware...))
	mux.Handle("/api/auth/callback", server.ChainMiddleware(http.HandlerFunc(authHandlers.CallbackHandler), authMiddleware...))
	mux.Handle("/api/auth/session", server.ChainMiddleware(http.HandlerFunc(authHandlers.SessionHandler), authMiddleware...))
	mux.Handle("/api/auth/logout", server.ChainMiddleware(http.HandlerFunc(authHandlers.LogoutHandler), authMiddleware...))

	if cfg.Naming != nil {
		namingHandlers := server.NewNamingHandlers(naming.NewClient(cfg.Naming))
		namingMiddleware := []server.MiddlewareFunc{
			server.NewSessionRequiredMiddleware(codec),
			corsMiddleware,
			namingLogger,
			recoverMiddleware,
		}
		mux.Handle("/api/naming/generate", server.ChainMiddleware(http.HandlerFunc(namingHandlers.GenerateHandler), namingMiddleware...))
		mux.Handle("/api/naming/customize", server.ChainMiddleware(http.HandlerFunc(namingHandlers.CustomizeHandler), namingMiddleware...))
	}

	if len(cfg.Auth.AdminEmails) > 0 {
		adminHandlers := server.NewAdminHandlers(store)
		adminMiddleware := []server.MiddlewareFunc{
			server.NewAdminRequiredMiddleware(cfg.Auth.AdminEmails),
			server.NewSessionRequiredMiddleware(codec),
			corsMiddleware,
			server.NewLoggerMiddleware("admin"),
			recoverMiddleware,
		}
		mux.Handle("/api/admin/users", server.ChainMiddleware(http.HandlerFunc(adminHandlers.UsersHandler), adminMiddleware...))
		mux.Handle("/api/admin/users/delete", server.ChainMiddleware(http.HandlerFunc(adminHandlers.DeleteUserHandler), adminMiddleware...))
		mux.Handle("/api/admin/events", server.ChainMiddleware(http.HandlerFunc(adminHandlers.EventsHandler), adminMiddleware...))
	}

	log.LogInfoWithFields("server", "Routes initialized", map[string]any{
		"naming_enabled": cfg.Naming != nil,
		"admin_enabled":  len(cfg.Auth.AdminEmails) > 0,
	})
	return mux
}
