package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/backoffice-api/apiserver/config"
	"github.com/backoffice-api/apiserver/internal/auth"
	"github.com/backoffice-api/apiserver/internal/db"
	"github.com/backoffice-api/apiserver/internal/handlers"
	"github.com/backoffice-api/apiserver/internal/mq"
	"github.com/backoffice-api/apiserver/internal/services"
	"github.com/backoffice-api/apiserver/internal/storage"
	"github.com/backoffice-api/apiserver/internal/store"
)

// Server wraps the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
}

// New constructs a Server: opens the database, loads the privilege
// catalog, wires repositories, services and handlers, and connects the
// optional audit broker and export storage.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	if cfg.JWT.Secret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	catalog, err := services.LoadCatalog(cfg.Auth.PrivilegesFile)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	roleRepo := store.NewRoleRepository(dbConn)
	assignmentRepo := store.NewUserRoleRepository(dbConn)
	grantRepo := store.NewRolePrivilegeRepository(dbConn)
	categoryRepo := store.NewCategoryRepository(dbConn)
	auditRepo := store.NewAuditLogRepository(dbConn)

	broker, err := newBroker(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	exporter, err := newExporter(ctx, cfg)
	if err != nil {
		if broker != nil {
			_ = broker.Close()
		}
		_ = dbConn.Close()
		return nil, err
	}

	userService := services.NewUserService(userRepo, roleRepo, assignmentRepo, cfg.Auth.BcryptCost, cfg.Auth.MinPasswordLength)
	privilegeService := services.NewPrivilegeService(assignmentRepo, grantRepo, catalog)
	roleService := services.NewRoleService(roleRepo, grantRepo, catalog)
	categoryService := services.NewCategoryService(categoryRepo)

	var publisher services.AuditPublisher
	if broker != nil {
		publisher = broker
	}
	var auditExporter services.AuditExporter
	if exporter != nil {
		auditExporter = exporter
	}
	auditService := services.NewAuditService(auditRepo, publisher, cfg.Audit.Channel, auditExporter)

	tokenService := auth.NewTokenService(cfg.JWT.Secret, time.Duration(cfg.JWT.TTLSeconds)*time.Second)
	authn := handlers.NewAuthenticator(tokenService, userService, privilegeService)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Get("/healthz", handlers.Healthz)
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, auditService, tokenService, authn)
	})
	router.Route("/roles", func(r chi.Router) {
		handlers.RoleRouter(r, roleService, privilegeService, auditService, authn)
	})
	router.Route("/categories", func(r chi.Router) {
		handlers.CategoryRouter(r, categoryService, auditService, authn)
	})
	router.Route("/auditlogs", func(r chi.Router) {
		handlers.AuditLogRouter(r, auditService, authn)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		broker:     broker,
	}, nil
}

// newBroker connects the audit event broker selected by config, or
// returns nil when publishing is disabled.
func newBroker(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.Audit.Broker {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err := mq.NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	case "pubsub":
		backend, err := mq.NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	default:
		return nil, fmt.Errorf("unknown audit broker %q", cfg.Audit.Broker)
	}
}

// newExporter connects the audit export storage selected by config, or
// returns nil when exports are disabled.
func newExporter(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	switch cfg.Audit.ExportBackend {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown audit export backend %q", cfg.Audit.ExportBackend)
	}

	wrapped := storage.NewStorage(backend)
	if err := wrapped.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return wrapped, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown attempts a graceful shutdown.
func (s *Server) Shutdown() error {
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}
