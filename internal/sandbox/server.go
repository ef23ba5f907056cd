// Package sandbox is an in-memory implementation of the invoicing API for
// local development and integration tests.
package sandbox

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultTokenTTL      = 24 * time.Hour
	defaultOverdueSweep  = "@every 1m"
	defaultDatabaseURL   = ":memory:"
	defaultAllowedOrigin = "http://localhost:3000"
)

// Config holds sandbox settings. Zero values get usable defaults.
type Config struct {
	// JWTSecret signs credentials; a random secret is generated when empty
	JWTSecret string
	// DatabaseURL is a sqlite DSN; defaults to a private in-memory database
	DatabaseURL string
	TokenTTL    time.Duration
	// OverdueSchedule is the cron spec for the overdue sweep
	OverdueSchedule string
	AllowOrigins    []string
	// Now overrides the clock, for tests
	Now func() time.Time
}

// Server represents the sandbox HTTP server
type Server struct {
	router *gin.Engine
	db     *gorm.DB
	tokens *tokenIssuer
	cron   *cron.Cron
	config Config
	logger zerolog.Logger
}

// New creates a sandbox with a freshly migrated database
func New(cfg Config, zlog zerolog.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		secret, err := generateSecret()
		if err != nil {
			return nil, err
		}
		cfg.JWTSecret = secret
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	if cfg.OverdueSchedule == "" {
		cfg.OverdueSchedule = defaultOverdueSweep
	}
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{defaultAllowedOrigin}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	useJSONFieldNames()

	db, err := initDatabase(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	tokens, err := newTokenIssuer(cfg.JWTSecret, cfg.TokenTTL, cfg.Now)
	if err != nil {
		return nil, err
	}

	server := &Server{
		db:     db,
		tokens: tokens,
		config: cfg,
		logger: zlog.With().Str("component", "sandbox").Logger(),
	}

	server.setupRouter()

	return server, nil
}

// initDatabase opens the sqlite database. A single connection keeps an
// in-memory database alive and shared by every request.
func initDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := db.Exec("PRAGMA foreign_keys=1").Error; err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

func generateSecret() (string, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", fmt.Errorf("failed to generate JWT secret: %w", err)
	}
	return hex.EncodeToString(secret), nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)

	s.router = gin.New()

	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	s.router.GET("/health", s.healthCheck)

	// Public auth endpoints
	s.router.POST("/api/auth/login", s.login)
	s.router.POST("/api/auth/register", s.register)

	api := s.router.Group("/api")
	api.Use(JWTAuthMiddleware(s.tokens, s.db, s.logger))
	{
		api.GET("/auth/profile", s.getProfile)
		api.PUT("/auth/profile", s.updateProfile)
		api.GET("/auth/tenants", s.listTenants)
		api.POST("/auth/select-tenant/:id", s.selectTenant)
		api.POST("/tenants", s.createTenant)

		scoped := api.Group("")
		scoped.Use(TenantRequiredMiddleware(s.db, s.logger))
		{
			scoped.GET("/customers", s.listCustomers)
			scoped.POST("/customers", s.createCustomer)
			scoped.GET("/customers/:id", s.getCustomer)
			scoped.PUT("/customers/:id", s.updateCustomer)
			scoped.DELETE("/customers/:id", s.deleteCustomer)

			scoped.GET("/invoices", s.listInvoices)
			scoped.POST("/invoices", s.createInvoice)
			scoped.GET("/invoices/:id", s.getInvoice)
			scoped.PUT("/invoices/:id", s.updateInvoice)
			scoped.DELETE("/invoices/:id", s.deleteInvoice)
			scoped.POST("/invoices/:id/send", s.sendInvoice)
			scoped.GET("/invoices/:id/pdf", s.invoicePDF)
		}
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetHeader("X-Request-ID")).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": s.config.Now().UTC(),
		"service":   "invoicely-sandbox",
	})
}

// Handler returns the HTTP handler, for mounting in tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// StartScheduler starts the overdue sweep
func (s *Server) StartScheduler() error {
	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.config.OverdueSchedule, func() {
		if _, err := s.MarkOverdue(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("Overdue sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("invalid overdue schedule %q: %w", s.config.OverdueSchedule, err)
	}

	c.Start()
	s.cron = c
	s.logger.Info().Str("schedule", s.config.OverdueSchedule).Msg("Overdue sweep scheduled")
	return nil
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	if err := s.StartScheduler(); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("Starting sandbox API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("sandbox server error: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	return s.Close()
}

// Close stops the scheduler and closes the database
func (s *Server) Close() error {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
