// Package server hosts the BugBesty dashboard: REST API, websocket
// progress stream and the embedded web UI, all on one gin engine.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/G381N/BugBesty/internal/apikeys"
	"github.com/G381N/BugBesty/internal/auth"
	"github.com/G381N/BugBesty/internal/catalog"
	"github.com/G381N/BugBesty/internal/config"
	"github.com/G381N/BugBesty/internal/enum"
	"github.com/G381N/BugBesty/internal/recon"
	"github.com/G381N/BugBesty/internal/report"
	"github.com/G381N/BugBesty/internal/store"
	"github.com/G381N/BugBesty/internal/version"
	"github.com/G381N/BugBesty/web"
)

// Server represents the web dashboard server
type Server struct {
	router          *gin.Engine
	httpServer      *http.Server
	config          *config.Config
	store           store.Store
	recon           *recon.Service
	orchestrator    *enum.Orchestrator
	reports         *report.Generator
	keys            *apikeys.Manager
	users           *auth.UserService
	identity        *recon.IdentityResolver
	wsHub           *WebSocketHub
	jwtManager      *auth.JWTManager
	sessionStore    *auth.SessionStore
	authRateLimiter *AuthRateLimiter
	log             *logrus.Logger
}

// New wires the full service stack onto a gin engine
func New(cfg *config.Config, st store.Store, log *logrus.Logger) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logrus.New()
	}

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	jwtManager, err := auth.NewJWTManager(cfg.KeyPath())
	if err != nil {
		return nil, fmt.Errorf("initializing JWT manager: %w", err)
	}

	keys := apikeys.NewManager()
	if err := keys.Load(); err != nil {
		return nil, fmt.Errorf("loading API keys: %w", err)
	}

	verifier := enum.NewResolver(cfg.DNSTimeout)
	orchestrator := enum.NewOrchestrator(enum.NewDefaultSources(keys, verifier, log), log)
	orchestrator.SourceTimeout = cfg.SourceTimeout

	wsHub := NewWebSocketHub(log)
	orchestrator.OnProgress = func(source string, found int) {
		wsHub.Broadcast(WebSocketMessage{
			Type: "enumeration_progress",
			Data: map[string]any{"source": source, "found": found},
		})
	}

	s := &Server{
		router:          gin.New(),
		config:          cfg,
		store:           st,
		recon:           recon.NewService(st, catalog.Entries(), log),
		orchestrator:    orchestrator,
		reports:         report.NewGenerator(keys.Key("gemini"), log),
		keys:            keys,
		users:           auth.NewUserService(st),
		identity:        recon.NewIdentityResolver(st, false, log),
		wsHub:           wsHub,
		jwtManager:      jwtManager,
		sessionStore:    auth.NewSessionStore(),
		authRateLimiter: NewAuthRateLimiter(),
		log:             log,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s, nil
}

// setupMiddleware configures security and logging middleware
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())
	s.router.Use(s.securityHeaders())

	corsConfig := cors.Config{
		AllowOrigins:     s.config.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	s.router.Use(cors.New(corsConfig))

	s.router.Use(s.rateLimiter())
}

// securityHeaders adds security headers to all responses
func (s *Server) securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Content-Security-Policy", "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; connect-src 'self' ws://localhost:* wss://localhost:*")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		c.Next()
	}
}

// requestLogger logs API requests through the structured logger
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		// static assets and the websocket would drown the log
		if path == "/health" || path == "/favicon.ico" || path == "/ws" ||
			strings.HasPrefix(path, "/assets/") || strings.HasSuffix(path, ".js") ||
			strings.HasSuffix(path, ".css") || strings.HasSuffix(path, ".map") {
			return
		}
		if !strings.HasPrefix(path, "/api/") {
			return
		}

		if raw != "" {
			path = path + "?" + raw
		}
		status := c.Writer.Status()

		entry := s.log.WithFields(logrus.Fields{
			"status":  status,
			"method":  c.Request.Method,
			"path":    path,
			"ip":      c.ClientIP(),
			"latency": time.Since(start).Round(time.Microsecond).String(),
		})
		switch {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// rateLimiter implements simple in-memory token bucket rate limiting
func (s *Server) rateLimiter() gin.HandlerFunc {
	type client struct {
		tokens    int
		lastReset time.Time
	}
	var (
		mu         sync.Mutex
		clients    = make(map[string]*client)
		maxTokens  = 100
		window     = time.Minute
		refillRate = 10 // tokens per second
	)

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		cl, exists := clients[ip]
		if !exists {
			cl = &client{tokens: maxTokens, lastReset: time.Now()}
			clients[ip] = cl
		}

		elapsed := time.Since(cl.lastReset)
		if elapsed >= window {
			cl.tokens = maxTokens
			cl.lastReset = time.Now()
		} else {
			refill := int(elapsed.Seconds()) * refillRate
			cl.tokens = min(cl.tokens+refill, maxTokens)
		}

		if cl.tokens <= 0 {
			mu.Unlock()
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		cl.tokens--
		mu.Unlock()
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	api := s.router.Group("/api/v1")
	{
		api.GET("/version", s.getVersion)

		// auth endpoints get the aggressive limiter on top
		authGroup := api.Group("/auth")
		authGroup.Use(s.authRateLimiter.Middleware())
		{
			authGroup.POST("/login", s.login)
			authGroup.POST("/register", s.register)
			authGroup.POST("/refresh", s.refreshToken)
			authGroup.POST("/logout", s.logout)
		}
		api.GET("/auth/me", s.requireAuth(), s.getCurrentUser)

		protected := api.Group("")
		protected.Use(s.requireAuth())
		{
			protected.POST("/enumeration", s.startEnumeration)

			protected.GET("/projects", s.listProjects)
			protected.POST("/projects/with-subdomains", s.createProjectWithSubdomains)
			protected.GET("/projects/:id", s.getProject)
			protected.PATCH("/projects/:id", s.patchProject)
			protected.DELETE("/projects/:id", s.deleteProject)
			protected.GET("/projects/:id/stats", s.getProjectStats)
			protected.GET("/projects/:id/subdomains", s.listSubdomains)

			protected.GET("/subdomains/:id", s.getSubdomain)
			protected.DELETE("/subdomains/:id", s.deleteSubdomain)
			protected.GET("/subdomains/:id/vulnerabilities", s.listVulnerabilities)

			protected.PATCH("/vulnerabilities/:id", s.patchVulnerability)

			protected.POST("/reports", s.generateReport)
			protected.POST("/proxy", s.proxyRequest)
		}
	}

	s.router.GET("/ws", s.handleWebSocket)

	// embedded UI serves every unmatched route
	webFS, err := web.GetFS()
	if err != nil {
		webFS = http.Dir("web/dist")
	}
	s.router.NoRoute(gin.WrapH(http.FileServer(webFS)))
}

// requireAuth validates the JWT, then resolves the stored user identity
// behind it and stores the user id on the context
func (s *Server) requireAuth() gin.HandlerFunc {
	jwtMiddleware := auth.JWTMiddleware(s.jwtManager, s.sessionStore)
	return func(c *gin.Context) {
		jwtMiddleware(c)
		if c.IsAborted() {
			return
		}

		userID, err := s.identity.Resolve(c.Request.Context(), recon.TokenInfo{
			Subject: c.GetString(auth.ContextUserID),
			Email:   c.GetString(auth.ContextEmail),
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unknown user identity"})
			return
		}
		c.Set(auth.ContextUserID, userID)
	}
}

// Start starts the server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run()

	s.log.WithFields(logrus.Fields{
		"version": version.Version,
		"address": "http://" + addr,
	}).Info("dashboard listening")

	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts the server and drains it on SIGINT/SIGTERM
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)

	go func() {
		if err := s.Start(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.log.Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info("server stopped")
	return nil
}
