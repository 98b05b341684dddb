package cloud

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/HendryAvila/toolvault/internal/remote"
	"github.com/HendryAvila/toolvault/internal/tool"
)

// Config holds server configuration.
type Config struct {
	Secret     []byte
	TokenTTL   time.Duration
	BcryptCost int
	Logger     *zap.Logger
}

// Server routes the REST surface consumed by remote.Client.
type Server struct {
	backend *Backend
	tokens  *Tokens
	logger  *zap.Logger
	router  *gin.Engine
}

// New builds a server over a fresh in-memory backend.
func New(cfg Config) (*Server, error) {
	tokens, err := NewTokens(cfg.Secret, cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &Server{
		backend: NewBackend(cfg.BcryptCost),
		tokens:  tokens,
		logger:  cfg.Logger.Named("cloud"),
	}
	s.router = s.routes()
	return s, nil
}

// Backend exposes the underlying store for fixtures.
func (s *Server) Backend() *Backend {
	return s.backend
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.logger.Info("listening", zap.String("addr", addr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("cloud: serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	auth := r.Group("/v1/auth")
	auth.POST("/signup", s.signUp)
	auth.POST("/signin", s.signIn)
	auth.GET("/user", s.requireUser, s.currentUser)

	v1 := r.Group("/v1", s.requireUser)
	v1.GET("/tools", s.listTools)
	v1.GET("/tools/:id", s.getTool)
	v1.POST("/tools", s.saveTool)
	v1.DELETE("/tools/:id", s.deleteTool)
	v1.GET("/favorites/:id", s.isFavorite)
	v1.PUT("/favorites/:id", s.setFavorite(true))
	v1.DELETE("/favorites/:id", s.setFavorite(false))
	return r
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// ─── Auth handlers ──────────────────────────────────────────────────────────

func (s *Server) signUp(c *gin.Context) {
	var in remote.Credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := s.backend.SignUp(in.Email, in.Password)
	switch {
	case errors.Is(err, ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ErrBadCredentials):
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.issueSession(c, u)
}

func (s *Server) signIn(c *gin.Context) {
	var in remote.Credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := s.backend.SignIn(in.Email, in.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	s.issueSession(c, u)
}

func (s *Server) issueSession(c *gin.Context, u remote.User) {
	token, err := s.tokens.Issue(u.ID, u.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, remote.Session{Token: token, User: u})
}

func (s *Server) currentUser(c *gin.Context) {
	u, ok := s.backend.UserByID(currentUser(c))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	c.JSON(http.StatusOK, u)
}

// ─── Tool handlers ──────────────────────────────────────────────────────────

func (s *Server) listTools(c *gin.Context) {
	params := tool.ListParams{Query: c.Query("query")}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		params.Limit = n
	}
	metas, err := s.backend.List(currentUser(c), params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if metas == nil {
		metas = []tool.Meta{}
	}
	c.JSON(http.StatusOK, remote.ListResponse{Tools: metas})
}

func (s *Server) getTool(c *gin.Context) {
	rec, err := s.backend.Get(currentUser(c), c.Param("id"))
	if errors.Is(err, tool.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (s *Server) saveTool(c *gin.Context) {
	var in remote.SaveRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	m, err := s.backend.Save(currentUser(c), in.Definition, in.Meta)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) deleteTool(c *gin.Context) {
	err := s.backend.Delete(currentUser(c), c.Param("id"))
	if errors.Is(err, ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) isFavorite(c *gin.Context) {
	c.JSON(http.StatusOK, remote.FavoriteResponse{
		Favorite: s.backend.IsFavorite(currentUser(c), c.Param("id")),
	})
}

func (s *Server) setFavorite(on bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.backend.Favorite(currentUser(c), c.Param("id"), on)
		c.Status(http.StatusNoContent)
	}
}
