// Package api exposes the categorization engine over HTTP with gin.
//
// The user is taken from the path; authentication happens in front of this
// server.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/engine"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/Veraticus/wantnot/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Store is the persistence the handlers read from directly.
type Store interface {
	service.UserDirectory
	service.CategoryDirectory
	service.TransactionStore

	CreateCategory(ctx context.Context, category model.Category) (*model.Category, error)
	UpdateCategory(ctx context.Context, category model.Category) error
	DeleteCategory(ctx context.Context, categoryID string) error
}

// Server holds the handler dependencies.
type Server struct {
	engine *engine.Engine
	store  Store
	logger *slog.Logger
}

// Options configures the router.
type Options struct {
	CORSOrigins []string
}

// NewServer creates the HTTP handlers.
func NewServer(eng *engine.Engine, store Store, logger *slog.Logger) *Server {
	return &Server{engine: eng, store: store, logger: common.LoggerOrDefault(logger)}
}

// Router builds the gin engine with every route registered.
func (s *Server) Router(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	user := r.Group("/api/users/:userID")

	user.GET("/categories", s.listCategories)
	user.POST("/categories", s.createCategory)
	user.PUT("/categories/:categoryID", s.updateCategory)
	user.DELETE("/categories/:categoryID", s.deleteCategory)

	txns := user.Group("/transactions")
	txns.GET("/uncategorized", s.listUncategorized)
	txns.POST("/bulk-categorize", s.bulkCategorize)
	txns.POST("/ai-suggest", s.aiSuggest)
	txns.POST("/accept-suggestions", s.acceptSuggestions)
	txns.POST("/:txnID/categorize", s.categorize)
	txns.POST("/:txnID/auto-categorize", s.autoCategorize)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		s.logger.Log(c.Request.Context(), level, "request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
