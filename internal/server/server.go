package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/raine/listing-snap/internal/listing"
	"github.com/raine/listing-snap/internal/pipeline"
)

// Server exposes the pipelines over HTTP.
type Server struct {
	pipelines *pipeline.Service
	repo      listing.Repository
	engine    *gin.Engine
}

// New builds the router. Wrong-method requests on known paths get 405.
func New(pipelines *pipeline.Service, repo listing.Repository) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(requestLogger(), gin.Recovery())

	s := &Server{
		pipelines: pipelines,
		repo:      repo,
		engine:    engine,
	}

	engine.GET("/healthz", s.health)

	api := engine.Group("/api")
	api.POST("/listings", s.createListing)
	api.POST("/listings/remove-bg", s.removeBackground)
	api.GET("/listings", s.listListings)
	api.GET("/listings/:id", s.getListing)
	// The :id wildcard would otherwise capture GET requests to the removal
	// endpoint and answer 404 as if "remove-bg" were a listing id.
	api.GET("/listings/remove-bg", s.methodNotAllowed)

	return s
}

// Handler returns the root http.Handler for use with an http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) methodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
}

// requestLogger logs one line per request with zerolog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	}
}
