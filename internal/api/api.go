// Package api exposes the HTTP surface: media-server webhook ingestion
// and the metadata search/detail endpoints.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"trackarr/internal/config"
	"trackarr/internal/logger"
	"trackarr/internal/mapping"
	"trackarr/internal/metadata"
	"trackarr/internal/webhooks"
)

// Server represents the API server
type Server struct {
	router      *gin.Engine
	http        *http.Server
	db          *gorm.DB
	dispatcher  *metadata.Dispatcher
	mapping     *mapping.Service
	processor   *webhooks.Processor
	normalizers map[string]webhooks.Normalizer
	log         *logger.Logger
}

// NewServer creates a new API server instance
func NewServer(cfg config.APIConfig, db *gorm.DB, dispatcher *metadata.Dispatcher, mappingService *mapping.Service, processor *webhooks.Processor, normalizers []webhooks.Normalizer) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(errorHandlerMiddleware())

	corsConfig := cors.DefaultConfig()
	if len(cfg.CORSOrigins) == 1 && cfg.CORSOrigins[0] == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.CORSOrigins
	}
	router.Use(cors.New(corsConfig))

	byName := make(map[string]webhooks.Normalizer, len(normalizers))
	for _, n := range normalizers {
		byName[n.Source()] = n
	}

	s := &Server{
		router:      router,
		db:          db,
		dispatcher:  dispatcher,
		mapping:     mappingService,
		processor:   processor,
		normalizers: byName,
		log:         logger.AppLogger(),
	}
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Run starts the API server
func (s *Server) Run() error {
	s.log.WithFields(map[string]interface{}{"addr": s.http.Addr}).
		Info("starting api server")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown stops the server, draining in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Health check endpoint
	s.router.GET("/health", s.healthCheck)

	// Media server webhook ingestion
	s.router.POST("/webhooks/:source/:token", s.handleWebhook)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		// Metadata endpoints
		v1.GET("/search", s.search)
		v1.GET("/metadata/:source/:media_type/:media_id", s.getMetadata)

		// Admin ID mapping overrides
		v1.POST("/mappings", s.createMapping)
	}
}
