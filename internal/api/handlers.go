package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"trackarr/internal/database"
	apperrors "trackarr/internal/errors"
	"trackarr/internal/mapping"
	"trackarr/internal/metadata"
	"trackarr/internal/models"
)

func (s *Server) healthCheck(c *gin.Context) {
	if err := database.HealthCheck(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
	})
}

// handleWebhook ingests one media-server notification. Apart from an
// unknown source or a bad token the endpoint always answers 200: a
// failure code would make the media server retry deliveries that will
// never become processable.
func (s *Server) handleWebhook(c *gin.Context) {
	source := c.Param("source")
	normalizer, ok := s.normalizers[source]
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "unknown source",
			Message: "no webhook handler for " + source,
		})
		return
	}

	var user models.User
	err := s.db.WithContext(c.Request.Context()).
		Where("token = ?", c.Param("token")).
		First(&user).Error
	if err == gorm.ErrRecordNotFound {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "unauthorized",
			Message: "invalid webhook token",
		})
		return
	}
	if err != nil {
		s.log.Error("webhook user lookup failed", err)
		c.JSON(http.StatusOK, WebhookResponse{Status: "error"})
		return
	}

	payload, err := webhookPayload(c, source)
	if err != nil {
		s.log.WithFields(map[string]interface{}{"source": source}).
			Warn("could not read webhook payload")
		c.JSON(http.StatusOK, WebhookResponse{Status: "ignored"})
		return
	}

	ev, err := normalizer.Normalize(c.Request.Context(), payload, &user)
	if err != nil {
		s.log.WithFields(map[string]interface{}{
			"source": source,
			"error":  err.Error(),
		}).Warn("webhook payload rejected")
		c.JSON(http.StatusOK, WebhookResponse{Status: "ignored"})
		return
	}
	if ev == nil {
		c.JSON(http.StatusOK, WebhookResponse{Status: "ignored"})
		return
	}

	if err := s.processor.Process(c.Request.Context(), &user, ev); err != nil {
		s.log.WithFields(map[string]interface{}{"source": source}).
			Error("webhook processing failed", err)
		c.JSON(http.StatusOK, WebhookResponse{Status: "error"})
		return
	}

	c.JSON(http.StatusOK, WebhookResponse{Status: "processed"})
}

// webhookPayload extracts the JSON payload the way each server wraps
// it: Plex posts a multipart field named payload, Emby one named data,
// Jellyfin posts the JSON body directly.
func webhookPayload(c *gin.Context, source string) ([]byte, error) {
	switch source {
	case "plex":
		return []byte(c.Request.FormValue("payload")), nil
	case "emby":
		return []byte(c.Request.FormValue("data")), nil
	default:
		return io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	}
}

func (s *Server) search(c *gin.Context) {
	source := models.Source(c.Query("source"))
	mediaType := models.MediaType(c.Query("media_type"))
	query := c.Query("q")

	if !source.Valid() || !mediaType.Valid() || query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Message: "source, media_type and q are required",
		})
		return
	}

	page := 1
	if raw := c.Query("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}

	results, err := s.dispatcher.Search(c.Request.Context(), source, mediaType, query, page)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (s *Server) getMetadata(c *gin.Context) {
	ref := metadata.MediaRef{
		Source:    models.Source(c.Param("source")),
		MediaType: models.MediaType(c.Param("media_type")),
		MediaID:   c.Param("media_id"),
	}

	if !ref.Source.Valid() || !ref.MediaType.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Message: "unknown source or media type",
		})
		return
	}

	if raw := c.Query("season"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			ref.Season = &n
		}
	}
	if raw := c.Query("episode"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			ref.Episode = &n
		}
	}

	meta, err := s.dispatcher.Fetch(c.Request.Context(), ref)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (s *Server) createMapping(c *gin.Context) {
	var req CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
		})
		return
	}
	if !req.FromSource.Valid() || !req.ToSource.Valid() {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Message: "unknown source",
		})
		return
	}

	err := s.mapping.UpsertOverride(c.Request.Context(),
		req.FromSource, req.FromID, req.ToSource, req.ToID, req.Confirm)
	if errors.Is(err, mapping.ErrMappingExists) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "mapping exists",
			Message: "a mapping for this source id already exists, set confirm to replace it",
		})
		return
	}
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "mapping saved"})
}

// renderError maps internal error codes to HTTP statuses. Provider
// failures name the provider but never leak response bodies.
func (s *Server) renderError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal server error",
			Message: "an unexpected error occurred",
		})
		return
	}

	switch appErr.Code {
	case apperrors.CodeValidation, apperrors.CodeInvalidInput:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request",
			Message: appErr.Message,
		})
	case apperrors.CodeNotFound:
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not found",
			Message: appErr.Message,
		})
	case apperrors.CodeProviderAPI, apperrors.CodeServiceUnavailable,
		apperrors.CodeServiceTimeout, apperrors.CodeRateLimited:
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   "provider error",
			Message: appErr.Message,
		})
	default:
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "internal server error",
			Message: "an unexpected error occurred",
		})
	}
}
