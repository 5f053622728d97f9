package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/raine/listing-snap/internal/listing"
	"github.com/raine/listing-snap/internal/llm"
	"github.com/raine/listing-snap/internal/pipeline"
	"github.com/raine/listing-snap/internal/upload"
)

type errorResponse struct {
	Error string `json:"error"`
	// Raw carries the model's text when it returned unparseable output.
	Raw string `json:"raw,omitempty"`
}

// renderError maps pipeline errors onto HTTP statuses. Stage failures have
// already been logged where they happened; this logs the mapping once and
// answers with a human-readable message, never a stack trace.
func (s *Server) renderError(c *gin.Context, err error) {
	var invalid *llm.InvalidOutputError

	status := http.StatusInternalServerError
	body := errorResponse{Error: err.Error()}

	switch {
	case errors.Is(err, pipeline.ErrNoImages),
		errors.Is(err, upload.ErrPayloadTooLarge),
		errors.Is(err, upload.ErrMalformed):
		status = http.StatusBadRequest
	case errors.Is(err, listing.ErrNotFound):
		status = http.StatusNotFound
	case errors.As(err, &invalid):
		body.Raw = invalid.Raw
	}

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}

	c.JSON(status, body)
}
