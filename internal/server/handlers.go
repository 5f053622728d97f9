package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/raine/listing-snap/internal/listing"
	"github.com/raine/listing-snap/internal/pipeline"
	"github.com/raine/listing-snap/internal/upload"
)

// createResponse is the persisted listing plus the echoed remove_bg hint.
type createResponse struct {
	*listing.Listing
	RemoveBG bool `json:"remove_bg"`
}

func (s *Server) createListing(c *gin.Context) {
	form, err := upload.Decode(c.Request)
	if err != nil {
		s.renderError(c, err)
		return
	}

	res, err := s.pipelines.CreateListing(c.Request.Context(), pipeline.CreateRequest{
		Images:   form.Images,
		RemoveBG: parseBoolField(form.Fields["remove_bg"]),
	})
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, createResponse{Listing: res.Listing, RemoveBG: res.RemoveBG})
}

type removeBackgroundRequest struct {
	ListingID string `json:"listing_id"`
}

func (s *Server) removeBackground(c *gin.Context) {
	var req removeBackgroundRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ListingID == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "missing listing_id"})
		return
	}

	updated, err := s.pipelines.RemoveBackground(c.Request.Context(), req.ListingID)
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (s *Server) getListing(c *gin.Context) {
	l, err := s.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, l)
}

func (s *Server) listListings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	listings, err := s.repo.List(c.Request.Context(), limit)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if listings == nil {
		listings = []listing.Listing{}
	}
	c.JSON(http.StatusOK, listings)
}

// parseBoolField interprets checkbox-style form values.
func parseBoolField(values []string) bool {
	if len(values) == 0 {
		return false
	}
	switch values[0] {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
