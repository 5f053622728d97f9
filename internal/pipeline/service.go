package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/raine/listing-snap/internal/listing"
	"github.com/raine/listing-snap/internal/llm"
	"github.com/raine/listing-snap/internal/store"
	"github.com/raine/listing-snap/internal/upload"
)

// ErrNoImages indicates a request with no usable images.
var ErrNoImages = errors.New("no usable images")

// Service runs the ingestion and background-removal pipelines. All provider
// handles are injected once at construction.
type Service struct {
	store     store.Store
	extractor llm.Extractor
	editor    llm.Editor
	repo      listing.Repository
	// now is injectable so tests get deterministic storage paths.
	now func() time.Time
}

// New creates a pipeline service around the given capability handles.
func New(st store.Store, extractor llm.Extractor, editor llm.Editor, repo listing.Repository) *Service {
	return &Service{
		store:     st,
		extractor: extractor,
		editor:    editor,
		repo:      repo,
		now:       time.Now,
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// sanitizeFilename makes an untrusted client filename safe for storage paths.
func sanitizeFilename(name string) string {
	if name == "" {
		return "image"
	}
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// CreateRequest is the decoded input for listing creation.
type CreateRequest struct {
	Images []upload.Image
	// RemoveBG is echoed back as a hint for client-side follow-up; it never
	// triggers the removal pipeline here.
	RemoveBG bool
}

// CreateResult is the outcome of a successful ingestion.
type CreateResult struct {
	Listing  *listing.Listing
	RemoveBG bool
}

// CreateListing uploads the images, extracts listing fields from them and
// persists the result. Any stage failure aborts the whole ingestion: a
// listing is never persisted with a subset of its images, and objects
// already written by a failed ingestion are left behind as orphans.
func (s *Service) CreateListing(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	images := req.Images
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: select 1-2 images", ErrNoImages)
	}
	if len(images) > upload.MaxImages {
		images = images[:upload.MaxImages]
	}

	// Uploads run sequentially in arrival order: the first URL becomes the
	// listing's canonical image.
	urls := make([]string, 0, len(images))
	for _, img := range images {
		path := fmt.Sprintf("listings/%d-%s", s.now().UnixMilli(), sanitizeFilename(img.Filename))
		if _, err := s.store.Put(ctx, path, img.Data, img.ContentType); err != nil {
			return nil, fmt.Errorf("failed to upload image: %w", err)
		}
		urls = append(urls, s.store.PublicURL(path))
	}

	sources := make([]llm.Image, len(images))
	for i, img := range images {
		sources[i] = llm.Image{Data: img.Data, MIMEType: img.ContentType}
	}

	extraction, err := s.extractor.ExtractListing(ctx, sources)
	if err != nil {
		return nil, err
	}

	l := &listing.Listing{
		Title:           extraction.Fields.Title,
		Category:        extraction.Fields.Category,
		Condition:       extraction.Fields.Condition,
		Description:     extraction.Fields.Description,
		Price:           extraction.Fields.Price,
		ConfidenceScore: extraction.Fields.ConfidenceScore,
		RawExtraction:   extraction.Raw,
	}
	l.SetImages(urls)

	saved, err := s.repo.Create(ctx, l)
	if err != nil {
		return nil, fmt.Errorf("failed to persist listing: %w", err)
	}

	log.Info().
		Str("listingID", saved.ID).
		Int("imageCount", len(saved.Images)).
		Bool("removeBG", req.RemoveBG).
		Msg("listing created")

	return &CreateResult{Listing: saved, RemoveBG: req.RemoveBG}, nil
}
