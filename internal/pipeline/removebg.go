package pipeline

import (
	"context"
	"fmt"
	"path"
	"regexp"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/raine/listing-snap/internal/listing"
)

// removalConcurrency bounds the per-image fan-out. A single failed image
// still aborts the whole batch before anything is persisted.
const removalConcurrency = 2

var imageExtension = regexp.MustCompile(`(?i)\.(jpg|jpeg|webp|png)$`)

// RemoveBackground re-processes every image of an existing listing: download,
// strip the background with the image-edit model, upload the result under a
// new path and finally swap the listing's whole image list in one update.
// If any single image fails, the listing is left untouched; replacement
// objects already uploaded by then stay behind as orphans.
func (s *Service) RemoveBackground(ctx context.Context, listingID string) (*listing.Listing, error) {
	l, err := s.repo.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}

	urls := l.Images
	if len(urls) == 0 && l.ImageURL != nil {
		// Older rows may carry only image_url.
		urls = []string{*l.ImageURL}
	}
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: listing has no images", ErrNoImages)
	}

	newURLs := make([]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(removalConcurrency)
	for i, url := range urls {
		g.Go(func() error {
			newURL, err := s.removeBackgroundForImage(gctx, listingID, url)
			if err != nil {
				log.Error().Err(err).Str("url", url).Msg("failed to replace listing image")
				return err
			}
			newURLs[i] = newURL
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	updated, err := s.repo.ReplaceImages(ctx, listingID, newURLs)
	if err != nil {
		return nil, fmt.Errorf("failed to update listing images: %w", err)
	}

	log.Info().
		Str("listingID", listingID).
		Int("imageCount", len(newURLs)).
		Msg("listing backgrounds removed")

	return updated, nil
}

// removeBackgroundForImage handles a single image: fetch, edit, store.
// Returns the public URL of the replacement object.
func (s *Service) removeBackgroundForImage(ctx context.Context, listingID, url string) (string, error) {
	data, err := s.store.Get(ctx, url)
	if err != nil {
		return "", err
	}

	edited, err := s.editor.RemoveBackground(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to remove background: %w", err)
	}

	baseName := "image"
	if objPath, err := s.store.PathFromURL(url); err == nil {
		baseName = path.Base(objPath)
	}
	outName := imageExtension.ReplaceAllString(baseName, "") + "-nobg.png"
	outPath := fmt.Sprintf("listings/nobg/%s/%d-%s", listingID, s.now().UnixMilli(), outName)

	contentType := mimetype.Detect(edited).String()
	if _, err := s.store.Put(ctx, outPath, edited, contentType); err != nil {
		return "", err
	}

	return s.store.PublicURL(outPath), nil
}
