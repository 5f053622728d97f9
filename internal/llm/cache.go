package llm

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// ExtractionCache stores raw extraction payloads keyed by image hash.
type ExtractionCache interface {
	GetExtractionCache(hash string) (json.RawMessage, error)
	SetExtractionCache(hash string, payload json.RawMessage) error
}

// CachedExtractor wraps an Extractor with a persistent cache. Identical
// photo sets skip the model call. Cache failures are logged and ignored.
type CachedExtractor struct {
	inner Extractor
	cache ExtractionCache
}

// NewCachedExtractor creates a cached extractor.
func NewCachedExtractor(inner Extractor, cache ExtractionCache) *CachedExtractor {
	return &CachedExtractor{inner: inner, cache: cache}
}

// hashImages creates a SHA256 hash from image data.
// Includes length prefix for each image to prevent boundary collisions.
func hashImages(images []Image) string {
	h := sha256.New()
	for _, img := range images {
		binary.Write(h, binary.LittleEndian, int64(len(img.Data)))
		h.Write(img.Data)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ExtractListing implements the Extractor interface with caching.
func (c *CachedExtractor) ExtractListing(ctx context.Context, images []Image) (*ExtractionResult, error) {
	hash := hashImages(images)

	if c.cache != nil {
		raw, err := c.cache.GetExtractionCache(hash)
		if err != nil {
			log.Warn().Err(err).Msg("failed to check extraction cache")
		} else if raw != nil {
			// Re-coerce from the stored payload; zero usage for cached results.
			if res, err := ParseExtraction(string(raw)); err == nil {
				log.Debug().Str("hash", hash[:16]).Msg("extraction cache hit")
				return res, nil
			}
			log.Warn().Str("hash", hash[:16]).Msg("discarding unparseable extraction cache entry")
		}
	}

	res, err := c.inner.ExtractListing(ctx, images)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && len(res.Raw) > 0 {
		if err := c.cache.SetExtractionCache(hash, res.Raw); err != nil {
			log.Warn().Err(err).Msg("failed to write extraction cache")
		}
	}

	return res, nil
}
