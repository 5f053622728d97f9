package listing

import (
	"encoding/json"
	"time"
)

// Condition values a listing may carry.
const (
	ConditionNew     = "new"
	ConditionLikeNew = "like_new"
	ConditionGood    = "good"
	ConditionFair    = "fair"
	ConditionPoor    = "poor"
)

// MaxTitleLength is the longest title a listing may carry.
const MaxTitleLength = 150

// ValidCondition reports whether s is one of the known condition values.
func ValidCondition(s string) bool {
	switch s {
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// Listing is the durable marketplace record derived from uploaded photos.
// Extraction fields are pointers: the model may fail to produce any of them,
// in which case they persist as null rather than failing the whole ingest.
type Listing struct {
	ID              string          `json:"id"`
	Title           *string         `json:"title"`
	Category        *string         `json:"category"`
	Condition       *string         `json:"condition"`
	Description     *string         `json:"description"`
	Price           *float64        `json:"price"`
	ImageURL        *string         `json:"image_url"`
	Images          []string        `json:"images"`
	ConfidenceScore *float64        `json:"confidence_score"`
	RawExtraction   json.RawMessage `json:"raw_ai,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// SetImages replaces the image list, keeping ImageURL in sync: always the
// first image, or null when the list is empty.
func (l *Listing) SetImages(urls []string) {
	l.Images = urls
	if len(urls) > 0 {
		first := urls[0]
		l.ImageURL = &first
	} else {
		l.ImageURL = nil
	}
}
