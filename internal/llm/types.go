package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Image is one source photo handed to the extractor, in listing order.
type Image struct {
	Data     []byte
	MIMEType string
}

// Fields is the structured listing data derived from photos. Every field is
// optional: a field the model omits or mistypes becomes nil, never an error.
type Fields struct {
	Title           *string
	Category        *string
	Condition       *string
	Description     *string
	Price           *float64
	ConfidenceScore *float64
}

// Usage contains token usage and cost information for one model call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
	CostUSD      float64
}

// ExtractionResult is the outcome of a successful extraction call.
type ExtractionResult struct {
	Fields Fields
	// Raw is the exact JSON object the model returned, kept for audit.
	Raw   json.RawMessage
	Usage Usage
}

// Extractor derives structured listing fields from 1-2 photos.
type Extractor interface {
	ExtractListing(ctx context.Context, images []Image) (*ExtractionResult, error)
}

// Editor edits a single image with a generative model.
type Editor interface {
	// RemoveBackground strips the background to transparency, preserving the
	// main subject. Returns the edited image as PNG bytes.
	RemoveBackground(ctx context.Context, image []byte) ([]byte, error)
}

// InvalidOutputError reports a model response whose JSON envelope could not
// be parsed. Raw carries the model's text for diagnostics.
type InvalidOutputError struct {
	Raw string
	Err error
}

func (e *InvalidOutputError) Error() string {
	return fmt.Sprintf("model returned invalid JSON: %v", e.Err)
}

func (e *InvalidOutputError) Unwrap() error { return e.Err }
