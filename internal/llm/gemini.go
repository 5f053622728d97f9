package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/lithammer/dedent"
	"github.com/raine/listing-snap/internal/listing"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const geminiModel = "gemini-3-flash-preview"

// Gemini pricing (per million tokens)
const (
	geminiInputPricePerMillion  = 0.50 // $0.50 per 1M input tokens (text/image/video)
	geminiOutputPricePerMillion = 3.00 // $3.00 per 1M output tokens (including thinking)
)

// extractionPromptV1 is the fixed instruction for listing extraction. Bump
// the version suffix when changing the wording so audit payloads produced
// under the old instruction can be told apart.
var extractionPromptV1 = strings.TrimSpace(dedent.Dedent(`
	Generate a marketplace listing from these photos of the item.

	Return ONLY a valid JSON object with exactly these keys:
	- title: short listing title, at most 150 characters
	- category: the marketplace category the item belongs to
	- condition: one of "new", "like_new", "good", "fair", "poor"
	- description: a few sentences describing the item
	- price: suggested price as a number
	- confidence_score: how confident you are in this listing overall, a number between 0 and 1

	Example response:
	{"title": "Blue Chair", "category": "furniture", "condition": "good", "description": "A blue chair.", "price": 40, "confidence_score": 0.8}
`))

// GeminiExtractor derives listing fields from photos using Gemini.
type GeminiExtractor struct {
	client *genai.Client
}

// NewGeminiExtractor creates a Gemini-backed extractor with an explicit API
// key. The client is meant to be constructed once per process.
func NewGeminiExtractor(ctx context.Context, apiKey string) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiExtractor{client: client}, nil
}

// ExtractListing sends the photos to Gemini in JSON response mode and parses
// the result. At most one model call is made; there is no retry.
func (g *GeminiExtractor) ExtractListing(ctx context.Context, images []Image) (*ExtractionResult, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("no images provided")
	}
	if len(images) > 2 {
		images = images[:2]
	}

	parts := []*genai.Part{
		genai.NewPartFromText(extractionPromptV1),
	}
	for _, img := range images {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{Data: img.Data, MIMEType: img.MIMEType},
		})
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	// JSON response mode constrains the output shape at the API level
	// instead of relying on the prompt alone.
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0.2),
	}

	result, err := g.client.Models.GenerateContent(ctx, geminiModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini")
	}

	res, err := ParseExtraction(result.Text())
	if err != nil {
		return nil, err
	}

	if result.UsageMetadata != nil {
		res.Usage.InputTokens = int64(result.UsageMetadata.PromptTokenCount)
		res.Usage.OutputTokens = int64(result.UsageMetadata.CandidatesTokenCount)
		res.Usage.TotalTokens = int64(result.UsageMetadata.TotalTokenCount)
		res.Usage.CostUSD = calculateGeminiCost(res.Usage.InputTokens, res.Usage.OutputTokens)
	}

	log.Info().
		Str("model", geminiModel).
		Int("imageCount", len(images)).
		Int64("inputTokens", res.Usage.InputTokens).
		Int64("outputTokens", res.Usage.OutputTokens).
		Float64("costUSD", res.Usage.CostUSD).
		Msg("extraction llm call")

	return res, nil
}

func calculateGeminiCost(inputTokens, outputTokens int64) float64 {
	inputCost := float64(inputTokens) / 1_000_000 * geminiInputPricePerMillion
	outputCost := float64(outputTokens) / 1_000_000 * geminiOutputPricePerMillion
	return inputCost + outputCost
}

// extractJSONObject extracts a JSON object from text that may contain markdown
// code blocks or other formatting. Returns the extracted JSON string or an error.
func extractJSONObject(text string) (string, error) {
	text = strings.TrimSpace(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return "", fmt.Errorf("no JSON object found in response")
	}
	return text[start : end+1], nil
}

// ParseExtraction parses the model text. A failure to parse the JSON
// envelope is fatal and surfaces the raw text; individual fields are coerced
// best effort and become nil when absent or mistyped.
func ParseExtraction(text string) (*ExtractionResult, error) {
	jsonStr, err := extractJSONObject(text)
	if err != nil {
		return nil, &InvalidOutputError{Raw: text, Err: err}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &obj); err != nil {
		return nil, &InvalidOutputError{Raw: text, Err: err}
	}

	return &ExtractionResult{
		Fields: Fields{
			Title:           coerceTitle(obj["title"]),
			Category:        coerceString(obj["category"]),
			Condition:       coerceCondition(obj["condition"]),
			Description:     coerceString(obj["description"]),
			Price:           coercePrice(obj["price"]),
			ConfidenceScore: coerceConfidence(obj["confidence_score"]),
		},
		Raw: json.RawMessage(jsonStr),
	}, nil
}

func coerceString(v any) *string {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	return &s
}

func coerceTitle(v any) *string {
	s := coerceString(v)
	if s == nil {
		return nil
	}
	if utf8.RuneCountInString(*s) > listing.MaxTitleLength {
		runes := []rune(*s)
		truncated := string(runes[:listing.MaxTitleLength])
		return &truncated
	}
	return s
}

func coerceCondition(v any) *string {
	s := coerceString(v)
	if s == nil || !listing.ValidCondition(*s) {
		return nil
	}
	return s
}

func coercePrice(v any) *float64 {
	f, ok := v.(float64)
	if !ok || f < 0 {
		return nil
	}
	return &f
}

func coerceConfidence(v any) *float64 {
	f, ok := v.(float64)
	if !ok || f < 0 || f > 1 {
		return nil
	}
	return &f
}
