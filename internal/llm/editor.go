package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
)

const removeBackgroundPrompt = "Remove the background. Keep the main product/object intact. Output with a transparent background."

// OpenAIEditor removes image backgrounds using OpenAI's image edit API.
type OpenAIEditor struct {
	client openai.Client
}

// NewOpenAIEditor creates an editor with an explicit API key.
func NewOpenAIEditor(apiKey string) *OpenAIEditor {
	return &OpenAIEditor{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

// RemoveBackground implements the Editor interface using gpt-image-1. The
// returned bytes are decoded once to make sure the model produced a usable
// image before anything is written to storage.
func (o *OpenAIEditor) RemoveBackground(ctx context.Context, image []byte) ([]byte, error) {
	resp, err := o.client.Images.Edit(ctx, openai.ImageEditParams{
		Image: openai.ImageEditParamsImageUnion{
			OfFile: openai.File(bytes.NewReader(image), "image.png", "image/png"),
		},
		Prompt:       removeBackgroundPrompt,
		Model:        openai.ImageModelGPTImage1,
		Background:   openai.ImageEditParamsBackgroundTransparent,
		OutputFormat: openai.ImageEditParamsOutputFormatPNG,
	})
	if err != nil {
		return nil, fmt.Errorf("image edit failed: %w", err)
	}

	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("no image data in edit response")
	}

	edited, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode edited image: %w", err)
	}

	if _, err := imaging.Decode(bytes.NewReader(edited)); err != nil {
		return nil, fmt.Errorf("edited image is not decodable: %w", err)
	}

	log.Info().
		Int("inputSize", len(image)).
		Int("outputSize", len(edited)).
		Msg("background removal llm call")

	return edited, nil
}
