package generation

import (
	"context"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"github.com/keyworder/keyworder/internal/config"
	"github.com/keyworder/keyworder/internal/ingest"
	"google.golang.org/api/option"
)

// GeminiClient is an SDK-backed alternative to the REST client. It requests
// the same response schema through the genai client library.
type GeminiClient struct {
	Model  string
	APIKey string
}

func NewGeminiClient(cfg *config.Config) *GeminiClient {
	return &GeminiClient{
		Model:  cfg.Model,
		APIKey: cfg.APIKey,
	}
}

// Generate submits the image through the genai SDK.
func (g *GeminiClient) Generate(ctx context.Context, image *ingest.EncodedImage) (*Result, error) {
	if g.APIKey == "" {
		return nil, &config.ConfigError{Field: "GEMINI_API_KEY"}
	}

	data, err := ingest.Decode(image)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(g.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(g.Model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":    {Type: genai.TypeString},
			"keywords": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
		},
	}

	resp, err := model.GenerateContent(ctx,
		genai.Text(Instruction),
		genai.Blob{MIMEType: image.MimeType, Data: data},
	)
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	if len(resp.Candidates) == 0 {
		return nil, &SchemaError{Reason: "no candidates returned"}
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, &SchemaError{Reason: "empty content returned"}
	}

	txt, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok {
		return nil, &SchemaError{Reason: "first content part is not text"}
	}

	return decodeResult(string(txt))
}
