package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/keyworder/keyworder/internal/config"
	"github.com/keyworder/keyworder/internal/ingest"
)

// RESTClient calls the generation endpoint directly, requesting structured
// output via a response schema. The credential travels as a query parameter.
type RESTClient struct {
	Endpoint string
	Model    string
	APIKey   string
	HTTP     *http.Client
}

func NewRESTClient(cfg *config.Config) *RESTClient {
	return &RESTClient{
		Endpoint: cfg.Endpoint,
		Model:    cfg.Model,
		APIKey:   cfg.APIKey,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
	}
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type schema struct {
	Type             string             `json:"type"`
	Properties       map[string]*schema `json:"properties,omitempty"`
	Items            *schema            `json:"items,omitempty"`
	PropertyOrdering []string           `json:"propertyOrdering,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   *schema `json:"responseSchema"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func resultSchema() *schema {
	return &schema{
		Type: "OBJECT",
		Properties: map[string]*schema{
			"title":    {Type: "STRING"},
			"keywords": {Type: "ARRAY", Items: &schema{Type: "STRING"}},
		},
		PropertyOrdering: []string{"title", "keywords"},
	}
}

// Generate submits the image with the fixed instruction and parses the
// structured response. An empty credential fails fast before any network
// call.
func (c *RESTClient) Generate(ctx context.Context, image *ingest.EncodedImage) (*Result, error) {
	if c.APIKey == "" {
		return nil, &config.ConfigError{Field: "GEMINI_API_KEY"}
	}

	requestBody, err := json.Marshal(generateRequest{
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{Text: Instruction},
					{InlineData: &inlineData{MimeType: image.MimeType, Data: image.Data}},
				},
			},
		},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   resultSchema(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.Endpoint, c.Model, url.QueryEscape(c.APIKey))
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("Generation endpoint returned an error", "status", resp.StatusCode, "body", string(body))
		return nil, &TransportError{Status: resp.StatusCode}
	}

	var response generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, &SchemaError{Reason: "response body is not valid JSON"}
	}

	if len(response.Candidates) == 0 {
		return nil, &SchemaError{Reason: "no candidates returned"}
	}

	parts := response.Candidates[0].Content.Parts
	if len(parts) != 1 {
		return nil, &SchemaError{Reason: fmt.Sprintf("expected exactly one content part, got %d", len(parts))}
	}

	return decodeResult(parts[0].Text)
}
