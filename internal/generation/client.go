package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/keyworder/keyworder/internal/config"
	"github.com/keyworder/keyworder/internal/ingest"
)

// Instruction is the fixed prompt sent with every image.
const Instruction = "Analyze this image. Generate one marketable, descriptive title for it. " +
	"Then generate approximately 45 distinct, relevant, single-word keywords that capture " +
	"the subject, concept, and style of the image. Respond with a JSON object containing " +
	"a \"title\" string and a \"keywords\" array of strings."

// Result is the structured output of one generate call.
type Result struct {
	Title    string   `json:"title"`
	Keywords []string `json:"keywords"`
}

// Generator produces a Result from an encoded image.
type Generator interface {
	Generate(ctx context.Context, image *ingest.EncodedImage) (*Result, error)
}

// TransportError is a network or HTTP failure talking to the backend.
type TransportError struct {
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("generation request failed: %v", e.Err)
	}
	return fmt.Sprintf("generation request failed: status %d", e.Status)
}

func (e *TransportError) Unwrap() error { return e.Err }

// SchemaError means the response did not match the requested shape.
type SchemaError struct {
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected generation response: %s", e.Reason)
}

// New selects a generation backend from configuration, mirroring the
// provider switch used elsewhere: the REST client is the default, the SDK
// client an alternative.
func New(cfg *config.Config) (Generator, error) {
	switch cfg.Provider {
	case "", "rest":
		return NewRESTClient(cfg), nil
	case "gemini":
		return NewGeminiClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
}

// decodeResult parses the JSON text the model returned. Invalid JSON is a
// schema violation; a missing title or malformed keywords field is tolerated
// and coerced instead.
func decodeResult(text string) (*Result, error) {
	var raw struct {
		Title    json.RawMessage `json:"title"`
		Keywords json.RawMessage `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, &SchemaError{Reason: "inner text is not valid JSON"}
	}

	result := &Result{Keywords: []string{}}

	if raw.Title != nil {
		var title string
		if err := json.Unmarshal(raw.Title, &title); err == nil {
			result.Title = title
		}
	}

	if raw.Keywords != nil {
		var keywords []string
		if err := json.Unmarshal(raw.Keywords, &keywords); err == nil {
			for _, kw := range keywords {
				kw = strings.TrimSpace(kw)
				if kw != "" {
					result.Keywords = append(result.Keywords, kw)
				}
			}
		}
	}

	return result, nil
}
