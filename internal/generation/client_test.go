package generation

import (
	"errors"
	"reflect"
	"testing"
)

func TestDecodeResult(t *testing.T) {
	tests := []struct {
		name         string
		text         string
		wantTitle    string
		wantKeywords []string
		wantErr      bool
	}{
		{
			name:         "well formed",
			text:         `{"title":"Sunset","keywords":["sky","orange"]}`,
			wantTitle:    "Sunset",
			wantKeywords: []string{"sky", "orange"},
		},
		{
			name:    "not json",
			text:    "a beautiful sunset over the ocean",
			wantErr: true,
		},
		{
			name:    "truncated json",
			text:    `{"title":"Sunset","keywords":["sky"`,
			wantErr: true,
		},
		{
			name:         "missing title is coerced to empty",
			text:         `{"keywords":["sky"]}`,
			wantTitle:    "",
			wantKeywords: []string{"sky"},
		},
		{
			name:         "missing keywords is coerced to empty sequence",
			text:         `{"title":"Sunset"}`,
			wantTitle:    "Sunset",
			wantKeywords: []string{},
		},
		{
			name:         "non-array keywords is coerced to empty sequence",
			text:         `{"title":"Sunset","keywords":"sky orange"}`,
			wantTitle:    "Sunset",
			wantKeywords: []string{},
		},
		{
			name:         "non-string title is coerced to empty",
			text:         `{"title":42,"keywords":["sky"]}`,
			wantTitle:    "",
			wantKeywords: []string{"sky"},
		},
		{
			name:         "keywords are trimmed and empties dropped",
			text:         `{"title":"Sunset","keywords":[" sky ","","orange"]}`,
			wantTitle:    "Sunset",
			wantKeywords: []string{"sky", "orange"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := decodeResult(tt.text)

			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected an error, got nil")
				}
				var schemaErr *SchemaError
				if !errors.As(err, &schemaErr) {
					t.Fatalf("Expected SchemaError, got %T", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result.Title != tt.wantTitle {
				t.Errorf("Expected title %q, got %q", tt.wantTitle, result.Title)
			}
			if !reflect.DeepEqual(result.Keywords, tt.wantKeywords) {
				t.Errorf("Expected keywords %v, got %v", tt.wantKeywords, result.Keywords)
			}
		})
	}
}
