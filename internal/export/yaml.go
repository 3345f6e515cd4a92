package export

import (
	"fmt"

	"github.com/keyworder/keyworder/internal/store"
	"gopkg.in/yaml.v3"
)

// RecordDoc is the YAML layout printed to the terminal after a generate run.
type RecordDoc struct {
	Title     string   `yaml:"title"`
	Keywords  []string `yaml:"keywords"`
	UserID    string   `yaml:"userid"`
	Timestamp string   `yaml:"timestamp"`
	MimeType  string   `yaml:"mimetype"`
}

// FormatYAML renders one persisted record as YAML.
func FormatYAML(record *store.PersistedRecord) (string, error) {
	doc := RecordDoc{
		Title:     record.Title,
		Keywords:  record.Keywords,
		UserID:    record.UserID,
		Timestamp: record.Timestamp.Format("2006-01-02_15-04-05"),
		MimeType:  record.ImageMimeType,
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal YAML: %w", err)
	}

	return string(data), nil
}
