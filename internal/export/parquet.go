package export

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/keyworder/keyworder/internal/store"
	"github.com/parquet-go/parquet-go"
)

// RecordRow is the flat parquet layout for one persisted record.
type RecordRow struct {
	UserID          string   `parquet:"user_id"`
	TimestampMillis int64    `parquet:"timestamp_millis"`
	ImageMimeType   string   `parquet:"image_mime_type"`
	Title           string   `parquet:"title"`
	Keywords        []string `parquet:"keywords,list"`
}

// WriteParquet writes persisted records to a parquet file at path.
func WriteParquet(path string, records []*store.PersistedRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[RecordRow](file)

	rows := make([]RecordRow, 0, len(records))
	for _, record := range records {
		rows = append(rows, RecordRow{
			UserID:          record.UserID,
			TimestampMillis: record.Timestamp.UnixMilli(),
			ImageMimeType:   record.ImageMimeType,
			Title:           record.Title,
			Keywords:        record.Keywords,
		})
	}

	if _, err := writer.Write(rows); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}

	slog.Info("Records exported", "path", path, "rows", len(rows))
	return nil
}

// ReadParquet loads previously exported rows.
func ReadParquet(path string) ([]RecordRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pf, err := parquet.OpenFile(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[RecordRow](pf)
	defer reader.Close()

	var rows []RecordRow
	batch := make([]RecordRow, 64)
	for {
		n, err := reader.Read(batch)
		if n > 0 {
			rows = append(rows, batch[:n]...)
		}
		if err != nil {
			break
		}
	}

	return rows, nil
}
