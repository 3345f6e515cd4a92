package store

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// FirestoreWriter persists records as Firestore documents.
type FirestoreWriter struct {
	client *firestore.Client
}

func NewFirestoreWriter(ctx context.Context, projectID, credentialsFile string) (*FirestoreWriter, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}

	return &FirestoreWriter{client: client}, nil
}

func (w *FirestoreWriter) Write(ctx context.Context, path string, record *PersistedRecord) error {
	if _, err := w.client.Doc(path).Set(ctx, record); err != nil {
		return fmt.Errorf("firestore write: %w", err)
	}
	return nil
}

// List reads back every record under one owner, ordered by timestamp.
func (w *FirestoreWriter) List(ctx context.Context, namespace, userID string) ([]*PersistedRecord, error) {
	collection := fmt.Sprintf("artifacts/%s/users/%s/generated_data", namespace, userID)
	iter := w.client.Collection(collection).OrderBy("timestamp", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var records []*PersistedRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore read: %w", err)
		}

		var record PersistedRecord
		if err := doc.DataTo(&record); err != nil {
			return nil, fmt.Errorf("failed to decode record %s: %w", doc.Ref.ID, err)
		}
		records = append(records, &record)
	}

	return records, nil
}

func (w *FirestoreWriter) Close() error {
	return w.client.Close()
}
