package identity

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

// MintContinuationToken creates a custom sign-in token for the given uid
// using the Firebase Admin SDK. Hosts embedding the client use this to hand
// the session a non-anonymous identity.
func MintContinuationToken(ctx context.Context, projectID, credentialsFile, uid string) (string, error) {
	if uid == "" {
		return "", fmt.Errorf("uid is required")
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create auth client: %w", err)
	}

	token, err := authClient.CustomToken(ctx, uid)
	if err != nil {
		return "", fmt.Errorf("failed to mint custom token: %w", err)
	}

	return token, nil
}
