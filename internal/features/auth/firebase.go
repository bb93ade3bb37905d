package auth

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// TokenVerifier validates Firebase ID tokens minted on the device and
// maps them to engine identities.
type TokenVerifier interface {
	Verify(ctx context.Context, idToken string) (User, error)
}

type firebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier initializes the Firebase Admin SDK and returns a
// verifier backed by its Auth client.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (TokenVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}

	return &firebaseVerifier{client: client}, nil
}

func (v *firebaseVerifier) Verify(ctx context.Context, idToken string) (User, error) {
	token, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return User{}, fmt.Errorf("invalid firebase token: %w", err)
	}

	label := token.UID
	if email, ok := token.Claims["email"].(string); ok && email != "" {
		label = email
	}

	return User{ID: token.UID, Label: label}, nil
}
