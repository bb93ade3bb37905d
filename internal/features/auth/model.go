package auth

// User is the identity the engine attaches to reports: an opaque stable
// id plus a display label (usually the email).
type User struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// SignInRequest carries the Firebase ID token minted by the device shell.
type SignInRequest struct {
	IDToken string `json:"idToken" binding:"required"`
}

// SignInResponse returns the session token the view glue uses against the
// gateway plus the resolved identity.
type SignInResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
