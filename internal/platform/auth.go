package platform

import (
	"context"
	"net/http"
)

// User is the platform's view of an authenticated account.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Session holds the tokens issued on sign-in.
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// SignUpResult is the passthrough body returned to /api/auth/signup callers.
type SignUpResult struct {
	User    *User    `json:"user"`
	Session *Session `json:"session"`
}

// SignUp registers a new account with the platform's identity service.
func (c *Client) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	body := map[string]string{"email": email, "password": password}

	var out SignUpResult
	if err := c.do(ctx, http.MethodPost, "/auth/v1/signup", "", body, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignInWithPassword exchanges credentials for a session.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}

	var out Session
	err := c.do(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", "", body, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetUser resolves an access token to the account it belongs to. Invalid
// or expired tokens come back as an APIError with a 4xx status.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", accessToken, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
