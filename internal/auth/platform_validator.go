package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/civitas-labs/issue-relay/internal/platform"
)

// PlatformTokenValidator resolves tokens by asking the platform's
// user-info endpoint. This matches the platform's own notion of validity
// exactly, at the cost of one upstream round trip per request.
type PlatformTokenValidator struct {
	client *platform.Client
}

func NewPlatformTokenValidator(client *platform.Client) *PlatformTokenValidator {
	return &PlatformTokenValidator{client: client}
}

func (v *PlatformTokenValidator) ExtractUserInfo(ctx context.Context, tokenString string) (UserInfo, error) {
	user, err := v.client.GetUser(ctx, tokenString)
	if err != nil {
		var apiErr *platform.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return UserInfo{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return UserInfo{}, err
	}
	if user.ID == "" {
		return UserInfo{}, fmt.Errorf("%w: no user ID in user-info response", ErrInvalidToken)
	}

	return UserInfo{UserID: user.ID, Email: user.Email}, nil
}
