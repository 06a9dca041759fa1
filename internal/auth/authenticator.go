package auth

import (
	"context"
	"errors"
	"fmt"

	"DecorStore/internal/apperr"
)

// Identity is the caller as seen by the domain services.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Can reports whether the caller may act on something owned by ownerID.
func (i Identity) Can(ownerID string) bool {
	return i.IsAdmin() || (i.UserID != "" && i.UserID == ownerID)
}

// Authenticator turns a bearer token into an Identity and issues tokens on
// login.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Identity, error)
	Issue(u User) (string, error)
}

var errBadToken = fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)

// StubAuthenticator treats the token as a user id. Unknown ids are plain
// users so that development clients work without registering.
type StubAuthenticator struct {
	Users *Store
}

func (a StubAuthenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, errBadToken
	}
	id := Identity{UserID: token, Role: RoleUser}
	if a.Users == nil {
		return id, nil
	}

	u, err := a.Users.Get(ctx, token)
	switch {
	case err == nil:
		id.Role = u.Role
	case errors.Is(err, apperr.ErrNotFound):
	default:
		return Identity{}, err
	}
	return id, nil
}

func (StubAuthenticator) Issue(u User) (string, error) { return u.ID, nil }

// JWTAuthenticator validates HS256 tokens signed by Tokens.
type JWTAuthenticator struct {
	Tokens *TokenMaker
}

func (a JWTAuthenticator) Authenticate(_ context.Context, token string) (Identity, error) {
	c, err := a.Tokens.Parse(token)
	if err != nil {
		return Identity{}, errBadToken
	}
	role := c.Role
	if role != RoleAdmin {
		role = RoleUser
	}
	return Identity{UserID: c.UserID, Role: role}, nil
}

func (a JWTAuthenticator) Issue(u User) (string, error) { return a.Tokens.New(u) }
