package port

import "errors"

var ErrInvalidToken = errors.New("invalid token")

type TokenService interface {
	Issue(username string) (string, error)

	// Validate returns the username the token was issued for, or ErrInvalidToken
	Validate(token string) (string, error)
}
