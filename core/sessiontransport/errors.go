package sessiontransport

import "errors"

var (
	// ErrNoToken is returned when no session token is present in the request.
	ErrNoToken = errors.New("sessiontransport: no token")

	// ErrInvalidToken is returned when the token cookie fails verification.
	ErrInvalidToken = errors.New("sessiontransport: invalid token")
)
