package authflow

import "errors"

var (
	// ErrAuthorization wraps every failure of the code exchange.
	ErrAuthorization = errors.New("authflow: authorization failed")
	ErrEmptyCode     = errors.New("authflow: empty authorization code")
)
