package wechat

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrProvider matches every *ProviderError.
	ErrProvider = errors.New("wechat: provider error")

	ErrMissingCredentials = errors.New("wechat: app id and secret are required")
	ErrEmptyCode          = errors.New("wechat: empty authorization code")
)

// ProviderError is a failed call to the WeChat API. Code is the upstream
// errcode and is zero when the API never answered with an error envelope;
// Status is set for non-200 HTTP responses.
type ProviderError struct {
	Op      string
	Code    int
	Status  int
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	switch {
	case e.Code != 0:
		return fmt.Sprintf("wechat %s: %s (errcode %d)", e.Op, e.Message, e.Code)
	case e.Status != 0:
		return fmt.Sprintf("wechat %s: %s (http %d)", e.Op, e.Message, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("wechat %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("wechat %s: %s", e.Op, e.Message)
}

func (e *ProviderError) Is(target error) bool { return target == ErrProvider }

func (e *ProviderError) Unwrap() error { return e.Err }

// StatusCode maps provider failures to 502 for HTTP error rendering.
func (e *ProviderError) StatusCode() int { return http.StatusBadGateway }
