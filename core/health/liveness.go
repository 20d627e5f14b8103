package health

import (
	"github.com/dmitrymomot/wxauth/core/handler"
	"github.com/dmitrymomot/wxauth/core/response"
)

// Liveness always answers "ALIVE".
func Liveness[C handler.Context](C) handler.Response {
	return response.WithCache(response.String("ALIVE"), 0)
}

func NoContent[C handler.Context](C) handler.Response {
	return response.NoContent()
}
