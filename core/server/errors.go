package server

import "errors"

var (
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrMissingAddress       = errors.New("server address is required")
	ErrListen               = errors.New("server: listen failed")
	ErrShutdown             = errors.New("server: shutdown failed")
)
