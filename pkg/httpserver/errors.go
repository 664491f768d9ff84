package httpserver

import "errors"

var (
	ErrStart       = errors.New("http server failed to start")
	ErrShutdown    = errors.New("http server did not drain in time")
	ErrAlreadyRuns = errors.New("http server is already running")
)
