// Package httpserver runs an http.Handler until its context is cancelled and
// then drains in-flight requests within a bounded shutdown timeout. It also
// provides liveness and readiness handlers.
package httpserver
