package handler

import (
	"context"
	"net/http"
)

// Context is the request context handed to a HandlerFunc. Deadlines,
// cancellation and values come from the request, so tenant and request id
// lookups work on it directly.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
}

type httpContext struct {
	context.Context
	w http.ResponseWriter
	r *http.Request
}

// NewContext snapshots r.Context(); middleware must run before it.
func NewContext(w http.ResponseWriter, r *http.Request) Context {
	return &httpContext{Context: r.Context(), w: w, r: r}
}

func (c *httpContext) Request() *http.Request              { return c.r }
func (c *httpContext) ResponseWriter() http.ResponseWriter { return c.w }
