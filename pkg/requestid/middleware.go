package requestid

import (
	"net/http"

	"github.com/google/uuid"
)

// Header carries the request id in both directions.
const Header = "X-Request-ID"

const maxLen = 128

// Option configures New.
type Option func(*config)

type config struct {
	headers  []string
	generate func() string
}

// WithTrustedHeader accepts an inbound id from name in addition to Header,
// e.g. a load balancer's trace header. Header always wins.
func WithTrustedHeader(name string) Option {
	return func(c *config) {
		if name != "" {
			c.headers = append(c.headers, http.CanonicalHeaderKey(name))
		}
	}
}

// WithGenerator replaces the id source for requests without a usable id.
func WithGenerator(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.generate = fn
		}
	}
}

// New returns middleware that reuses a valid inbound id or mints a
// time-ordered UUID, stores it in the request context and echoes it back.
func New(opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{headers: []string{Header}, generate: newID}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := ""
			for _, h := range cfg.headers {
				if v := r.Header.Get(h); Valid(v) {
					id = v
					break
				}
			}
			if id == "" {
				id = cfg.generate()
			}
			w.Header().Set(Header, id)
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
		})
	}
}

// Middleware is New with defaults.
func Middleware(next http.Handler) http.Handler {
	return New()(next)
}

// Valid reports whether id is safe to log and echo: 1 to 128 characters of
// ASCII letters, digits, '-' or '_'.
func Valid(id string) bool {
	if id == "" || len(id) > maxLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		switch c := id[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

func newID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
