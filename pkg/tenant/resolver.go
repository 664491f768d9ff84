package tenant

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// DefaultHeader carries the tenant identifier when no other header is set.
const DefaultHeader = "X-Tenant-ID"

// Resolver extracts a tenant identifier from a request. An empty identifier
// with a nil error means the request names no tenant.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

type ResolverFunc func(r *http.Request) (string, error)

func (f ResolverFunc) Resolve(r *http.Request) (string, error) {
	return f(r)
}

// NewHeaderResolver reads the identifier from header, trimmed of spaces.
func NewHeaderResolver(header string) Resolver {
	if header == "" {
		header = DefaultHeader
	}
	return ResolverFunc(func(r *http.Request) (string, error) {
		return strings.TrimSpace(r.Header.Get(header)), nil
	})
}

// NewSubdomainResolver reads the identifier from the leftmost host label
// below suffix, so "greenfield.schoolpay.app" yields "greenfield" for the
// suffix ".schoolpay.app". A leading "www." label is skipped. With an empty
// suffix any host of three or more labels qualifies.
func NewSubdomainResolver(suffix string) Resolver {
	suffix = strings.ToLower(suffix)
	return ResolverFunc(func(r *http.Request) (string, error) {
		host := strings.ToLower(r.Host)
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}

		var labels []string
		if suffix != "" {
			rest, ok := strings.CutSuffix(host, suffix)
			if !ok || rest == "" {
				return "", nil
			}
			labels = strings.Split(rest, ".")
		} else {
			labels = strings.Split(host, ".")
			labels = labels[:max(len(labels)-2, 0)]
		}

		if len(labels) > 0 && labels[0] == "www" {
			labels = labels[1:]
		}
		if len(labels) == 0 {
			return "", nil
		}
		return labels[0], nil
	})
}

// NewCompositeResolver returns the first non-empty identifier. Resolver
// errors are collected and reported only when nothing resolved.
func NewCompositeResolver(resolvers ...Resolver) Resolver {
	return ResolverFunc(func(r *http.Request) (string, error) {
		var errs []error
		for _, res := range resolvers {
			id, err := res.Resolve(r)
			switch {
			case err != nil:
				errs = append(errs, err)
			case id != "":
				return id, nil
			}
		}
		if err := errors.Join(errs...); err != nil {
			return "", fmt.Errorf("resolve tenant: %w", err)
		}
		return "", nil
	})
}
