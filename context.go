package serialz

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// RequestContext is the read-only request data handed to every item's
// Serialize call and used to resolve schema defaults. It is shared by all
// concurrent formatters for a payload and must not be modified.
type RequestContext struct {
	Headers     http.Header
	Query       url.Values
	Credentials map[string]any
	Method      string
	Path        string
}

// NewRequestContext builds a RequestContext from an incoming request.
// Credentials are taken from the request context (see WithCredentials).
func NewRequestContext(r *http.Request) *RequestContext {
	rc := &RequestContext{
		Method:      r.Method,
		Headers:     r.Header,
		Credentials: CredentialsFromContext(r.Context()),
	}
	if r.URL != nil {
		rc.Path = r.URL.Path
		rc.Query = r.URL.Query()
	}
	return rc
}

// Lookup resolves a context reference such as "$headers.x-tenant",
// "$credentials.id" or "$query.page". The leading "$" is optional.
// Header names are case-insensitive.
func (rc *RequestContext) Lookup(ref string) (any, bool) {
	if rc == nil {
		return nil, false
	}
	ref = strings.TrimPrefix(ref, "$")
	root, rest, _ := strings.Cut(ref, ".")
	if rest == "" {
		return nil, false
	}

	switch root {
	case "headers":
		if rc.Headers == nil {
			return nil, false
		}
		values := rc.Headers.Values(rest)
		if len(values) == 0 {
			return nil, false
		}
		return values[0], true
	case "query":
		if rc.Query == nil || !rc.Query.Has(rest) {
			return nil, false
		}
		return rc.Query.Get(rest), true
	case "credentials":
		var cur any = rc.Credentials
		for _, key := range strings.Split(rest, ".") {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = m[key]; !ok {
				return nil, false
			}
		}
		return cur, true
	}
	return nil, false
}

type credentialsKey struct{}

// WithCredentials returns a context carrying authenticated credentials.
// Authentication middleware calls this before the serialz endpoint runs.
func WithCredentials(ctx context.Context, creds map[string]any) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFromContext returns the credentials stored by WithCredentials, or nil.
func CredentialsFromContext(ctx context.Context) map[string]any {
	creds, _ := ctx.Value(credentialsKey{}).(map[string]any)
	return creds
}
