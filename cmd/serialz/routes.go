package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/zoobzio/serialz"
)

// user renders itself for the viewer; the email is only shown to its owner.
type user struct {
	Name  string
	Email string
	ID    int
}

func (u user) Serialize(_ context.Context, rc *serialz.RequestContext) (any, error) {
	out := map[string]any{"id": u.ID, "name": u.Name}
	if viewer, ok := rc.Credentials["id"].(int); ok && viewer == u.ID {
		out["email"] = u.Email
	}
	return out, nil
}

// profile loads its representation asynchronously, as if from another service.
type profile struct {
	ID int
}

func (p profile) Serialize(ctx context.Context, _ *serialz.RequestContext) (any, error) {
	return serialz.Async(func() (any, error) {
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return map[string]any{"id": p.ID, "bio": "loaded lazily"}, nil
	}), nil
}

// broken fails to serialize.
type broken struct {
	reason string
}

func (b broken) Serialize(context.Context, *serialz.RequestContext) (any, error) {
	return serialz.Reject(errors.New(b.reason)), nil
}

// page is a paginated query result.
type page struct {
	Items []any
	Page  int
	Total int
}

func (p page) Models() []any { return p.Items }

var users = []user{
	{ID: 1, Name: "Ada", Email: "ada@example.com"},
	{ID: 2, Name: "Grace", Email: "grace@example.com"},
	{ID: 3, Name: "Edsger", Email: "edsger@example.com"},
}

func routes(o *serialz.Orchestrator) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /data", o.Endpoint(func(*http.Request) (any, error) {
		return "just data", nil
	}))

	mux.Handle("GET /users", o.Endpoint(func(*http.Request) (any, error) {
		items := make([]any, len(users))
		for i, u := range users {
			items[i] = u
		}
		return page{Items: items, Page: 1, Total: len(items)}, nil
	}))

	mux.Handle("GET /users/one", o.Endpoint(func(*http.Request) (any, error) {
		return profile{ID: 1}, nil
	}))

	mux.Handle("GET /broken", o.Endpoint(func(*http.Request) (any, error) {
		return []any{users[0], broken{reason: "profile service unavailable"}}, nil
	}))

	mux.Handle("GET /empty", o.Endpoint(func(*http.Request) (any, error) {
		return nil, nil
	}))

	mux.Handle("GET /accounts", o.Endpoint(func(*http.Request) (any, error) {
		if o.Formatter().Registry() == nil {
			return &serialz.Response{StatusCode: http.StatusNotFound, Source: "schema variant not configured"}, nil
		}
		return []any{
			serialz.Tagged{Schema: "account", Data: map[string]any{"id": 1, "plan": "pro", "secret": "hunter2"}},
			serialz.Tagged{Schema: "account", Data: map[string]any{"id": "2"}},
		}, nil
	}))

	mux.Handle("GET /stats", o.Endpoint(func(*http.Request) (any, error) {
		m := o.Metrics()
		return map[string]float64{
			string(serialz.ProcessedTotal):    m.Counter(serialz.ProcessedTotal).Value(),
			string(serialz.SuccessesTotal):    m.Counter(serialz.SuccessesTotal).Value(),
			string(serialz.FailuresTotal):     m.Counter(serialz.FailuresTotal).Value(),
			string(serialz.EmptyTotal):        m.Counter(serialz.EmptyTotal).Value(),
			string(serialz.ItemsTotal):        m.Counter(serialz.ItemsTotal).Value(),
			string(serialz.ItemFailuresTotal): m.Counter(serialz.ItemFailuresTotal).Value(),
			string(serialz.DurationMs):        m.Gauge(serialz.DurationMs).Value(),
		}, nil
	}))

	return mux
}

// authenticate treats X-User-ID as the authenticated user's id.
func authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-User-ID")
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		id, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid X-User-ID %q", raw), http.StatusUnauthorized)
			return
		}
		ctx := serialz.WithCredentials(r.Context(), map[string]any{"id": id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
