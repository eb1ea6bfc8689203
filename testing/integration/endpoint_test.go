package integration

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/zoobzio/serialz"
	sztest "github.com/zoobzio/serialz/testing"
)

// User is an ORM-style model that renders itself for the current viewer.
type User struct {
	ID int
}

func (u User) Serialize(_ context.Context, rc *serialz.RequestContext) (any, error) {
	return map[string]any{"id": u.ID, "user": rc.Credentials["id"]}, nil
}

// DeferredUser resolves its representation asynchronously.
type DeferredUser struct {
	ID int
}

func (u DeferredUser) Serialize(_ context.Context, _ *serialz.RequestContext) (any, error) {
	return serialz.Async(func() (any, error) {
		return map[string]any{"id": u.ID, "promisified": true}, nil
	}), nil
}

// BrokenUser rejects with no message.
type BrokenUser struct{}

func (BrokenUser) Serialize(context.Context, *serialz.RequestContext) (any, error) {
	return serialz.Reject(errors.New("")), nil
}

// authenticate stands in for auth middleware that runs before the endpoint.
func authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := serialz.WithCredentials(r.Context(), map[string]any{"id": 2})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func newServer(t *testing.T, o *serialz.Orchestrator) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	route := func(path string, h serialz.Handler) {
		mux.Handle(path, authenticate(o.Endpoint(h)))
	}

	route("/data", func(*http.Request) (any, error) {
		return "just data", nil
	})
	route("/collection", func(*http.Request) (any, error) {
		return sztest.NewMockCollection(User{ID: 1}, User{ID: 2}), nil
	})
	route("/error", func(*http.Request) (any, error) {
		return []any{BrokenUser{}, BrokenUser{}}, nil
	})
	route("/promise", func(*http.Request) (any, error) {
		return DeferredUser{ID: 1}, nil
	})
	route("/null", func(*http.Request) (any, error) {
		return nil, nil
	})
	route("/created", func(*http.Request) (any, error) {
		return &serialz.Response{StatusCode: http.StatusCreated, Source: User{ID: 9}}, nil
	})
	route("/handler-error", func(*http.Request) (any, error) {
		return nil, errors.New("handler exploded")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	res, err := http.Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return res, body
}

func decode(t *testing.T, body []byte) any {
	t.Helper()
	var out any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("invalid JSON %q: %v", body, err)
	}
	return out
}

func TestEndpoint(t *testing.T) {
	o := serialz.NewOrchestrator("api", nil)
	defer o.Close()
	srv := newServer(t, o)

	t.Run("Plain Data", func(t *testing.T) {
		res, body := get(t, srv, "/data")
		if res.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", res.StatusCode)
		}
		if string(body) != "just data" {
			t.Errorf("expected 'just data', got %q", body)
		}
	})

	t.Run("Collection", func(t *testing.T) {
		res, body := get(t, srv, "/collection")
		if res.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", res.StatusCode)
		}
		want := []any{
			map[string]any{"id": float64(1), "user": float64(2)},
			map[string]any{"id": float64(2), "user": float64(2)},
		}
		sztest.AssertPayload(t, decode(t, body), want)
	})

	t.Run("Rejected Item", func(t *testing.T) {
		res, body := get(t, srv, "/error")
		if res.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", res.StatusCode)
		}
		want := map[string]any{
			"statusCode": float64(500),
			"error":      "Internal Server Error",
			"message":    serialz.InternalErrorMessage,
		}
		sztest.AssertPayload(t, decode(t, body), want)
	})

	t.Run("Async Single", func(t *testing.T) {
		res, body := get(t, srv, "/promise")
		if res.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", res.StatusCode)
		}
		want := map[string]any{"id": float64(1), "promisified": true}
		sztest.AssertPayload(t, decode(t, body), want)
	})

	t.Run("Null", func(t *testing.T) {
		res, body := get(t, srv, "/null")
		if res.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", res.StatusCode)
		}
		if len(body) != 0 {
			t.Errorf("expected empty body, got %q", body)
		}
	})

	t.Run("Handler Status Is Kept", func(t *testing.T) {
		res, body := get(t, srv, "/created")
		if res.StatusCode != http.StatusCreated {
			t.Errorf("expected 201, got %d", res.StatusCode)
		}
		if ct := res.Header.Get("Content-Type"); ct != "application/json; charset=utf-8" {
			t.Errorf("unexpected content type %q", ct)
		}
		sztest.AssertPayload(t, decode(t, body), map[string]any{"id": float64(9), "user": float64(2)})
	})

	t.Run("Handler Error Is Internal", func(t *testing.T) {
		res, body := get(t, srv, "/handler-error")
		if res.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", res.StatusCode)
		}
		out := decode(t, body).(map[string]any)
		if out["message"] != serialz.InternalErrorMessage {
			t.Errorf("expected detail to be hidden, got %v", out["message"])
		}
	})
}

func TestEndpointExposeErrors(t *testing.T) {
	o := serialz.NewOrchestrator("api", nil).WithExposeErrors(true)
	defer o.Close()

	failing := sztest.NewMockItem(t, "failing").WithReturn(nil, errors.New("database unavailable"))
	srv := httptest.NewServer(o.Endpoint(func(*http.Request) (any, error) {
		return []any{User{ID: 1}, failing}, nil
	}))
	defer srv.Close()

	res, body := get(t, srv, "/")
	if res.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", res.StatusCode)
	}
	out := decode(t, body).(map[string]any)
	if out["message"] != "database unavailable" {
		t.Errorf("expected exposed cause, got %v", out["message"])
	}
	sztest.AssertSerialized(t, failing, 1)
}

func TestEndpointSchemaVariant(t *testing.T) {
	dir := t.TempDir()
	schema := "fields:\n  id: {type: integer, required: true}\n  tenant: {type: string, default: $headers.x-tenant}\n"
	if err := os.WriteFile(filepath.Join(dir, "account.yaml"), []byte(schema), 0o600); err != nil {
		t.Fatal(err)
	}

	o, err := serialz.FromConfig(serialz.Config{Name: "accounts", Variant: serialz.VariantSchema, Schemas: dir, ExposeErrors: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	var payload any
	srv := httptest.NewServer(o.Endpoint(func(*http.Request) (any, error) {
		return payload, nil
	}))
	defer srv.Close()

	fetch := func() (*http.Response, any) {
		req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("X-Tenant", "acme")
		res, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer res.Body.Close()
		body, err := io.ReadAll(res.Body)
		if err != nil {
			t.Fatal(err)
		}
		return res, decode(t, body)
	}

	t.Run("Projects Tagged Items", func(t *testing.T) {
		payload = []any{
			serialz.Tagged{Schema: "account", Data: map[string]any{"id": 1, "secret": "x"}},
			serialz.Tagged{Schema: "account", Data: map[string]any{"id": 2, "tenant": "globex"}},
		}
		res, out := fetch()
		if res.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", res.StatusCode)
		}
		want := []any{
			map[string]any{"id": float64(1), "tenant": "acme"},
			map[string]any{"id": float64(2), "tenant": "globex"},
		}
		if !reflect.DeepEqual(out, want) {
			t.Errorf("expected %v, got %v", want, out)
		}
	})

	t.Run("Unknown Schema Fails", func(t *testing.T) {
		payload = serialz.Tagged{Schema: "ledger", Data: map[string]any{"id": 1}}
		res, out := fetch()
		if res.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", res.StatusCode)
		}
		if msg := out.(map[string]any)["message"]; msg != `no schema registered as "ledger"` {
			t.Errorf("unexpected message %v", msg)
		}
	})

	t.Run("Validation Fails", func(t *testing.T) {
		payload = serialz.Tagged{Schema: "account", Data: map[string]any{}}
		res, _ := fetch()
		if res.StatusCode != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", res.StatusCode)
		}
	})
}
