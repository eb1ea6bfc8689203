// Package serialz normalizes outgoing response payloads before they are written.
//
// # Overview
//
// A route handler returns a payload: a single domain object, a slice of them,
// a collection wrapper (for example a paginated query result), or nothing.
// serialz classifies that payload once, formats every item concurrently, and
// replaces the payload with the plain, JSON-safe results in their original
// order. If any item fails, the whole response becomes an internal-error
// response and no partial data is sent.
//
// # Installation
//
//	go get github.com/zoobzio/serialz
//
// # Core Concepts
//
// Payload shapes are classified by Classify:
//
//	ShapeCollection - the value implements Collection (Models() []any)
//	ShapeArray      - any slice or array except []byte
//	ShapeSingle     - any other non-nil value
//	ShapeEmpty      - nil, passed through unchanged
//
// Items are classified once by the Formatter into one of three kinds:
//
//	KindSerializable - implements Serializer
//	KindSchemaTagged - implements SchemaTagged and a Registry is configured
//	KindPlainData    - everything else (Plainer, proto.Message or identity)
//
// A Serializer may return its result directly or as an Awaitable; both are
// normalized into a single result:
//
//	func (u User) Serialize(_ context.Context, rc *serialz.RequestContext) (any, error) {
//	    return map[string]any{"id": u.ID, "viewer": rc.Credentials["id"]}, nil
//	}
//
//	func (u User) Serialize(ctx context.Context, _ *serialz.RequestContext) (any, error) {
//	    return serialz.Async(func() (any, error) {
//	        return loadProfile(ctx, u.ID)
//	    }), nil
//	}
//
// # Hooking Into net/http
//
//	orchestrator := serialz.NewOrchestrator("api", serialz.NewFormatter())
//	defer orchestrator.Close()
//
//	mux := http.NewServeMux()
//	mux.Handle("GET /users", orchestrator.Endpoint(func(r *http.Request) (any, error) {
//	    return store.ListUsers(r.Context())
//	}))
//
// Other hosts call OnPreResponse directly with their own Response value.
//
// # Schemas
//
// In the schema-validated variant, items name a schema through SchemaTagged.
// Schemas are YAML files loaded once at startup by LoadRegistry; each file is
// registered under its base name:
//
//	registry, err := serialz.LoadRegistry("./schemas")
//	formatter := serialz.NewFormatter().WithRegistry(registry)
//
// # Observability
//
// Each Orchestrator owns a metricz registry, a tracez tracer and hookz hooks:
//
//	o.OnFailed(func(ctx context.Context, e serialz.Event) error {
//	    log.Printf("%s %s: %v", e.Method, e.Path, e.Error)
//	    return nil
//	})
//
//	failures := o.Metrics().Counter(serialz.FailuresTotal).Value()
//
// Handlers run asynchronously and never affect the response.
//
// # Encodings
//
// Endpoint writes strings as text/plain and []byte as-is. Other bodies are
// JSON, or MessagePack when the request's Accept header lists
// application/msgpack before any JSON range. Clients can read either with
// Decode.
//
// # Configuration
//
// A YAML document configures an Orchestrator through LoadConfig and
// FromConfig. Every configuration error, including invalid schema files, is
// reported before the first request is served.
//
// # Error Handling
//
// Every failure is an *Error carrying its ErrorKind, the path of the failing
// item and the underlying cause. Translate turns it into an ErrorResponse with
// a 500 status.
//
//	_, err := orchestrator.Process(ctx, payload, rc)
//	var serr *serialz.Error
//	if errors.As(err, &serr) {
//	    log.Printf("item %d failed: %v", serr.Index, serr.Err)
//	}
package serialz
