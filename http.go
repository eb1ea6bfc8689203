package serialz

import (
	"net/http"
	"strconv"
)

// Handler is a route handler that returns its payload instead of writing it.
// Returning a *Response sets the status and headers; any other value becomes
// the source of a 200 response.
type Handler func(r *http.Request) (any, error)

// Endpoint adapts h into an http.Handler that runs the pre-response hook
// before writing. Structured bodies are written as JSON unless the request's
// Accept header prefers MessagePack.
func (o *Orchestrator) Endpoint(h Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.RLock()
		expose := o.exposeErrors
		o.mu.RUnlock()

		rc := NewRequestContext(r)
		enc := Negotiate(r.Header.Get("Accept"))
		w.Header().Add("Vary", "Accept")

		value, err := h(r)
		if err != nil {
			writeError(w, Translate(err), expose, enc)
			return
		}

		res, ok := value.(*Response)
		if !ok || res == nil {
			res = &Response{StatusCode: http.StatusOK, Source: value}
		}

		if err := o.OnPreResponse(r.Context(), rc, res); err != nil {
			if er, ok := res.Source.(*ErrorResponse); ok {
				writeError(w, er, expose, enc)
				return
			}
		}
		writeResponse(w, res, expose, enc)
	})
}

func writeResponse(w http.ResponseWriter, res *Response, expose bool, enc Encoding) {
	for k, values := range res.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	status := res.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	var body []byte
	switch src := res.Source.(type) {
	case nil:
	case string:
		setContentType(w, "text/plain; charset=utf-8")
		body = []byte(src)
	case []byte:
		setContentType(w, "application/octet-stream")
		body = src
	default:
		if isAbsent(src) {
			break
		}
		encoded, err := enc.Encode(src)
		if err != nil {
			writeError(w, Translate(err), expose, enc)
			return
		}
		setContentType(w, enc.ContentType())
		body = encoded
	}

	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body) //nolint:errcheck
}

func writeError(w http.ResponseWriter, er *ErrorResponse, expose bool, enc Encoding) {
	if !expose {
		er = er.Public()
	}
	body, _ := enc.Encode(er) //nolint:errcheck // fixed shape
	w.Header().Set("Content-Type", enc.ContentType())
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(er.StatusCode)
	_, _ = w.Write(body) //nolint:errcheck
}

func setContentType(w http.ResponseWriter, ct string) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", ct)
	}
}
