package serialz

import (
	"context"
	"net/http"
)

// Response is the outgoing response as seen by the pre-response hook. Source
// is the payload produced by the route handler.
type Response struct {
	Header     http.Header
	Source     any
	StatusCode int
}

// OnPreResponse is the hook a host framework calls after the route handler
// and before the response is written. On success res.Source is replaced once
// with the serialized payload. On failure res becomes an internal-error
// response carrying an *ErrorResponse and the error is returned so the host
// stops normal processing.
func (o *Orchestrator) OnPreResponse(ctx context.Context, rc *RequestContext, res *Response) error {
	out, err := o.Process(ctx, res.Source, rc)
	if err != nil {
		res.StatusCode = http.StatusInternalServerError
		res.Source = Translate(err)
		return err
	}
	res.Source = out
	if res.StatusCode == 0 {
		res.StatusCode = http.StatusOK
	}
	return nil
}
