package serialz

import (
	"errors"
	"net/http"
)

// InternalErrorMessage is the generic message sent when a failure carries no
// message of its own, or when failure details are not exposed.
const InternalErrorMessage = "An internal server error occurred"

// ErrorResponse is the body of an internal-error response.
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	StatusCode int    `json:"statusCode"`
}

// Translate maps any formatting failure to an internal-error response. The
// message is the underlying failure's message when it has one.
func Translate(err error) *ErrorResponse {
	msg := ""
	var serr *Error
	if errors.As(err, &serr) {
		msg = serr.Cause()
	} else if err != nil {
		msg = err.Error()
	}
	if msg == "" {
		msg = InternalErrorMessage
	}
	return &ErrorResponse{
		StatusCode: http.StatusInternalServerError,
		Error:      http.StatusText(http.StatusInternalServerError),
		Message:    msg,
	}
}

// Public returns the response as sent to clients that must not see
// implementation details.
func (r *ErrorResponse) Public() *ErrorResponse {
	return &ErrorResponse{
		StatusCode: r.StatusCode,
		Error:      r.Error,
		Message:    InternalErrorMessage,
	}
}
