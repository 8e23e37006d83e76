package client

import (
	"errors"
	"fmt"
)

// ErrNoNavigator is returned by FetchDataWithRedirect when the backend
// answers 302 and no Navigator is configured.
var ErrNoNavigator = errors.New("redirect received but no navigator configured")

// RequestError is returned when the backend answers with a status the call
// does not accept. It is the only error kind the client produces for HTTP
// responses; transport errors are returned as-is.
type RequestError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       []byte
}

// Error implements the error interface.
func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: request failed with status code %d", e.Method, e.URL, e.StatusCode)
}

// StatusCode returns the HTTP status carried by err, if err is a *RequestError.
func StatusCode(err error) (int, bool) {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return reqErr.StatusCode, true
	}
	return 0, false
}
