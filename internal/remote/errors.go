package remote

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when an envelope reports success but carries no data.
var ErrNoData = errors.New("response has no data")

// APIError is a logical failure reported through the envelope (code != 0).
type APIError struct {
	Endpoint string
	Code     int
	Message  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: api code %d: %s", e.Endpoint, e.Code, e.Message)
}

// HTTPError is a non-2xx transport response.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: http status %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// IsAPIError reports whether err carries an envelope failure and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
