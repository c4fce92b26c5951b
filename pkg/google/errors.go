package google

import (
	"errors"
	"fmt"

	"google.golang.org/api/googleapi"
)

// APIError is a Google API failure carrying the HTTP status code.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google: api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// HTTPStatus returns the HTTP status code of the failed call.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// wrapAPIError converts googleapi errors into APIError. Transport errors
// pass through unchanged so callers can classify them.
func wrapAPIError(err error) error {
	if err == nil {
		return nil
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = gerr.Body
		}
		return &APIError{StatusCode: gerr.Code, Message: msg, Err: err}
	}
	return err
}
