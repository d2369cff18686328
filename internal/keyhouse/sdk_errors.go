package keyhouse

import (
	"errors"
	"fmt"

	"github.com/imroc/req/v3"
)

var (
	ErrNoCommits = errors.New("keyhouse: no commits on tracked branch")
	ErrNoSHA     = errors.New("keyhouse: sha missing in commit response")
)

// APIError represents a non-success response from the keyhouse API.
type APIError struct {
	StatusCode int
	Operation  string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %s returned %d: %s", e.Operation, e.StatusCode, e.Body)
}

// handleAPIError folds the transport error and the API error state of a
// response into a single error value.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("http request error: %s: %w", operation, requestErr)
	}

	// got a response, but the api returned an error
	if resp.IsErrorState() {
		return &APIError{
			StatusCode: resp.StatusCode,
			Operation:  operation,
			Body:       resp.String(),
		}
	}

	return nil
}
