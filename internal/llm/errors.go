package llm

import (
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// RetryableError indicates a transient failure that can be retried.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

// Classify converts transient go-openai failures (429 and 5xx) into
// *RetryableError. Any other error is returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && transient(apiErr.HTTPStatusCode) {
		return &RetryableError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && transient(reqErr.HTTPStatusCode) {
		return &RetryableError{StatusCode: reqErr.HTTPStatusCode, Message: reqErr.Error()}
	}
	return err
}

func transient(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
