package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfScope indicates a URL outside the crawl's allowed domains.
	ErrOutOfScope = errors.New("url out of crawl scope")

	// ErrRobotsDisallowed indicates robots.txt forbids fetching the URL.
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

	// ErrUnsupportedContent indicates a non-text response body.
	ErrUnsupportedContent = errors.New("unsupported content type")
)

// HTTPStatusError reports a non-success HTTP response.
type HTTPStatusError struct {
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected http status %d", e.Code)
}

// Retryable reports whether the status indicates a transient condition.
func (e *HTTPStatusError) Retryable() bool {
	return e.Code == 429 || e.Code >= 500
}
