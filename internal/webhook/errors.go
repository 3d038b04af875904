package webhook

import (
	"fmt"
	"net/http"
)

// NetworkAccessError reports a delivery the webhook did not accept.
// Transport faults (DNS, refused connection, timeout) are reported with a
// synthetic 500; otherwise StatusCode is what the endpoint returned.
type NetworkAccessError struct {
	StatusCode int
	Message    string
}

func (e *NetworkAccessError) Error() string {
	return fmt.Sprintf("webhook: network access error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether another attempt could succeed.
func (e *NetworkAccessError) Retryable() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}
