// Package metadata pulls game details from external catalogs: Steam for
// store details and reviews, IsThereAnyDeal for prices, and IGDB with a
// HowLongToBeat fallback for completion times. Every fetch degrades to
// nil on failure; callers treat missing metadata as normal.
package metadata

import (
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultTimeout    = 2 * time.Second
	defaultRetries    = 1
	defaultBackoffMin = 150 * time.Millisecond
	defaultBackoffMax = time.Second
)

// NewHTTPClient builds the retrying HTTP client shared by the fetchers.
// Transient statuses and connection errors are retried with exponential
// backoff.
func NewHTTPClient(timeout time.Duration, retries int) *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = retries
	rc.RetryWaitMin = defaultBackoffMin
	rc.RetryWaitMax = defaultBackoffMax
	rc.HTTPClient.Timeout = timeout
	rc.Logger = nil
	return rc.StandardClient()
}
