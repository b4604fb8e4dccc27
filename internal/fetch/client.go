package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"golang.org/x/time/rate"

	"filmstrip/internal/config"
)

const (
	maxAttempts = 5
	userAgent   = "filmstrip"
)

// ErrNotFound marks a permanent "the thing does not exist" failure. It is
// never retried and callers may treat it as an ordinary absence.
var ErrNotFound = errors.New("not found")

// HTTPError is a non-2xx response. Permanent errors short-circuit the retry
// loop; everything else is considered transient.
type HTTPError struct {
	StatusCode int
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Permanent reports whether retrying can't possibly help.
func (e *HTTPError) Permanent() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusNotFound
}

// IsPermanent reports whether err is a permanent fetch failure as opposed to
// a transient one (or retries-exhausted wrapper around one).
func IsPermanent(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.Permanent()
}

// Client issues outbound requests under a per-source requests-per-second
// ceiling. Calls queue on the limiter in arrival order; transient failures
// are retried up to maxAttempts with the limiter itself spacing attempts.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
}

func NewClient(src config.SourceConfig) *Client {
	return &Client{
		http:    &http.Client{Timeout: src.Timeout},
		limiter: rate.NewLimiter(rate.Limit(src.RPS), 1),
	}
}

// Get fetches url and returns the response body. A permanent failure (403,
// 404) is returned on the first attempt; transient failures surface only
// after the retry budget is spent.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte

	err := retry.Do(
		func() error {
			if err := c.limiter.Wait(ctx); err != nil {
				return retry.Unrecoverable(err)
			}

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("User-Agent", userAgent)

			resp, err := c.http.Do(req)
			if err != nil {
				// network-level errors are transient
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 400 {
				httpErr := &HTTPError{StatusCode: resp.StatusCode, URL: url}
				if httpErr.Permanent() {
					return retry.Unrecoverable(httpErr)
				}
				return httpErr
			}

			body, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(maxAttempts),
		retry.LastErrorOnly(true),
		// the rate limiter already spaces attempts out
		retry.Delay(time.Millisecond),
		retry.DelayType(retry.FixedDelay),
	)
	if err != nil {
		return nil, err
	}
	return body, nil
}
