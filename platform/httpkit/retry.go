package httpkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryTransport retries transient upstream failures (429 and 5xx) with
// exponential backoff. Other status codes and permanent transport errors
// pass through unchanged. Requests with unbuffered streaming bodies are not
// retried.
type RetryTransport struct {
	Base        http.RoundTripper
	MaxAttempts uint64
}

// NewRetryTransport wraps base with the default retry policy (3 attempts).
func NewRetryTransport(base http.RoundTripper) *RetryTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RetryTransport{Base: base, MaxAttempts: 3}
}

// RoundTrip implements http.RoundTripper.
func (t *RetryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, err
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.Reset()

	var resp *http.Response
	operation := func() error {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		var err error
		resp, err = t.Base.RoundTrip(req) //nolint:bodyclose // retried bodies are drained below
		if err != nil {
			return backoff.Permanent(err)
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			// Drain so the connection can be reused for the retry.
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return fmt.Errorf("transient upstream status %d", resp.StatusCode)
		}

		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, t.MaxAttempts-1), req.Context()))
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) {
			// All attempts exhausted on a transient status: hand the last
			// response back to the caller with a fresh empty body.
			resp.Body = io.NopCloser(bytes.NewReader(nil))
			return resp, nil
		}
		return nil, err
	}

	return resp, nil
}
