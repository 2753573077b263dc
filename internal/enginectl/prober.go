package enginectl

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrAPINotReachable is returned when the server did not answer a probe
// within the configured readiness window.
var ErrAPINotReachable = errors.New("inference server not reachable")

const probeTimeout = 2 * time.Second

// Prober answers the single question "is the server accepting requests
// right now". It never retries on its own; bounded waiting lives in
// WaitUntilReady and retry policy belongs to the caller.
type Prober struct {
	BaseURL string
	Client  *http.Client
}

// NewProber returns a prober for the given base URL using a dedicated
// short-timeout HTTP client.
func NewProber(baseURL string) *Prober {
	return &Prober{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: probeTimeout},
	}
}

// Probe issues one bodiless request against the server root and reports
// whether it answered with a success status. Any transport error, timeout
// or non-2xx status is simply "not ready".
func (p *Prober) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/", nil)
	if err != nil {
		return false
	}
	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// WaitUntilReady polls Probe until it succeeds or the timeout elapses,
// sleeping pollInterval between attempts. The wait is cancellable through
// ctx; no probe is issued after cancellation. On deadline it fails with
// ErrAPINotReachable.
func (p *Prober) WaitUntilReady(ctx context.Context, timeout, pollInterval time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.Probe(ctx) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w within %s", ErrAPINotReachable, timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
