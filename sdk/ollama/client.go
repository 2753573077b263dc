// Package ollama is a client for a locally-hosted, Ollama-compatible
// inference server that also supervises the server's process lifecycle.
// The server runs as a sidecar binary on a fixed loopback port; the client
// launches it on demand, recycles it when it goes stale or the requested
// model changes, and streams inference responses back to the caller.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/modelpilot/ollamactl/internal/config"
	"github.com/modelpilot/ollamactl/internal/enginectl"
)

// Client talks to the supervised server. Construct one instance and share
// it; every call routes through the same controller and activity state so
// restart decisions see the full picture.
type Client struct {
	baseURL  string
	ctl      *enginectl.Controller
	activity *enginectl.ActivityState

	// stream carries long-lived streaming calls and must not enforce a
	// client-wide timeout; deadlines come from the caller's context.
	stream *http.Client
	// rest carries short management calls with bounded retries.
	rest *retryablehttp.Client

	idleThreshold time.Duration
	readyTimeout  time.Duration
	pollInterval  time.Duration
}

// New builds a client from configuration. The supervised server is not
// contacted or launched here; that happens lazily on the first call that
// needs it.
func New(cfg *config.Config) *Client {
	if cfg == nil {
		cfg = config.Default()
	}
	ctl := enginectl.NewController(cfg.Host, cfg.Port, cfg.ServerBin, cfg.LogDir)

	rest := retryablehttp.NewClient()
	rest.RetryMax = 2
	rest.Logger = nil

	return &Client{
		baseURL:       cfg.BaseURL(),
		ctl:           ctl,
		activity:      &enginectl.ActivityState{},
		stream:        &http.Client{Timeout: 0},
		rest:          rest,
		idleThreshold: cfg.IdleThreshold(),
		readyTimeout:  cfg.ReadyTimeout(),
		pollInterval:  cfg.ReadyPollInterval(),
	}
}

// Controller exposes the process controller for callers that manage the
// server lifecycle directly (status commands, explicit stop).
func (c *Client) Controller() *enginectl.Controller { return c.ctl }

// Status reports a snapshot of the supervised server.
func (c *Client) Status(ctx context.Context) enginectl.Status {
	return c.ctl.Status(ctx)
}

// Heartbeat reports whether the server currently answers probes. It never
// launches anything.
func (c *Client) Heartbeat(ctx context.Context) bool {
	return c.ctl.Prober.Probe(ctx)
}

// List returns the locally available models from /api/tags.
func (c *Client) List(ctx context.Context) (*ListResponse, error) {
	var out ListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/tags", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Show returns model metadata from /api/show.
func (c *Client) Show(ctx context.Context, req *ShowRequest) (*ShowResponse, error) {
	var out ShowResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/show", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Copy duplicates a local model under a new name via /api/copy.
func (c *Client) Copy(ctx context.Context, req *CopyRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/api/copy", req, nil)
}

// Delete removes a local model via /api/delete.
func (c *Client) Delete(ctx context.Context, req *DeleteRequest) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/delete", req, nil)
}

// Version returns the server version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	var out versionResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/version", nil, &out); err != nil {
		return "", err
	}
	return out.Version, nil
}

// doJSON performs one management request with bounded retries. Management
// calls also go through ensure-ready so a cold start works from any entry
// point, but they never trigger the restart policy.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	if err := c.ctl.EnsureReady(ctx, false, c.readyTimeout, c.pollInterval); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.rest.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusErrorFromBody(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusErrorFromBody builds a StatusError, preferring the server's own
// {"error": "..."} message over the raw body.
func statusErrorFromBody(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := string(bytes.TrimSpace(b))
	var apiErr struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &apiErr); err == nil && apiErr.Error != "" {
		msg = apiErr.Error
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}
