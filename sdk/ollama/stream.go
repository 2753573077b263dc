package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/modelpilot/ollamactl/internal/jsonframe"
)

// streamReadSize is the read granularity for streaming response bodies.
// One read may carry several coalesced frames or a fragment of one; the
// frame buffer sorts that out.
const streamReadSize = 32 * 1024

// Chat streams a chat completion. fn is invoked once per decoded frame,
// in extraction order, on the calling goroutine; returning an error from
// fn cancels the rest of the call. Chat returns nil after the final frame
// when the server closed the stream cleanly.
func (c *Client) Chat(ctx context.Context, req *ChatRequest, fn func(*ChatResponse) error) error {
	body, err := marshalStreaming(req, req.Model)
	if err != nil {
		return err
	}
	return c.streamCall(ctx, "/api/chat", body, req.Model, true, func(frame []byte) error {
		var resp ChatResponse
		if err := json.Unmarshal(frame, &resp); err != nil {
			return &DecodeError{Raw: frame, Err: err}
		}
		return fn(&resp)
	})
}

// Generate streams a completion for a raw prompt. Delivery contract is the
// same as Chat's.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest, fn func(*GenerateResponse) error) error {
	body, err := marshalStreaming(req, req.Model)
	if err != nil {
		return err
	}
	return c.streamCall(ctx, "/api/generate", body, req.Model, true, func(frame []byte) error {
		var resp GenerateResponse
		if err := json.Unmarshal(frame, &resp); err != nil {
			return &DecodeError{Raw: frame, Err: err}
		}
		return fn(&resp)
	})
}

// Pull streams model download progress. Pulls are management traffic: the
// server must be up, but they neither consult the restart policy nor count
// as inference activity.
func (c *Client) Pull(ctx context.Context, req *PullRequest, fn func(*PullProgress) error) error {
	body, err := marshalStreaming(req, "")
	if err != nil {
		return err
	}
	return c.streamCall(ctx, "/api/pull", body, "", false, func(frame []byte) error {
		var progress PullProgress
		if err := json.Unmarshal(frame, &progress); err != nil {
			return &DecodeError{Raw: frame, Err: err}
		}
		return fn(&progress)
	})
}

// marshalStreaming encodes a request payload with the stream flag forced
// on, so the transport contract is the same no matter what the caller left
// in the struct.
func marshalStreaming(req any, model string) ([]byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	body, err = sjson.SetBytes(body, "stream", true)
	if err != nil {
		return nil, fmt.Errorf("set stream flag: %w", err)
	}
	if model != "" {
		if body, err = sjson.SetBytes(body, "model", model); err != nil {
			return nil, fmt.Errorf("set model: %w", err)
		}
	}
	return body, nil
}

// streamCall runs one streaming request end to end: restart decision,
// ensure-ready, long-lived POST, frame extraction, decode, ordered push.
//
// States per call: probe/restart -> awaiting-ready -> streaming ->
// completed or failed. A failure is surfaced exactly once, as the return
// value; buffered bytes not yet extracted are discarded with the call.
func (c *Client) streamCall(ctx context.Context, path string, body []byte, model string, inference bool, emit func([]byte) error) error {
	callID := uuid.NewString()
	logger := log.WithFields(log.Fields{"call": callID, "path": path, "model": model})

	restart := false
	if inference {
		restart = c.activity.ShouldRestart(model, c.idleThreshold)
		if restart {
			logger.Info("restart policy triggered, recycling server")
		}
	}
	if err := c.ctl.EnsureReady(ctx, restart, c.readyTimeout, c.pollInterval); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.stream.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("open stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusErrorFromBody(resp)
	}

	// The call is now streaming; record activity once, not per frame.
	if inference {
		c.activity.Record(model)
	}
	logger.Debug("stream open")

	var frames int
	var buffer jsonframe.Buffer
	chunk := make([]byte, streamReadSize)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			buffer.Append(chunk[:n])
			// One delivery may complete several frames; drain them all in
			// order before reading again.
			for {
				frame := buffer.Next()
				if frame == nil {
					break
				}
				if msg := gjson.GetBytes(frame, "error"); msg.Exists() && msg.String() != "" {
					return &ServerError{Message: msg.String()}
				}
				frames++
				if err := emit(frame); err != nil {
					return err
				}
			}
		}
		if readErr == io.EOF {
			logger.Debugf("stream complete, frames=%d discarded=%d", frames, buffer.Len())
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Debugf("stream transport failure after %d frames: %v", frames, readErr)
			return fmt.Errorf("stream transport: %w", readErr)
		}
	}
}
