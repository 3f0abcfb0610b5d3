package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/cevs/internal/domain/types"
)

// envelope mirrors types.Envelope with the payload kept raw.
type envelope struct {
	Status      string            `json:"status"`
	Data        json.RawMessage   `json:"data"`
	Error       *types.ErrorBody  `json:"error"`
	Pagination  *types.Pagination `json:"pagination"`
	Stale       bool              `json:"stale"`
	RetrievedAt time.Time         `json:"retrieved_at"`
	RequestID   string            `json:"request_id"`
}

// maxBody bounds how much of a response is read.
const maxBody = 8 << 20

type client struct {
	base string
	http *http.Client
}

func newClient(base string, timeout time.Duration) *client {
	return &client{base: base, http: &http.Client{Timeout: timeout}}
}

// get fetches path and decodes the envelope. A non-nil error means the
// request did not produce a decodable answer.
func (c *client) get(ctx context.Context, path string) (int, envelope, error) {
	var env envelope
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return 0, env, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, env, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return resp.StatusCode, env, fmt.Errorf("failed to read body: %w", err)
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return resp.StatusCode, env, fmt.Errorf("%s: undecodable body: %w", path, err)
	}
	return resp.StatusCode, env, nil
}
