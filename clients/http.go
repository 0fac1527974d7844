package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// response is a fully read HTTP response.
type response struct {
	status int
	body   []byte
}

func (r *response) ok() bool {
	return r.status == http.StatusOK
}

// text returns the body for error messages, without surrounding space.
func (r *response) text() string {
	return strings.TrimSpace(string(r.body))
}

func do(ctx context.Context, c *http.Client, method, url string, header http.Header, body io.Reader) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("new %s %s: %w", method, url, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &response{status: res.StatusCode, body: raw}, nil
}

func jsonBody(v any) (io.Reader, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return bytes.NewReader(b), nil
}

func decode[T any](raw []byte) (*T, error) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		snip := strings.TrimSpace(string(raw))
		if len(snip) > 300 {
			snip = snip[:300] + "...(truncated)"
		}
		return nil, fmt.Errorf("unmarshal JSON: %w (body: %q)", err, snip)
	}
	return &out, nil
}
