package solr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/kailas-cloud/searchdex/internal/backend"
	"github.com/kailas-cloud/searchdex/internal/domain"
)

// errorBody is the error envelope Solr returns with non-2xx responses.
type errorBody struct {
	Error struct {
		Msg  string `json:"msg"`
		Code int    `json:"code"`
	} `json:"error"`
}

// do sends one request to the core and decodes the JSON answer into out.
// A 400 answer means Solr rejected the query and maps to ErrCompilation;
// every other failure is a backend.Error.
func (b *Backend) do(
	ctx context.Context, op, method, path string, params url.Values, body, out any,
) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("wt", "json")

	u := b.base.JoinPath(path)
	u.RawQuery = params.Encode()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return &backend.Error{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return &backend.Error{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &backend.Error{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(raw))
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Error.Msg != "" {
			msg = eb.Error.Msg
		}
		if resp.StatusCode == http.StatusBadRequest {
			return fmt.Errorf("%w: solr rejected %s: %s", domain.ErrCompilation, op, msg)
		}
		return &backend.Error{Op: op, Err: fmt.Errorf("solr returned %d: %s", resp.StatusCode, msg)}
	}

	if out == nil {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &backend.Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
