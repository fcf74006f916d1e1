// Package client calls a remote resolve endpoint and maps its JSON contract back
// onto resolver results and errors.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bugmaschine/vembed/internal/providers"
	"github.com/bugmaschine/vembed/internal/resolver"
	"github.com/bugmaschine/vembed/internal/server"
)

type Client struct {
	endpoint string
	http     *http.Client
	// Headers are added to every request (e.g. authorization, apikey).
	Headers http.Header
}

// New returns a client for endpoint, the full URL the resolve request is POSTed to.
func New(endpoint string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{endpoint: strings.TrimSpace(endpoint), http: hc, Headers: http.Header{}}
}

func (c *Client) Resolve(ctx context.Context, raw string) (*resolver.Result, error) {
	body, err := json.Marshal(server.ResolveRequest{URL: raw})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, vs := range c.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &resolver.Error{Stage: "remote", URL: raw, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &resolver.Error{Stage: "remote", URL: raw, Err: err}
	}

	var out server.ResolveResponse
	if err := json.Unmarshal(data, &out); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &resolver.HTTPStatusError{URL: c.endpoint, StatusCode: resp.StatusCode}
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, resolver.ErrInvalidURL
	case resp.StatusCode == http.StatusOK && out.Success:
		tag, _ := providers.ParseTag(out.Provider)
		return &resolver.Result{EmbedURL: out.EmbedURL, Provider: tag, ResolvedURL: out.ResolvedURL}, nil
	case resp.StatusCode == http.StatusOK:
		return nil, &resolver.Error{Stage: "scan", URL: raw, ResolvedURL: out.ResolvedURL, Err: resolver.ErrNotEmbeddable}
	default:
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &resolver.Error{Stage: "remote", URL: raw, Err: errors.New(msg)}
	}
}
