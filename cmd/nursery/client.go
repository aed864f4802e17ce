// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Nursery Contributors

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	nurseryerr "github.com/daneel-ai/nursery/pkg/errors"
)

// defaultHTTPClient is the package-level HTTP client used by gateway commands.
// Overridden in tests via httptest.
var defaultHTTPClient = &http.Client{
	Timeout: 5 * time.Second,
}

// gatewayClient provides HTTP access to a running nursery gateway.
type gatewayClient struct {
	baseURL string
	http    *http.Client
}

// newGatewayClient creates a client targeting the given host:port address.
func newGatewayClient(addr string) *gatewayClient {
	return &gatewayClient{
		baseURL: "http://" + addr,
		http:    defaultHTTPClient,
	}
}

// getJSON performs a GET request and decodes the JSON response into dest.
// A refused connection carries CodeCLIGatewayNotRunning so callers can
// distinguish "not started yet" from a broken gateway.
func (c *gatewayClient) getJSON(path string, dest any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		if isDialError(err) {
			return nurseryerr.Wrap(err, nurseryerr.CodeCLIGatewayNotRunning,
				"gateway is not running (connection refused)")
		}
		return nurseryerr.Wrapf(err, nurseryerr.CodeCLIRequestFailure, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nurseryerr.Errorf(nurseryerr.CodeCLIRequestFailure,
			"gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return nurseryerr.Wrapf(err, nurseryerr.CodeCLIResponseInvalid, "invalid response")
	}
	return nil
}

// isDialError returns true if err is a net dial error (connection refused, etc.).
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
