// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
)

const (
	// RequestIDHeader carries the per-call correlation id understood by API Management
	RequestIDHeader = "x-ms-client-request-id"
	// maxErrorBodyBytes bounds how much of an error body is kept for diagnostics
	maxErrorBodyBytes = 64 << 10
)

type traceKey struct{}

// callTrace collects what the go-openai client does not surface: the raw
// status code and the error body. One trace belongs to exactly one call.
type callTrace struct {
	requestID  string
	statusCode int
	errorBody  []byte
}

func withTrace(ctx context.Context, requestID string) (context.Context, *callTrace) {
	trace := &callTrace{requestID: requestID}
	return context.WithValue(ctx, traceKey{}, trace), trace
}

func traceFrom(ctx context.Context) *callTrace {
	trace, _ := ctx.Value(traceKey{}).(*callTrace)
	return trace
}

// traceTransport tags outgoing requests with the call's request id and keeps a
// copy of any error body before go-openai consumes it.
type traceTransport struct {
	base http.RoundTripper
}

func newTraceTransport(base http.RoundTripper) *traceTransport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &traceTransport{base: base}
}

// RoundTrip implements http.RoundTripper
func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	trace := traceFrom(req.Context())
	if trace == nil {
		return t.base.RoundTrip(req)
	}

	req = req.Clone(req.Context())
	req.Header.Set(RequestIDHeader, trace.requestID)

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	trace.statusCode = resp.StatusCode
	if resp.StatusCode < http.StatusBadRequest {
		return resp, nil
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	trace.errorBody = body
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return resp, nil
}
