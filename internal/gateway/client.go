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

// Package gateway performs single chat-completion calls against an API
// Management gateway fronting an Azure OpenAI deployment and normalizes every
// result, including failures, into an Outcome.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/your-org/tenant-throttle-probe/internal/config"
)

const (
	// DefaultDeployment is the model deployment addressed behind the gateway
	DefaultDeployment = "gpt-4o"
	// DefaultAPIVersion is the Azure OpenAI data-plane API version
	DefaultAPIVersion = "2024-10-21"
	// DefaultTimeout bounds a single call so an unresponsive gateway cannot stall a phase
	DefaultTimeout = 60 * time.Second
)

var (
	// ErrInvalidRequest is attached to outcomes rejected before any I/O
	ErrInvalidRequest = errors.New("invalid chat request")
)

// Options configures a Client
type Options struct {
	BaseURL    string
	Deployment string
	APIVersion string
	Timeout    time.Duration
	// Transport overrides the underlying HTTP transport, mainly for tests
	Transport http.RoundTripper
	Logger    *zap.Logger
}

// Client issues chat completions on behalf of a tenant. It never retries:
// deciding what to do with a throttled or failed call is the caller's job.
type Client struct {
	baseURL    string
	deployment string
	apiVersion string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a gateway client from the given options
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required")
	}

	if opts.Deployment == "" {
		opts.Deployment = DefaultDeployment
	}
	if opts.APIVersion == "" {
		opts.APIVersion = DefaultAPIVersion
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		deployment: opts.Deployment,
		apiVersion: opts.APIVersion,
		timeout:    opts.Timeout,
		httpClient: &http.Client{Transport: newTraceTransport(opts.Transport)},
		logger:     opts.Logger,
	}, nil
}

// NewClientFromConfig creates a gateway client from resolved configuration
func NewClientFromConfig(cfg config.GatewayConfig, logger *zap.Logger) (*Client, error) {
	return NewClient(Options{
		BaseURL:    cfg.URL,
		Deployment: cfg.Deployment,
		APIVersion: cfg.APIVersion,
		Timeout:    cfg.Timeout,
		Logger:     logger,
	})
}

// Endpoint returns the chat-completions URL the client targets
func (c *Client) Endpoint() string {
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		c.baseURL, c.deployment, c.apiVersion)
}

// openaiClient builds a go-openai client bound to one tenant's subscription key
func (c *Client) openaiClient(key string) *openai.Client {
	cfg := openai.DefaultAzureConfig(key, c.baseURL)
	cfg.APIVersion = c.apiVersion
	cfg.AzureModelMapperFunc = func(model string) string { return model }
	cfg.HTTPClient = c.httpClient
	return openai.NewClientWithConfig(cfg)
}

// Chat performs one request/response cycle for the tenant and classifies the result
func (c *Client) Chat(ctx context.Context, tenant config.Tenant, prompt string, maxTokens int) Outcome {
	requestID := uuid.NewString()

	if strings.TrimSpace(prompt) == "" {
		return Outcome{Status: StatusError, RequestID: requestID, Err: fmt.Errorf("%w: prompt is empty", ErrInvalidRequest)}
	}
	if maxTokens <= 0 {
		return Outcome{Status: StatusError, RequestID: requestID, Err: fmt.Errorf("%w: max_tokens must be positive, got %d", ErrInvalidRequest, maxTokens)}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	callCtx, trace := withTrace(callCtx, requestID)

	req := openai.ChatCompletionRequest{
		Model: c.deployment,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxTokens,
	}

	c.logger.Debug("Sending chat completion",
		zap.String("tenant", tenant.Name),
		zap.String("request_id", requestID),
		zap.Int("max_tokens", maxTokens),
	)

	start := time.Now()
	resp, err := c.openaiClient(tenant.Key).CreateChatCompletion(callCtx, req)
	out := Outcome{
		HTTPStatus: trace.statusCode,
		RequestID:  requestID,
		Latency:    time.Since(start),
	}

	if err != nil {
		if out.HTTPStatus == 0 {
			out.HTTPStatus = statusFromError(err)
		}
		out.Status = Classify(out.HTTPStatus)
		if out.Status == StatusSuccess {
			// 200 with a body go-openai could not decode
			out.Status = StatusError
		}
		out.Err = err
		out.ErrorPayload = decodePayload(trace.errorBody)

		c.logger.Debug("Chat completion failed",
			zap.String("tenant", tenant.Name),
			zap.String("request_id", requestID),
			zap.Int("status_code", out.HTTPStatus),
			zap.String("outcome", out.Status.String()),
			zap.Duration("latency", out.Latency),
			zap.Error(err),
		)
		return out
	}

	if out.HTTPStatus == 0 {
		out.HTTPStatus = http.StatusOK
	}
	out.Status = Classify(out.HTTPStatus)
	if out.Status != StatusSuccess {
		out.Err = fmt.Errorf("unexpected success status %d", out.HTTPStatus)
		return out
	}

	out.TotalTokens = resp.Usage.TotalTokens
	if len(resp.Choices) > 0 {
		out.Preview = truncate(resp.Choices[0].Message.Content, PreviewLength)
	}

	c.logger.Debug("Chat completion succeeded",
		zap.String("tenant", tenant.Name),
		zap.String("request_id", requestID),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", out.Latency),
	)

	return out
}

// statusFromError recovers the HTTP status from go-openai's error types
func statusFromError(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}

	return 0
}
