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
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Status classifies the result of a single gateway call
type Status int

const (
	// StatusError covers every non-success, non-throttled result including transport failures
	StatusError Status = iota
	// StatusSuccess is a 200 response carrying a completion
	StatusSuccess
	// StatusThrottled is a 429 response from the gateway's throughput policy
	StatusThrottled
)

const (
	// PreviewLength is the maximum number of characters kept from a completion
	PreviewLength = 80
	// DefaultMessageLength is the maximum length of an error message excerpt
	DefaultMessageLength = 120
)

// String returns the short label used in reports and logs
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "ok"
	case StatusThrottled:
		return "429"
	default:
		return "err"
	}
}

// Classify maps an HTTP status code to an outcome status.
// Only an exact 200 is a success and only an exact 429 is a throttling signal.
func Classify(code int) Status {
	switch code {
	case http.StatusOK:
		return StatusSuccess
	case http.StatusTooManyRequests:
		return StatusThrottled
	default:
		return StatusError
	}
}

// Outcome is the normalized result of one chat-completion call
type Outcome struct {
	Status     Status
	HTTPStatus int

	// Set on success only
	TotalTokens int
	Preview     string

	// Set on failure only. ErrorPayload holds the decoded JSON body when the
	// gateway returned JSON, otherwise the raw body text.
	ErrorPayload interface{}
	Err          error

	RequestID string
	Latency   time.Duration
}

// Succeeded reports whether the call completed with a 200
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}

// Throttled reports whether the gateway rejected the call with a 429
func (o Outcome) Throttled() bool {
	return o.Status == StatusThrottled
}

// ErrorMessage extracts a human readable message from the error payload,
// truncated to maxLen characters. Both the OpenAI shape
// {"error":{"message":...}} and the API Management shape {"message":...}
// are recognised; anything else is rendered as text.
func (o Outcome) ErrorMessage(maxLen int) string {
	var msg string

	switch payload := o.ErrorPayload.(type) {
	case nil:
		if o.Err != nil {
			msg = o.Err.Error()
		}
	case string:
		msg = payload
	case map[string]interface{}:
		msg = messageFromMap(payload)
	default:
		msg = fmt.Sprint(payload)
	}

	return truncate(strings.TrimSpace(msg), maxLen)
}

func messageFromMap(payload map[string]interface{}) string {
	if inner, ok := payload["error"].(map[string]interface{}); ok {
		if m, ok := inner["message"].(string); ok && m != "" {
			return m
		}
	}
	if m, ok := payload["message"].(string); ok && m != "" {
		return m
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprint(payload)
	}
	return string(raw)
}

// decodePayload returns the body as structured JSON when it parses, else as raw text
func decodePayload(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}

	var structured interface{}
	if err := json.Unmarshal(body, &structured); err == nil {
		return structured
	}
	return string(body)
}

// truncate cuts text to at most maxLen characters without splitting runes
func truncate(text string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen])
}
