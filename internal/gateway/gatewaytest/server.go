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

// Package gatewaytest provides a scripted stand-in for an API Management
// gateway in front of an Azure OpenAI chat-completions deployment.
package gatewaytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/gin-gonic/gin"
)

// Call is one request received by the fake gateway
type Call struct {
	Key        string
	Deployment string
	APIVersion string
	RequestID  string
	Prompt     string
	MaxTokens  int
}

// Response is what the fake gateway answers for a call
type Response struct {
	Status int
	Body   string
}

// Responder decides the response for the n-th call (1-based, in arrival order)
type Responder func(n int, call Call) Response

type chatRequest struct {
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	MaxTokens int `json:"max_tokens"`
}

// Server is a fake gateway backed by httptest
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	calls     []Call
	responder Responder
}

// NewServer starts a fake gateway. A nil responder answers every call with OK(15, "Hello").
func NewServer(responder Responder) *Server {
	if responder == nil {
		responder = func(int, Call) Response { return OK(15, "Hello") }
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()

	s := &Server{responder: responder}
	router.POST("/openai/deployments/:deployment/chat/completions", s.handleChat)
	s.Server = httptest.NewServer(router)
	return s
}

func (s *Server) handleChat(c *gin.Context) {
	key := c.GetHeader("api-key")
	if key == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"statusCode": http.StatusUnauthorized,
			"message":    "Access denied due to missing subscription key.",
		})
		return
	}

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"code": "BadRequest", "message": err.Error()}})
		return
	}

	call := Call{
		Key:        key,
		Deployment: c.Param("deployment"),
		APIVersion: c.Query("api-version"),
		RequestID:  c.GetHeader("x-ms-client-request-id"),
		MaxTokens:  req.MaxTokens,
	}
	if len(req.Messages) > 0 {
		call.Prompt = req.Messages[len(req.Messages)-1].Content
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	n := len(s.calls)
	s.mu.Unlock()

	resp := s.responder(n, call)
	c.Data(resp.Status, "application/json", []byte(resp.Body))
}

// Calls returns a copy of the calls received so far
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of calls received so far
func (s *Server) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// OK builds a successful chat completion using totalTokens tokens
func OK(totalTokens int, content string) Response {
	body, _ := json.Marshal(map[string]interface{}{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"created": 1234567890,
		"model":   "gpt-4o",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
		"usage": map[string]int{
			"prompt_tokens":     totalTokens / 3,
			"completion_tokens": totalTokens - totalTokens/3,
			"total_tokens":      totalTokens,
		},
	})
	return Response{Status: http.StatusOK, Body: string(body)}
}

// TooManyRequests builds the body API Management returns when a token limit trips
func TooManyRequests(message string) Response {
	return Response{
		Status: http.StatusTooManyRequests,
		Body:   fmt.Sprintf(`{"statusCode": 429, "message": %q}`, message),
	}
}

// Error builds an error response with a raw body
func Error(status int, body string) Response {
	return Response{Status: status, Body: body}
}
