// UniAgent - Unified OpenAI chat agent for the terminal
// License: MIT
//
// Copyright (c) 2026 UniAgent contributors

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/uniagent/uniagent/pkg/logger"
)

const chatCompletionsPath = "/chat/completions"

// Client issues chat-completions requests against an OpenAI-compatible API,
// applying bounded exponential-backoff retries for transient failures. It
// never touches conversation state; callers own commit decisions.
type Client struct {
	apiKey     string
	apiBase    string
	httpClient *http.Client
	policy     RetryPolicy
	sleep      sleepFunc
}

func NewClient(apiKey, apiBase, proxy string) (*Client, error) {
	apiBase = strings.TrimRight(strings.TrimSpace(apiBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("API base not configured")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("API key is required")
	}

	// No http.Client.Timeout here: it would cover the entire body read and
	// kill long streams. Header arrival is bounded per attempt in Send.
	client := &http.Client{}
	proxy = strings.TrimSpace(proxy)
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse proxy: %w", err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	return &Client{
		apiKey:     apiKey,
		apiBase:    apiBase,
		httpClient: client,
		policy:     DefaultRetryPolicy(),
		sleep:      contextSleep,
	}, nil
}

// Send posts the payload and returns the open response on success. The
// timeout bounds each attempt's wait for response headers; reading the body
// afterward is bounded only by ctx. Failure classification:
//
//	401/403            -> *AuthError, immediately
//	any other failure  -> retried with exponential backoff, then
//	                      *TransportError wrapping the last cause
func (c *Client) Send(ctx context.Context, payload map[string]interface{}, timeout time.Duration) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	state := &RetryState{}
	for {
		resp, err := c.attempt(ctx, jsonData, timeout)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		if !retryable(err) {
			return nil, &TransportError{Attempts: state.Attempt + 1, Cause: err}
		}

		state.Attempt++
		state.LastErr = err
		if state.exhausted(c.policy) {
			break
		}

		delay := c.policy.Delay(state.Attempt - 1)
		logger.WarnCF("transport", "Request failed, retrying", map[string]interface{}{
			"attempt": state.Attempt,
			"max":     c.policy.MaxAttempts,
			"delay":   delay.String(),
			"error":   err.Error(),
		})
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, &TransportError{Attempts: state.Attempt, Cause: state.LastErr}
}

func (c *Client) attempt(ctx context.Context, body []byte, timeout time.Duration) (*http.Response, error) {
	attemptCtx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.apiBase+chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var headerTimer *time.Timer
	if timeout > 0 {
		headerTimer = time.AfterFunc(timeout, cancel)
	}

	resp, err := c.httpClient.Do(req)
	if headerTimer != nil {
		headerTimer.Stop()
	}
	if err != nil {
		cancel()
		if ctx.Err() == nil && attemptCtx.Err() != nil {
			return nil, fmt.Errorf("timed out after %s waiting for response headers", timeout)
		}
		return nil, fmt.Errorf("send request: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		_ = resp.Body.Close()
		cancel()

		msg := extractAPIError(errBody)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, &AuthError{StatusCode: resp.StatusCode, Message: msg}
		default:
			return nil, &statusError{code: resp.StatusCode, message: msg}
		}
	}

	// Keep the attempt context alive for the body read; Close releases it.
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func extractAPIError(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}

	var payload struct {
		Error struct {
			Message string      `json:"message"`
			Type    string      `json:"type"`
			Code    interface{} `json:"code"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Error.Message); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}

	if len(trimmed) > 2000 {
		return trimmed[:2000] + "..."
	}
	return trimmed
}
