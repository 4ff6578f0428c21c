package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string) (*Client, *[]time.Duration) {
	t.Helper()
	c, err := NewClient("test-key", baseURL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	delays := &[]time.Duration{}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return c, delays
}

func TestSendSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer server.Close()

	c, delays := newTestClient(t, server.URL)
	resp, err := c.Send(context.Background(), map[string]interface{}{"model": "gpt-4.1"}, 5*time.Second)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	defer resp.Body.Close()

	text, err := ParseCompletion(resp.Body)
	if err != nil {
		t.Fatalf("ParseCompletion: %v", err)
	}
	if text != "hello" {
		t.Errorf("expected %q, got %q", "hello", text)
	}
	if len(*delays) != 0 {
		t.Errorf("expected no retries, slept %v", *delays)
	}
}

func TestSendRetriesServerErrorsWithBackoff(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"message":"upstream exploded"}}`))
	}))
	defer server.Close()

	c, delays := newTestClient(t, server.URL)
	_, err := c.Send(context.Background(), map[string]interface{}{}, 5*time.Second)
	if err == nil {
		t.Fatal("expected error")
	}

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if te.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", te.Attempts)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
	want := []time.Duration{1 * time.Second, 2 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("expected delays %v, got %v", want, *delays)
	}
	for i, d := range want {
		if (*delays)[i] != d {
			t.Errorf("delay %d: expected %v, got %v", i, d, (*delays)[i])
		}
	}
	if !strings.Contains(err.Error(), "upstream exploded") {
		t.Errorf("error should carry server message, got %q", err.Error())
	}
}

func TestSendRecoversMidRetry(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	c, delays := newTestClient(t, server.URL)
	resp, err := c.Send(context.Background(), map[string]interface{}{}, 5*time.Second)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	resp.Body.Close()
	if len(*delays) != 2 {
		t.Errorf("expected 2 backoff sleeps, got %v", *delays)
	}
}

func TestSendAuthErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer server.Close()

	c, delays := newTestClient(t, server.URL)
	_, err := c.Send(context.Background(), map[string]interface{}{}, 5*time.Second)

	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthError, got %T: %v", err, err)
	}
	if authErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", authErr.StatusCode)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("auth failure must not be retried, got %d requests", got)
	}
	if len(*delays) != 0 {
		t.Errorf("auth failure must not back off, slept %v", *delays)
	}
}

func TestSendBadRequestRetriedUntilExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid model"}}`))
	}))
	defer server.Close()

	c, delays := newTestClient(t, server.URL)
	_, err := c.Send(context.Background(), map[string]interface{}{}, 5*time.Second)

	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %T: %v", err, err)
	}
	if te.Attempts != 3 {
		t.Errorf("4xx gets the full retry budget, got %d attempts", te.Attempts)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 requests, got %d", got)
	}
	if len(*delays) != 2 {
		t.Errorf("expected 2 backoff sleeps, got %v", *delays)
	}
	if !strings.Contains(err.Error(), "status=400") || !strings.Contains(err.Error(), "invalid model") {
		t.Errorf("error should carry the last status and message, got %q", err.Error())
	}
}

func TestSendContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, err := NewClient("test-key", server.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}

	_, err = c.Send(ctx, map[string]interface{}{}, 5*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSendHeaderTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c, err := NewClient("test-key", server.URL, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.policy = RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond}

	_, err = c.Send(context.Background(), map[string]interface{}{}, 50*time.Millisecond)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("expected header timeout, got %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "https://api.openai.com/v1", ""); err == nil {
		t.Error("expected error for empty API key")
	}
	if _, err := NewClient("key", "", ""); err == nil {
		t.Error("expected error for empty API base")
	}
	if _, err := NewClient("key", "https://api.openai.com/v1", "://bad"); err == nil {
		t.Error("expected error for bad proxy URL")
	}
}

func TestExtractAPIError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"openai shape", `{"error":{"message":"rate limited"}}`, "rate limited"},
		{"flat message", `{"message":"nope"}`, "nope"},
		{"plain text", "gateway timeout", "gateway timeout"},
		{"empty", "", "empty response body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractAPIError([]byte(tt.body)); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestParseCompletionContentParts(t *testing.T) {
	body := `{"choices":[{"message":{"content":[{"type":"text","text":"part one "},{"type":"text","text":"part two"}]}}]}`
	text, err := ParseCompletion(strings.NewReader(body))
	if err != nil {
		t.Fatalf("ParseCompletion: %v", err)
	}
	if text != "part one part two" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestParseCompletionEmpty(t *testing.T) {
	for _, body := range []string{
		`{"choices":[]}`,
		`{"choices":[{"message":{"content":""}}]}`,
		`{"choices":[{"message":{"content":"   "}}]}`,
		`{"choices":[{"message":{"content":null}}]}`,
	} {
		if _, err := ParseCompletion(strings.NewReader(body)); !errors.Is(err, ErrEmptyResponse) {
			t.Errorf("body %s: expected ErrEmptyResponse, got %v", body, err)
		}
	}
}
