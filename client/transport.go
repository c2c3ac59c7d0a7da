package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	DefaultTimeout = 15 * time.Second
	DefaultRetries = 2
	DefaultBackoff = 500 * time.Millisecond
)

// Transport sends JSON requests with the session's bearer token.
// Only failures to reach the server are retried; HTTP error responses never are.
type Transport struct {
	base    string
	http    *http.Client
	rc      *retryablehttp.Client
	session *Session
	retries int
	backoff time.Duration
}

type TransportOption func(*Transport)

func WithHTTPClient(c *http.Client) TransportOption {
	return func(t *Transport) { t.http = c }
}

// WithRetry overrides the retry count and the fixed pause between attempts.
func WithRetry(retries int, backoff time.Duration) TransportOption {
	return func(t *Transport) {
		t.retries, t.backoff = retries, backoff
	}
}

func NewTransport(baseURL string, session *Session, opts ...TransportOption) *Transport {
	t := &Transport{
		base:    strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
		session: session,
		retries: DefaultRetries,
		backoff: DefaultBackoff,
	}
	for _, o := range opts {
		o(t)
	}
	t.rc = &retryablehttp.Client{
		HTTPClient: t.http,
		RetryMax:   t.retries,
		CheckRetry: retryPolicy,
		Backoff: func(_, _ time.Duration, _ int, _ *http.Response) time.Duration {
			return t.backoff
		},
		ErrorHandler: giveUp,
	}
	if session != nil {
		session.api = t
	}
	return t
}

type callOptions struct {
	noRetry        bool
	idempotencyKey string
}

type CallOption func(*callOptions)

// NoRetry sends the request once. Use it for transitions that must not repeat.
func NoRetry() CallOption {
	return func(o *callOptions) { o.noRetry = true }
}

// IdempotencyKey lets the server replay the first response to a retried mutation.
func IdempotencyKey(key string) CallOption {
	return func(o *callOptions) { o.idempotencyKey = key }
}

type errorBody struct {
	Message           string `json:"message"`
	AvailableQuantity *int   `json:"availableQuantity"`
}

// Do sends in as JSON (nil for no body) and decodes a 2xx response into out.
func (t *Transport) Do(ctx context.Context, method, path string, in, out any, opts ...CallOption) error {
	var co callOptions
	for _, o := range opts {
		o(&co)
	}

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
	}
	if co.noRetry {
		ctx = context.WithValue(ctx, noRetryKey{}, true)
	}

	var body any
	if payload != nil {
		body = payload
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, t.base+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if t.session != nil {
		if tok := t.session.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	if co.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", co.idempotencyKey)
	}

	resp, err := t.rc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var nerr *NetworkError
		if errors.As(err, &nerr) {
			nerr.Method, nerr.Path = method, path
			log.Printf("[client] %s %s gave up after %d attempt(s): %v", method, path, nerr.Attempts, nerr.Err)
			return nerr
		}
		return &NetworkError{Method: method, Path: path, Attempts: 1, Err: err}
	}
	return t.read(resp, out)
}

type noRetryKey struct{}

// retryPolicy retries only when the request never got a response.
func retryPolicy(ctx context.Context, _ *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if noRetry, _ := ctx.Value(noRetryKey{}).(bool); noRetry {
		return false, nil
	}
	return err != nil, nil
}

func giveUp(resp *http.Response, err error, tries int) (*http.Response, error) {
	if resp != nil {
		resp.Body.Close()
	}
	return nil, &NetworkError{Attempts: tries, Err: err}
}

func (t *Transport) read(resp *http.Response, out any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &NetworkError{Err: err, Attempts: 1}
	}

	if resp.StatusCode == http.StatusUnauthorized {
		if t.session != nil {
			t.session.clear()
		}
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		return &APIError{Status: resp.StatusCode, Message: eb.Message, AvailableQuantity: eb.AvailableQuantity}
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// BaseURL is the server root the transport talks to.
func (t *Transport) BaseURL() string { return t.base }
