// Package client talks to the quiz HTTP API on behalf of one learner. It
// implements session.Backend.
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
	"time"

	"github.com/pavelanni/recall/internal/model"
)

// Header names shared with the server.
const (
	LearnerHeader     = "X-Learner-ID"
	IdempotencyHeader = "Idempotency-Key"
)

// Client is an API client bound to one learner.
type Client struct {
	baseURL   string
	learnerID string
	lang      string
	http      *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLanguage sets the Accept-Language sent with every request.
func WithLanguage(lang string) Option {
	return func(c *Client) { c.lang = lang }
}

// New returns a client for the API rooted at baseURL.
func New(baseURL, learnerID string, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		learnerID: learnerID,
		http:      &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Compose fetches a new session.
func (c *Client) Compose(ctx context.Context) (model.QuizSession, error) {
	var out model.QuizSession
	err := c.do(ctx, http.MethodGet, "/api/quiz/session", nil, "", &out)
	return out, err
}

// Submit sends one answer. The server replays the original result when the
// idempotency key was already used.
func (c *Client) Submit(ctx context.Context, answer model.AnswerSubmit, idempotencyKey string) (model.AnswerResult, error) {
	var out model.AnswerResult
	err := c.do(ctx, http.MethodPost, "/api/quiz/answer", answer, idempotencyKey, &out)
	return out, err
}

// Complete reports the finished session.
func (c *Client) Complete(ctx context.Context, req model.SessionComplete) (model.SessionSummary, error) {
	var out model.SessionSummary
	err := c.do(ctx, http.MethodPost, "/api/quiz/session/complete", req, "", &out)
	return out, err
}

// Overview fetches the learner's progress overview.
func (c *Client) Overview(ctx context.Context) (model.Overview, error) {
	var out model.Overview
	err := c.do(ctx, http.MethodGet, "/api/progress/overview", nil, "", &out)
	return out, err
}

// Streak fetches the learner's streak and calendar.
func (c *Client) Streak(ctx context.Context) (model.StreakInfo, error) {
	var out model.StreakInfo
	err := c.do(ctx, http.MethodGet, "/api/progress/streak", nil, "", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, idemKey string, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.learnerID != "" {
		req.Header.Set(LearnerHeader, c.learnerID)
	}
	if c.lang != "" {
		req.Header.Set("Accept-Language", c.lang)
	}
	if idemKey != "" {
		req.Header.Set(IdempotencyHeader, idemKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%s %s: %v: %w", method, path, err, model.ErrTransport)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %v: %w", path, err, model.ErrTransport)
	}
	return nil
}

// statusError maps an error response to the shared error taxonomy.
func statusError(resp *http.Response) error {
	var body model.ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body)
	msg := body.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var kind error
	switch {
	case resp.StatusCode == http.StatusNotFound:
		kind = model.ErrNotFound
	case resp.StatusCode == http.StatusUnprocessableEntity:
		kind = model.ErrInvalidChoice
	case resp.StatusCode == http.StatusBadRequest:
		kind = model.ErrValidation
	case resp.StatusCode == http.StatusConflict:
		kind = model.ErrConcurrentTransition
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		kind = model.ErrTransport
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("%s: %w", msg, kind)
}
