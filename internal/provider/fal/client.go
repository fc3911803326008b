// Package fal speaks the queue protocol of the generation provider. A
// submission returns opaque URLs for status, response, and cancel; everything
// after submit goes through those URLs rather than rebuilt paths.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Hakan2211/cinevido-sub002/internal/domain"
)

const DefaultBaseURL = "https://queue.fal.run"

// Status values a poll can report after normalization.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Submission is the provider's acknowledgement of an accepted request.
type Submission struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
	CancelURL   string `json:"cancel_url"`
}

// PollResult is a normalized snapshot of a queued request. Result is only
// populated for completed polls and Error only for failed ones.
type PollResult struct {
	Status   string
	Progress int
	Result   json.RawMessage
	Error    string
}

// Options configures a Client. Zero values fall back to sane defaults.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPClient     *http.Client
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
}

func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout == 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		logger:     opts.Logger,
	}
}

// Submit enqueues a generation request for the given model path and returns
// the polling handles. A 4xx from the provider means the payload was rejected
// and is surfaced verbatim as an InvalidRequestError; transport failures and
// 5xx responses surface as ErrProviderUnavailable.
func (c *Client) Submit(ctx context.Context, model string, payload map[string]any) (*Submission, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := c.baseURL + "/" + strings.TrimLeft(model, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	respBody, status, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", model, domain.ErrProviderUnavailable)
	}
	if status >= 500 {
		return nil, fmt.Errorf("submit %s: status %d: %w", model, status, domain.ErrProviderUnavailable)
	}
	if status >= 400 {
		return nil, &domain.InvalidRequestError{Detail: strings.TrimSpace(string(respBody))}
	}

	var sub Submission
	if err := json.Unmarshal(respBody, &sub); err != nil {
		return nil, fmt.Errorf("decode submission: %w", err)
	}
	if sub.RequestID == "" {
		return nil, fmt.Errorf("submission without request id: %w", domain.ErrProviderUnavailable)
	}
	c.logger.Info().Str("model", model).Str("request_id", sub.RequestID).Msg("provider accepted submission")
	return &sub, nil
}

type statusResponse struct {
	Status string `json:"status"`
	Logs   []struct {
		Message string `json:"message"`
	} `json:"logs"`
	Metrics struct {
		Progress float64 `json:"progress"`
	} `json:"metrics"`
	Error string `json:"error"`
}

// Poll reads the request status and, once completed, fetches the final
// payload from the response URL.
func (c *Client) Poll(ctx context.Context, statusURL, responseURL string) (*PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	respBody, status, err := c.do(req)
	if err != nil || status >= 500 {
		return nil, fmt.Errorf("poll status: %w", domain.ErrProviderUnavailable)
	}
	if status == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if status >= 400 {
		return nil, fmt.Errorf("poll status %d: %w", status, domain.ErrProviderUnavailable)
	}

	var sr statusResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}

	switch strings.ToUpper(sr.Status) {
	case "IN_QUEUE", "QUEUED":
		return &PollResult{Status: StatusQueued}, nil
	case "IN_PROGRESS", "PROCESSING":
		progress := int(sr.Metrics.Progress * 100)
		if progress < 0 {
			progress = 0
		}
		if progress > 99 {
			progress = 99
		}
		return &PollResult{Status: StatusProcessing, Progress: progress}, nil
	case "FAILED", "ERROR":
		message := sr.Error
		if message == "" && len(sr.Logs) > 0 {
			message = sr.Logs[len(sr.Logs)-1].Message
		}
		if message == "" {
			message = "generation failed"
		}
		return &PollResult{Status: StatusFailed, Error: message}, nil
	case "COMPLETED", "OK":
		result, err := c.fetchResult(ctx, responseURL)
		if err != nil {
			return nil, err
		}
		return &PollResult{Status: StatusCompleted, Progress: 100, Result: result}, nil
	default:
		return nil, fmt.Errorf("unknown provider status %q: %w", sr.Status, domain.ErrProviderUnavailable)
	}
}

func (c *Client) fetchResult(ctx context.Context, responseURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, responseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build response request: %w", err)
	}
	respBody, status, err := c.do(req)
	if err != nil || status >= 400 {
		return nil, fmt.Errorf("fetch result: %w", domain.ErrProviderUnavailable)
	}
	return json.RawMessage(respBody), nil
}

// Cancel asks the provider to stop a queued request. Advisory only; the
// provider may have already started or finished the work.
func (c *Client) Cancel(ctx context.Context, cancelURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, cancelURL, nil)
	if err != nil {
		return fmt.Errorf("build cancel request: %w", err)
	}
	_, status, err := c.do(req)
	if err != nil || status >= 500 {
		return fmt.Errorf("cancel: %w", domain.ErrProviderUnavailable)
	}
	return nil
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Key "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("url", req.URL.String()).Msg("provider request failed")
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return respBody, resp.StatusCode, nil
}
