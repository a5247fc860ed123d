package qstash

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type Config struct {
	URL     string        `split_words:"true" required:"true"`
	Token   string        `split_words:"true" required:"true"`
	Timeout time.Duration `split_words:"true" default:"10s"`
	Retries int           `split_words:"true" default:"2"`
}

type Client struct {
	baseURL string
	http    *resty.Client
}

type PublishOptions struct {
	// DeduplicationID makes repeated publishes of the same message a no-op upstream.
	DeduplicationID string
	Delay           time.Duration
}

type publishResponse struct {
	MessageID string `json:"messageId"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.URL)
	if baseURL == "" {
		return nil, errors.New("qstash url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, err
	}
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("qstash token is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetAuthToken(token).
		SetRetryCount(max(cfg.Retries, 0)).
		SetRetryWaitTime(200 * time.Millisecond)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// Publish enqueues body for delivery to destination and returns the message id.
func (c *Client) Publish(ctx context.Context, destination string, body any, opts PublishOptions) (string, error) {
	destination = strings.TrimSpace(destination)
	if destination == "" {
		return "", errors.New("qstash destination is required")
	}

	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if opts.DeduplicationID != "" {
		req.SetHeader("Upstash-Deduplication-Id", opts.DeduplicationID)
	}
	if opts.Delay > 0 {
		req.SetHeader("Upstash-Delay", fmt.Sprintf("%ds", int(opts.Delay.Seconds())))
	}

	var out publishResponse
	resp, err := req.SetResult(&out).Post(c.baseURL + "/v2/publish/" + destination)
	if err != nil {
		return "", fmt.Errorf("qstash publish: %w", err)
	}
	if resp.StatusCode() < http.StatusOK || resp.StatusCode() >= http.StatusMultipleChoices {
		return "", fmt.Errorf("qstash publish status=%d body=%s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return out.MessageID, nil
}
