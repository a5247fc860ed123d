package algolia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
)

type Config struct {
	AppID     string        `envconfig:"APP_ID" split_words:"true" required:"true"`
	APIKey    string        `envconfig:"API_KEY" split_words:"true" required:"true"`
	IndexName string        `envconfig:"INDEX_NAME" split_words:"true" required:"true"`
	AgentID   string        `envconfig:"AGENT_ID" split_words:"true"`
	BaseURL   string        `envconfig:"BASE_URL" split_words:"true"`
	Timeout   time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	Retries   int           `envconfig:"RETRIES" split_words:"true" default:"1"`
}

// Client talks to the hosted search index and the agent completions endpoint.
type Client struct {
	indexName string
	agentID   string
	http      *resty.Client
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type multiQueryRequest struct {
	Requests []contract.SearchQuery `json:"requests"`
}

type multiQueryResponse struct {
	Results []contract.SearchResponse `json:"results"`
}

type completionRequest struct {
	Messages []Message `json:"messages"`
}

type completionResponse struct {
	Content string `json:"content"`
}

func NewClient(cfg Config) (*Client, error) {
	appID := strings.TrimSpace(cfg.AppID)
	if appID == "" {
		return nil, errors.New("algolia app id is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("algolia api key is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://" + appID + ".algolia.net"
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid algolia base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(max(cfg.Retries, 0)).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-algolia-application-id", appID).
		SetHeader("x-algolia-api-key", apiKey)

	return &Client{
		indexName: strings.TrimSpace(cfg.IndexName),
		agentID:   strings.TrimSpace(cfg.AgentID),
		http:      httpClient,
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

func (c *Client) IndexName() string {
	return c.indexName
}

func (c *Client) Search(ctx context.Context, q contract.SearchQuery) (contract.SearchResponse, error) {
	if q.IndexName == "" {
		q.IndexName = c.indexName
	}

	var out multiQueryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(multiQueryRequest{Requests: []contract.SearchQuery{q}}).
		SetResult(&out).
		Post("/1/indexes/*/queries")
	if err != nil {
		return contract.SearchResponse{}, fmt.Errorf("%w: search: %v", contract.ErrUpstream, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return contract.SearchResponse{}, fmt.Errorf("%w: search status=%d body=%s", contract.ErrUpstream, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	if len(out.Results) == 0 {
		return contract.SearchResponse{}, fmt.Errorf("%w: search returned no result set", contract.ErrUpstream)
	}
	return out.Results[0], nil
}

// GetProduct resolves a single product by objectID.
func (c *Client) GetProduct(ctx context.Context, productID string) (contract.Hit, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return contract.Hit{}, fmt.Errorf("%w: product id is required", contract.ErrValidation)
	}

	res, err := c.Search(ctx, contract.SearchQuery{
		IndexName:   c.indexName,
		Filters:     `objectID:"` + strings.ReplaceAll(productID, `"`, `\"`) + `"`,
		HitsPerPage: 1,
	})
	if err != nil {
		return contract.Hit{}, err
	}
	if len(res.Hits) == 0 {
		return contract.Hit{}, fmt.Errorf("%w: product %s", contract.ErrNotFound, productID)
	}
	return res.Hits[0], nil
}

// Complete sends messages to the configured agent and returns its raw content.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	if c.agentID == "" {
		return "", fmt.Errorf("%w: algolia agent id is not configured", contract.ErrValidation)
	}

	var out completionResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("agentID", c.agentID).
		SetQueryParams(map[string]string{
			"compatibilityMode": "ai-sdk-4",
			"stream":            "false",
		}).
		SetBody(completionRequest{Messages: messages}).
		SetResult(&out).
		Post("/agent-studio/1/agents/{agentID}/completions")
	if err != nil {
		return "", fmt.Errorf("%w: agent: %v", contract.ErrUpstream, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("%w: agent status=%d body=%s", contract.ErrUpstream, resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return out.Content, nil
}
