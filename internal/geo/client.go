package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "http://ip-api.com"
	defaultTimeout = 3 * time.Second
	statusSuccess  = "success"
)

var (
	ErrEmptyAddress = errors.New("geo: address is required")
	// ErrLookupFailed is returned when the service answers with a non-success status.
	ErrLookupFailed = errors.New("geo: lookup failed")
)

// Location is the coarse position resolved for an address. Empty fields mean unknown.
type Location struct {
	Country string
	City    string
}

// Locator resolves a network address to a location.
type Locator interface {
	Lookup(ctx context.Context, address string) (Location, error)
}

type ClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client queries the ip-api.com JSON endpoint.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

var _ Locator = (*Client)(nil)

func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: baseURL, timeout: timeout, httpClient: httpClient}
}

type lookupResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Country string `json:"country"`
	City    string `json:"city"`
}

func (c *Client) Lookup(ctx context.Context, address string) (Location, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return Location{}, ErrEmptyAddress
	}

	requestCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/json/%s?fields=status,message,country,city", c.baseURL, url.PathEscape(address))
	request, err := http.NewRequestWithContext(requestCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Location{}, fmt.Errorf("geo: build request: %w", err)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return Location{}, fmt.Errorf("geo: request: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("%w: http status %d", ErrLookupFailed, response.StatusCode)
	}

	var payload lookupResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return Location{}, fmt.Errorf("geo: decode response: %w", err)
	}
	if payload.Status != statusSuccess {
		return Location{}, fmt.Errorf("%w: %s", ErrLookupFailed, payload.Message)
	}

	return Location{
		Country: strings.TrimSpace(payload.Country),
		City:    strings.TrimSpace(payload.City),
	}, nil
}
