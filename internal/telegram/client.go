package telegram

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

	"golang.org/x/time/rate"
)

const (
	// ParseModeHTML enables the HTML subset Telegram renders.
	ParseModeHTML = "HTML"

	defaultBaseURL       = "https://api.telegram.org"
	defaultRatePerSecond = 25
	maxResponseBytes     = 1 << 20
)

var (
	ErrMissingToken = errors.New("telegram: bot token is required")
	errEmptyChatID  = errors.New("telegram: chat id is required")
)

// APIError is returned when the Bot API answers with ok=false.
type APIError struct {
	Method      string
	StatusCode  int
	ErrorCode   int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: %s failed (%d): %s", e.Method, e.ErrorCode, e.Description)
}

type ClientConfig struct {
	Token         string
	BaseURL       string
	HTTPClient    *http.Client
	RatePerSecond int
}

// Client calls the Telegram Bot API. Outbound calls share one token bucket so
// bursts of notifications stay under Telegram's flood limits.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(cfg ClientConfig) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, ErrMissingToken
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = defaultRatePerSecond
	}
	return &Client{
		token:      token,
		baseURL:    baseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), perSecond),
	}, nil
}

func (c *Client) SendMessage(ctx context.Context, request SendMessageRequest) (Message, error) {
	if strings.TrimSpace(request.ChatID) == "" {
		return Message{}, errEmptyChatID
	}
	var sent Message
	if err := c.call(ctx, "sendMessage", request, &sent); err != nil {
		return Message{}, err
	}
	return sent, nil
}

func (c *Client) EditMessageText(ctx context.Context, request EditMessageTextRequest) error {
	if strings.TrimSpace(request.ChatID) == "" {
		return errEmptyChatID
	}
	return c.call(ctx, "editMessageText", request, nil)
}

func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackQueryRequest{CallbackQueryID: callbackQueryID}, nil)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		// The URL embeds the token; keep it out of logs.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("telegram: %s request failed: %w", method, urlErr.Err)
		}
		return fmt.Errorf("telegram: %s request failed", method)
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return err
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("telegram: %s returned status %d with undecodable body: %w", method, response.StatusCode, err)
	}
	if !decoded.OK {
		return &APIError{
			Method:      method,
			StatusCode:  response.StatusCode,
			ErrorCode:   decoded.ErrorCode,
			Description: decoded.Description,
		}
	}
	if result != nil && len(decoded.Result) > 0 {
		if err := json.Unmarshal(decoded.Result, result); err != nil {
			return err
		}
	}
	return nil
}
