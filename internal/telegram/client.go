package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	// DefaultAPIBaseURL is the public Bot API endpoint.
	DefaultAPIBaseURL = "https://api.telegram.org"
	defaultTimeout    = 10 * time.Second

	methodSendMessage            = "sendMessage"
	methodEditMessageReplyMarkup = "editMessageReplyMarkup"
	methodDeleteMessage          = "deleteMessage"
	methodAnswerCallbackQuery    = "answerCallbackQuery"
	methodGetWebhookInfo         = "getWebhookInfo"
)

var (
	// ErrMissingBotToken indicates that the client was configured without a bot token.
	ErrMissingBotToken = errors.New("telegram: bot token is required")
	// ErrTransport indicates that the Bot API could not be reached or answered with garbage.
	ErrTransport = errors.New("telegram: transport failure")
)

// APIError is an ok:false answer from the Bot API.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("telegram: %s failed with status %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("telegram: %s failed: %s", e.Method, e.Description)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

type ClientConfig struct {
	BotToken string
	BaseURL  string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// Client calls the Bot API over HTTPS. Every call is a single attempt.
type Client struct {
	http   *resty.Client
	token  string
	logger *zap.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	token := strings.TrimSpace(cfg.BotToken)
	if token == "" {
		return nil, ErrMissingBotToken
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(baseURL+"/bot"+token).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{http: httpClient, token: token, logger: logger}, nil
}

// SendMessage posts a message and returns the message as the Bot API echoed it.
func (c *Client) SendMessage(ctx context.Context, request SendMessageRequest) (Message, error) {
	var sent Message
	if err := c.call(ctx, methodSendMessage, request, &sent); err != nil {
		return Message{}, err
	}
	return sent, nil
}

// EditMessageReplyMarkup replaces the inline keyboard of an existing message.
func (c *Client) EditMessageReplyMarkup(ctx context.Context, chatID, messageID int64, markup InlineKeyboardMarkup) error {
	return c.call(ctx, methodEditMessageReplyMarkup, editMessageReplyMarkupRequest{
		ChatID:      chatID,
		MessageID:   messageID,
		ReplyMarkup: markup,
	}, nil)
}

func (c *Client) DeleteMessage(ctx context.Context, chatID, messageID int64) error {
	return c.call(ctx, methodDeleteMessage, deleteMessageRequest{ChatID: chatID, MessageID: messageID}, nil)
}

// AnswerCallbackQuery shows text as a transient notification to the user who pressed a button.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackQueryID, text string) error {
	return c.call(ctx, methodAnswerCallbackQuery, answerCallbackQueryRequest{
		CallbackQueryID: callbackQueryID,
		Text:            text,
	}, nil)
}

func (c *Client) GetWebhookInfo(ctx context.Context) (WebhookInfo, error) {
	var info WebhookInfo
	if err := c.call(ctx, methodGetWebhookInfo, struct{}{}, &info); err != nil {
		return WebhookInfo{}, err
	}
	return info, nil
}

func (c *Client) call(ctx context.Context, method string, payload any, result any) error {
	var envelope apiResponse
	response, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		ForceContentType("application/json").
		SetResult(&envelope).
		SetError(&envelope).
		Post("/" + method)
	if err != nil {
		wrapped := fmt.Errorf("%w: %s: %s", ErrTransport, method, c.redact(err.Error()))
		c.logger.Warn("telegram call failed", zap.String("method", method), zap.Error(wrapped))
		return wrapped
	}

	if !envelope.OK {
		apiErr := &APIError{Method: method, StatusCode: response.StatusCode(), Description: envelope.Description}
		c.logger.Warn("telegram call rejected",
			zap.String("method", method),
			zap.Int("status", response.StatusCode()),
			zap.String("description", envelope.Description))
		return apiErr
	}

	if result == nil || len(envelope.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		wrapped := fmt.Errorf("%w: %s: decode result: %v", ErrTransport, method, err)
		c.logger.Warn("telegram call returned unreadable result", zap.String("method", method), zap.Error(err))
		return wrapped
	}
	return nil
}

// redact keeps the bot token out of errors and logs; resty errors embed the request URL.
func (c *Client) redact(message string) string {
	return strings.ReplaceAll(message, c.token, "<redacted>")
}
