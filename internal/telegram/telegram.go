// Package telegram is a minimal Bot API client covering the single call the
// relay needs: sendMessage with MarkdownV2 formatting.
package telegram

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
)

const (
	defaultBaseURL = "https://api.telegram.org"
	parseMode      = "MarkdownV2"

	defaultRequestTimeout = 10 * time.Second
)

// ErrNotConfigured marks a client built without a token or chat id.
var ErrNotConfigured = errors.New("telegram client not configured")

// markdownV2Specials lists every character the Bot API requires escaped
// outside of entities.
const markdownV2Specials = "_*[]()~`>#+-=|{}.!"

// Client posts messages to one fixed chat.
type Client struct {
	token      string
	chatID     string
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(client *Client) {
		client.httpClient = httpClient
	}
}

// WithBaseURL points the client at a different API host, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(client *Client) {
		client.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// NewClient wires a Client for the given bot token and target chat.
func NewClient(token string, chatID string, options ...Option) (*Client, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(chatID) == "" {
		return nil, ErrNotConfigured
	}
	client := &Client{
		token:   token,
		chatID:  chatID,
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultRequestTimeout,
		},
	}
	for _, option := range options {
		if option != nil {
			option(client)
		}
	}
	return client, nil
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage posts one MarkdownV2 message to the configured chat. The caller
// escapes dynamic fragments with EscapeMarkdownV2 before embedding them.
func (client *Client) SendMessage(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:    client.chatID,
		Text:      text,
		ParseMode: parseMode,
	})
	if err != nil {
		return fmt.Errorf("encode telegram request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", client.baseURL, client.token)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read telegram response: %w", err)
	}
	var decoded sendMessageResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return fmt.Errorf("decode telegram response (status %d): %w", response.StatusCode, err)
	}
	if !decoded.OK {
		return fmt.Errorf("telegram rejected message (status %d): %s", response.StatusCode, decoded.Description)
	}
	return nil
}

// EscapeMarkdownV2 escapes every MarkdownV2 special so arbitrary postback
// values render literally.
func EscapeMarkdownV2(raw string) string {
	var builder strings.Builder
	builder.Grow(len(raw))
	for _, character := range raw {
		if strings.ContainsRune(markdownV2Specials, character) {
			builder.WriteByte('\\')
		}
		builder.WriteRune(character)
	}
	return builder.String()
}
