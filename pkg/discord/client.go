package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://discord.com/api/v10"
	maxPageSize    = 100 // Discord API page limit
)

// Client fetches channel messages over the Discord REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

type ClientOption func(*Client)

// WithBaseURL overrides the API base URL (tests point this at a fake server).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient constructs a Discord REST client using bot token auth.
func NewClient(botToken string, logger *slog.Logger, options ...ClientOption) (*Client, error) {
	if strings.TrimSpace(botToken) == "" {
		return nil, fmt.Errorf("discord bot token required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		token:      botToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
	for _, option := range options {
		if option != nil {
			option(c)
		}
	}
	return c, nil
}

// FetchRecent returns up to limit recent messages per channel, newest first
// within each channel, channels concatenated in the given order. A channel
// that fails to fetch is logged and skipped; the remaining channels are still
// read, matching the tolerant behavior of the sync trigger. An error is
// returned only when every channel fails, since a run with zero readable
// channels is batch-fatal rather than a degraded success.
func (c *Client) FetchRecent(ctx context.Context, channelIDs []string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var (
		all      []Message
		failures int
		lastErr  error
	)
	for _, channelID := range channelIDs {
		msgs, err := c.fetchChannel(ctx, channelID, limit)
		if err != nil {
			failures++
			lastErr = err
			c.logger.WarnContext(ctx, "channel fetch failed", "channel_id", channelID, "err", err)
			continue
		}
		all = append(all, msgs...)
	}
	if len(channelIDs) > 0 && failures == len(channelIDs) {
		return nil, fmt.Errorf("fetching messages: all %d channels failed: %w", failures, lastErr)
	}
	return all, nil
}

func (c *Client) fetchChannel(ctx context.Context, channelID string, limit int) ([]Message, error) {
	var (
		msgs   []Message
		before string
	)
	for len(msgs) < limit {
		pageSize := limit - len(msgs)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
		page, err := c.fetchPage(ctx, channelID, pageSize, before)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		msgs = append(msgs, page...)
		before = page[len(page)-1].ID
		if len(page) < pageSize {
			break
		}
	}
	return msgs, nil
}

func (c *Client) fetchPage(ctx context.Context, channelID string, pageSize int, before string) ([]Message, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(pageSize))
	if before != "" {
		query.Set("before", before)
	}
	endpoint := fmt.Sprintf("%s/channels/%s/messages?%s", c.baseURL, url.PathEscape(channelID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var page []Message
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return page, nil
}

// APIError represents a Discord API error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("discord api: status %d", e.Status)
	}
	return fmt.Sprintf("discord api: status %d: %s", e.Status, e.Message)
}
