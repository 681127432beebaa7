package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const DefaultBaseURL = "https://slack.com/api"

// Client is a minimal Slack Web API client covering the three operations the
// ingestor consumes: conversations.list, conversations.history, users.info.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithHTTP is for tests that need to point at a fake server or a
// recording transport.
func NewClientWithHTTP(baseURL, token string, httpClient *http.Client) *Client {
	c := NewClient(baseURL, token)
	if httpClient != nil {
		c.httpClient = httpClient
	}
	return c
}

// ListChannels returns the non-archived public and private channels visible
// to the token, including ones the caller is not a member of; callers filter
// on IsMember.
func (c *Client) ListChannels(ctx context.Context) ([]Channel, error) {
	params := url.Values{}
	params.Set("types", "public_channel,private_channel")
	params.Set("exclude_archived", "true")
	params.Set("limit", "1000")

	var resp listResponse
	if err := c.call(ctx, "conversations.list", params, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, &APIError{Reason: resp.Error}
	}
	return resp.Channels, nil
}

// History fetches one page of channel history. oldest bounds the window from
// below; cursor is empty for the first page.
func (c *Client) History(ctx context.Context, channelID string, oldest time.Time, cursor string, limit int) (HistoryPage, error) {
	params := url.Values{}
	params.Set("channel", channelID)
	params.Set("oldest", strconv.FormatInt(oldest.Unix(), 10))
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	var resp historyResponse
	if err := c.call(ctx, "conversations.history", params, &resp); err != nil {
		return HistoryPage{}, err
	}
	if !resp.OK {
		return HistoryPage{}, &APIError{Reason: resp.Error}
	}
	return HistoryPage{
		Messages:   resp.Messages,
		HasMore:    resp.HasMore,
		NextCursor: resp.ResponseMetadata.NextCursor,
	}, nil
}

// UserInfo fetches a user's profile.
func (c *Client) UserInfo(ctx context.Context, userID string) (User, error) {
	params := url.Values{}
	params.Set("user", userID)

	var resp userInfoResponse
	if err := c.call(ctx, "users.info", params, &resp); err != nil {
		return User{}, err
	}
	if !resp.OK {
		return User{}, &APIError{Reason: resp.Error}
	}
	return resp.User, nil
}

func (c *Client) call(ctx context.Context, method string, params url.Values, out any) error {
	endpoint := c.baseURL + "/" + method + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, resp.Body)
		return &RateLimitedError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: unexpected status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	return nil
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
