package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Client issues authenticated reads against the Graph API. The bearer
// credential is supplied per call; the client holds no credentials.
type Client struct {
	base string
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL (used by tests).
func WithBaseURL(base string) Option {
	return func(c *Client) { c.base = strings.TrimRight(base, "/") }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a Graph client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		base: DefaultBaseURL,
		http: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// User is the subset of the Graph user profile the tools need.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Mail        string `json:"mail"`
}

// Message is a mail message summary.
type Message struct {
	Subject    string `json:"subject"`
	ReceivedAt string `json:"receivedDateTime"`
	From       struct {
		EmailAddress struct {
			Address string `json:"address"`
			Name    string `json:"name"`
		} `json:"emailAddress"`
	} `json:"from"`
}

// Me fetches the profile of the user the credential belongs to.
func (c *Client) Me(ctx context.Context, credential string) (*User, error) {
	var user User
	if err := c.get(ctx, credential, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// JunkMessages lists the most recent messages in the junk-email folder.
func (c *Client) JunkMessages(ctx context.Context, credential string, top int) ([]Message, error) {
	if top <= 0 {
		top = 5
	}
	path := fmt.Sprintf("/me/mailFolders/junkemail/messages?$top=%d&$select=%s",
		top, url.QueryEscape("subject,from,receivedDateTime"))

	var body struct {
		Value []Message `json:"value"`
	}
	if err := c.get(ctx, credential, path, &body); err != nil {
		return nil, err
	}
	return body.Value, nil
}

func (c *Client) get(ctx context.Context, credential, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("graph: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph: call API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graph: unexpected status %d for %s", resp.StatusCode, req.URL.Path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("graph: decode response: %w", err)
	}
	return nil
}
