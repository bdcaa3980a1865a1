// Package relay implements the SocialPlatformClient port against a posting
// relay: a small HTTP service that holds platform credentials for configured
// accounts and exposes a uniform JSON API per platform.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SocialPlatformClient = (*Client)(nil)

// maxErrorBody bounds how much of an error response is copied into errors.
const maxErrorBody = 512

// Client talks to the relay for one platform.
type Client struct {
	http     *http.Client
	baseURL  *url.URL
	platform model.Platform
	token    string
}

// NewClient creates a relay client for platform. GET requests go through an
// in-memory httpcache transport so repeated post lookups revalidate with ETags
// instead of refetching.
func NewClient(baseURL string, platform model.Platform, token string) (*Client, error) {
	httpClient := &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   15 * time.Second,
	}
	return NewClientWithHTTPClient(httpClient, baseURL, platform, token)
}

// NewClientWithHTTPClient creates a Client with a custom http.Client.
// Used by tests to inject an httptest server client.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string, platform model.Platform, token string) (*Client, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("unknown platform %q", platform)
	}

	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}

	return &Client{
		http:     httpClient,
		baseURL:  u,
		platform: platform,
		token:    token,
	}, nil
}

// Platform returns the platform this client posts to.
func (c *Client) Platform() model.Platform {
	return c.platform
}

type createPostResponse struct {
	ID string `json:"id"`
}

// CreatePost publishes content as accountID and returns the new post id.
func (c *Client) CreatePost(ctx context.Context, accountID string, content model.PostContent) (string, error) {
	body, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("marshal post: %w", err)
	}

	var out createPostResponse
	if err := c.do(ctx, http.MethodPost, c.path("accounts", accountID, "posts"), body, &out); err != nil {
		return "", fmt.Errorf("create %s post: %w", c.platform, err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create %s post: relay returned no post id", c.platform)
	}

	return out.ID, nil
}

// DeletePost deletes postID as accountID.
func (c *Client) DeletePost(ctx context.Context, accountID, postID string) error {
	if err := c.do(ctx, http.MethodDelete, c.path("accounts", accountID, "posts", postID), nil, nil); err != nil {
		return fmt.Errorf("delete %s post %s: %w", c.platform, postID, err)
	}
	return nil
}

type postResponse struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	Embeds    []string  `json:"embeds"`
	ReplyTo   string    `json:"replyTo"`
	CreatedAt time.Time `json:"createdAt"`
}

// GetPost fetches postID. Returns driven.ErrPostNotFound if it does not exist.
func (c *Client) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	var out postResponse
	if err := c.do(ctx, http.MethodGet, c.path("posts", postID), nil, &out); err != nil {
		return nil, fmt.Errorf("get %s post %s: %w", c.platform, postID, err)
	}

	return &model.Post{
		ID:       out.ID,
		Platform: c.platform,
		AuthorID: out.AuthorID,
		Content: model.PostContent{
			Text:    out.Text,
			Embeds:  out.Embeds,
			ReplyTo: out.ReplyTo,
		},
		CreatedAt: out.CreatedAt,
	}, nil
}

func (c *Client) path(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.String() + "/" + strings.Join(escaped, "/")
}

func (c *Client) do(ctx context.Context, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return driven.ErrRateLimited
	case resp.StatusCode == http.StatusNotFound:
		return driven.ErrPostNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("relay returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	// Drain fully: the cache transport only stores a response once its body hits EOF.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
