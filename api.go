package snoochat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ChannelLister lists the channels a user has joined. The Client calls it
// right after a successful login to seed its ChannelRegistry.
type ChannelLister interface {
	ListJoinedChannels(ctx context.Context, userID, sessionKey string, opts ListOptions) ([]GroupChannel, error)
}

// HTTPError is returned for non-2xx REST responses.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// APIClient talks to the chat provider's REST API. It needs no live socket,
// only the session key issued by a successful login.
type APIClient struct {
	apiBase     string
	userAgent   string
	sbUserAgent string
	httpClient  *http.Client
	log         zerolog.Logger
}

// NewAPIClient creates a REST client from cfg.
func NewAPIClient(cfg Config) *APIClient {
	timeout := cfg.RESTTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &APIClient{
		apiBase:     strings.TrimRight(cfg.APIBase, "/"),
		userAgent:   cfg.UserAgent,
		sbUserAgent: cfg.SBUserAgent,
		httpClient:  &http.Client{Timeout: timeout},
		log:         cfg.Logger,
	}
}

// --------------------------------------------------------------------------
// Channels
// --------------------------------------------------------------------------

// ListJoinedChannels returns the group channels userID belongs to,
// following pagination tokens up to opts.MaxPages pages.
func (c *APIClient) ListJoinedChannels(ctx context.Context, userID, sessionKey string, opts ListOptions) ([]GroupChannel, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("list channels: %w", ErrNotAuthenticated)
	}
	pages := opts.MaxPages
	if pages < 1 {
		pages = 1
	}

	path := "/v3/users/" + url.PathEscape(userID) + "/my_group_channels"
	var (
		all   []GroupChannel
		token string
	)
	for page := 0; page < pages; page++ {
		var resp GroupChannelsResponse
		if err := c.doJSON(ctx, http.MethodGet, path+"?"+opts.values(token).Encode(), sessionKey, &resp); err != nil {
			return nil, fmt.Errorf("list channels: %w", err)
		}
		all = append(all, resp.Channels...)
		if resp.Next == "" {
			break
		}
		token = resp.Next
	}
	c.log.Debug().Int("channels", len(all)).Msg("listed joined channels")
	return all, nil
}

// --------------------------------------------------------------------------
// HTTP helpers
// --------------------------------------------------------------------------

// doJSON sends a request carrying the session key and decodes the JSON
// response into dest.
func (c *APIClient) doJSON(ctx context.Context, method, path, sessionKey string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Session-Key", sessionKey)
	req.Header.Set("SB-User-Agent", c.sbUserAgent)
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", acceptEncoding)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Method: method, URL: req.URL.Path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if dest != nil {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
