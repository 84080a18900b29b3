package snoochat

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

// Credentials is what Authenticate accepts: PasswordCredentials or
// PreIssuedToken.
type Credentials interface {
	credentials()
}

// PasswordCredentials logs in with an account password. TwoFactor is the
// current one-time code, if the account uses one.
type PasswordCredentials struct {
	Username  string
	Password  string
	TwoFactor string
}

// PreIssuedToken uses an OAuth bearer token obtained elsewhere.
type PreIssuedToken struct {
	Token string
}

func (PasswordCredentials) credentials() {}
func (PreIssuedToken) credentials()      {}

// AuthResult is the socket credential pair plus the account API token it
// was derived from (useful for refreshing later).
type AuthResult struct {
	AccessToken string
	UserID      string
	APIToken    string
}

const userIDPrefix = "t2_"

// Authenticate exchanges creds for the chat access token and user id the
// socket needs. It fails with ErrInvalidCredentials when the account
// rejects the login, or with a wrapped transport or HTTP error otherwise.
func Authenticate(ctx context.Context, cfg AuthConfig, creds Credentials) (AuthResult, error) {
	a := newAuthenticator(cfg)

	var apiToken string
	switch c := creds.(type) {
	case PasswordCredentials:
		if c.Username == "" || c.Password == "" {
			return AuthResult{}, ErrMissingCredentials
		}
		session, err := a.login(ctx, c)
		if err != nil {
			return AuthResult{}, err
		}
		apiToken, err = a.apiToken(ctx, session)
		if err != nil {
			return AuthResult{}, err
		}
	case PreIssuedToken:
		if c.Token == "" {
			return AuthResult{}, ErrMissingCredentials
		}
		apiToken = c.Token
	default:
		return AuthResult{}, fmt.Errorf("authenticate: unsupported credentials %T", creds)
	}

	accessToken, err := a.chatToken(ctx, apiToken)
	if err != nil {
		return AuthResult{}, err
	}
	userID, err := a.userID(ctx, apiToken)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{AccessToken: accessToken, UserID: userID, APIToken: apiToken}, nil
}

type authenticator struct {
	cfg        AuthConfig
	httpClient *http.Client
	vendorID   string
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &authenticator{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: timeout,
			// the session cookie is set on the redirect response itself
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		vendorID: uuid.NewString(),
	}
}

// login posts the account form and returns the session cookie value.
func (a *authenticator) login(ctx context.Context, c PasswordCredentials) (string, error) {
	passwd := c.Password
	if c.TwoFactor != "" {
		passwd += ":" + c.TwoFactor
	}
	form := url.Values{
		"op":       {"login"},
		"user":     {c.Username},
		"passwd":   {passwd},
		"api_type": {"json"},
	}
	endpoint := strings.TrimRight(a.cfg.LoginBase, "/") + "/api/login/" + url.PathEscape(c.Username)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", a.cfg.WebAgent)
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	for _, ck := range resp.Cookies() {
		if ck.Name == "reddit_session" && ck.Value != "" {
			return ck.Value, nil
		}
	}
	return "", ErrInvalidCredentials
}

// apiToken exchanges a session cookie for an OAuth bearer token.
func (a *authenticator) apiToken(ctx context.Context, session string) (string, error) {
	endpoint := strings.TrimRight(a.cfg.AccountsBase, "/") + "/api/access_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader([]byte(`{"scopes":["*"]}`)))
	if err != nil {
		return "", err
	}
	basic := base64.StdEncoding.EncodeToString([]byte(a.cfg.ClientID + ":"))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("User-Agent", a.cfg.MobileAgent)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("client-vendor-id", a.vendorID)
	req.AddCookie(&http.Cookie{Name: "reddit_session", Value: session})

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := a.do(a.httpClient, req, &resp); err != nil {
		return "", fmt.Errorf("access token: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("access token: %w", ErrInvalidCredentials)
	}
	return resp.AccessToken, nil
}

// chatToken fetches the socket access token for the account.
func (a *authenticator) chatToken(ctx context.Context, apiToken string) (string, error) {
	var resp struct {
		SBAccessToken string `json:"sb_access_token"`
	}
	if err := a.bearerGet(ctx, strings.TrimRight(a.cfg.SBase, "/")+"/api/v1/sendbird/me", apiToken, &resp); err != nil {
		return "", fmt.Errorf("chat token: %w", err)
	}
	if resp.SBAccessToken == "" {
		return "", fmt.Errorf("chat token: %w", ErrInvalidCredentials)
	}
	return resp.SBAccessToken, nil
}

// userID fetches the account id and returns it in its prefixed form.
func (a *authenticator) userID(ctx context.Context, apiToken string) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := a.bearerGet(ctx, strings.TrimRight(a.cfg.OAuthBase, "/")+"/api/v1/me.json", apiToken, &resp); err != nil {
		return "", fmt.Errorf("user id: %w", err)
	}
	if resp.ID == "" {
		return "", fmt.Errorf("user id: %w", ErrInvalidCredentials)
	}
	return userIDPrefix + resp.ID, nil
}

// bearerGet issues a GET authorised with the account API token.
func (a *authenticator) bearerGet(ctx context.Context, endpoint, apiToken string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", a.cfg.MobileAgent)

	transport := &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiToken, TokenType: "bearer"}),
		Base:   http.DefaultTransport,
	}
	client := &http.Client{Timeout: a.httpClient.Timeout, Transport: transport}
	return a.do(client, req, dest)
}

func (a *authenticator) do(client *http.Client, req *http.Request, dest any) error {
	req.Header.Set("Accept-Encoding", acceptEncoding)
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.Join(ErrInvalidCredentials, &HTTPError{
			Method: req.Method, URL: req.URL.Path, StatusCode: resp.StatusCode, Body: string(body),
		})
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Method: req.Method, URL: req.URL.Path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
