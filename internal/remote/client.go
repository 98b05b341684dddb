package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HendryAvila/toolvault/internal/canon"
	"github.com/HendryAvila/toolvault/internal/tool"
)

var _ Store = (*Client)(nil)

// ─── Wire types ─────────────────────────────────────────────────────────────

// SaveRequest is the body of POST /v1/tools.
type SaveRequest struct {
	Definition tool.Definition `json:"definition"`
	Meta       tool.SaveMeta   `json:"meta"`
}

// ListResponse is the body of GET /v1/tools.
type ListResponse struct {
	Tools []tool.Meta `json:"tools"`
}

// Credentials is the body of the sign-in and sign-up calls.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is returned by sign-in and sign-up.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// FavoriteResponse is the body of GET /v1/favorites/:id.
type FavoriteResponse struct {
	Favorite bool `json:"favorite"`
}

// ErrorResponse is the error envelope used by the server.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ─── Client ─────────────────────────────────────────────────────────────────

// ClientConfig holds client configuration.
type ClientConfig struct {
	BaseURL string
	// TokenFile, when set, persists the session token across restarts.
	TokenFile  string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to a toolvault cloud server over HTTP.
type Client struct {
	base      *url.URL
	http      *http.Client
	tokenFile string
	logger    *zap.Logger

	mu    sync.RWMutex
	token string
}

// NewClient builds a client. A token saved in cfg.TokenFile is loaded.
func NewClient(cfg ClientConfig) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("remote: invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	c := &Client{
		base:      base,
		http:      hc,
		tokenFile: cfg.TokenFile,
		logger:    cfg.Logger.Named("remote"),
	}
	if cfg.TokenFile != "" {
		raw, err := os.ReadFile(cfg.TokenFile)
		switch {
		case err == nil:
			c.token = strings.TrimSpace(string(raw))
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("remote: read token file: %w", err)
		}
	}
	return c, nil
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, id string) (tool.Record, error) {
	var rec tool.Record
	if err := c.do(ctx, http.MethodGet, "/v1/tools/"+url.PathEscape(id), nil, nil, &rec); err != nil {
		return tool.Record{}, fmt.Errorf("remote: get %s: %w", id, err)
	}
	return rec, nil
}

// List fetches summaries. Entries carrying a malformed content hash are
// dropped, since the merge keys on it.
func (c *Client) List(ctx context.Context, params tool.ListParams) ([]tool.Meta, error) {
	q := url.Values{}
	if params.Limit > 0 {
		q.Set("limit", strconv.Itoa(params.Limit))
	}
	if params.Query != "" {
		q.Set("query", params.Query)
	}
	var resp ListResponse
	if err := c.do(ctx, http.MethodGet, "/v1/tools", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("remote: list: %w", err)
	}
	metas := make([]tool.Meta, 0, len(resp.Tools))
	for _, m := range resp.Tools {
		if !canon.IsHash(m.ContentHash) {
			c.logger.Warn("dropping remote meta with malformed hash",
				zap.String("id", m.ID),
				zap.String("hash", m.ContentHash),
			)
			continue
		}
		m.Source = tool.SourceRemote
		metas = append(metas, m)
	}
	return metas, nil
}

// Save uploads a definition. The server assigns the id unless meta.ID
// names a record the caller already owns.
func (c *Client) Save(ctx context.Context, def tool.Definition, meta tool.SaveMeta) (tool.Meta, error) {
	var m tool.Meta
	if err := c.do(ctx, http.MethodPost, "/v1/tools", nil, SaveRequest{Definition: def, Meta: meta}, &m); err != nil {
		return tool.Meta{}, fmt.Errorf("remote: save: %w", err)
	}
	m.Source = tool.SourceRemote
	return m, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/tools/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("remote: delete %s: %w", id, err)
	}
	return nil
}

// Favorite toggles membership of id in the user's favorites.
func (c *Client) Favorite(ctx context.Context, id string, on bool) error {
	method := http.MethodPut
	if !on {
		method = http.MethodDelete
	}
	if err := c.do(ctx, method, "/v1/favorites/"+url.PathEscape(id), nil, nil, nil); err != nil {
		return fmt.Errorf("remote: favorite %s: %w", id, err)
	}
	return nil
}

// IsFavorite reports favorite membership.
func (c *Client) IsFavorite(ctx context.Context, id string) (bool, error) {
	var resp FavoriteResponse
	if err := c.do(ctx, http.MethodGet, "/v1/favorites/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return false, fmt.Errorf("remote: is favorite %s: %w", id, err)
	}
	return resp.Favorite, nil
}

// ─── Auth ───────────────────────────────────────────────────────────────────

// SignIn exchanges credentials for a session token.
func (c *Client) SignIn(ctx context.Context, email, password string) (User, error) {
	return c.authenticate(ctx, "/v1/auth/signin", email, password)
}

// SignUp creates an account and signs in.
func (c *Client) SignUp(ctx context.Context, email, password string) (User, error) {
	return c.authenticate(ctx, "/v1/auth/signup", email, password)
}

func (c *Client) authenticate(ctx context.Context, path, email, password string) (User, error) {
	var sess Session
	if err := c.do(ctx, http.MethodPost, path, nil, Credentials{Email: email, Password: password}, &sess); err != nil {
		return User{}, fmt.Errorf("remote: %s: %w", strings.TrimPrefix(path, "/v1/auth/"), err)
	}
	if err := c.setToken(sess.Token); err != nil {
		return User{}, err
	}
	return sess.User, nil
}

// SignOut forgets the session token locally.
func (c *Client) SignOut(_ context.Context) error {
	return c.setToken("")
}

// CurrentUser returns the account behind the current token.
func (c *Client) CurrentUser(ctx context.Context) (User, error) {
	if c.currentToken() == "" {
		return User{}, fmt.Errorf("remote: current user: %w", ErrUnauthorized)
	}
	var u User
	if err := c.do(ctx, http.MethodGet, "/v1/auth/user", nil, nil, &u); err != nil {
		return User{}, fmt.Errorf("remote: current user: %w", err)
	}
	return u, nil
}

// IsAuthenticated probes the server with the current token. A rejected
// token is reported as false with no error.
func (c *Client) IsAuthenticated(ctx context.Context) (bool, error) {
	_, err := c.CurrentUser(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrUnauthorized):
		return false, nil
	default:
		return false, err
	}
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	if c.tokenFile == "" {
		return nil
	}
	if token == "" {
		if err := os.Remove(c.tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remote: remove token file: %w", err)
		}
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.tokenFile), 0o700); err != nil {
		return fmt.Errorf("remote: ensure token dir: %w", err)
	}
	if err := os.WriteFile(c.tokenFile, []byte(token), 0o600); err != nil {
		return fmt.Errorf("remote: write token file: %w", err)
	}
	return nil
}

// ─── Transport ──────────────────────────────────────────────────────────────

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := statusError(resp); err != nil {
		return err
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	var env ErrorResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&env)
	msg := env.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, msg)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", tool.ErrNotFound, msg)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %d %s", ErrUnavailable, resp.StatusCode, msg)
	default:
		return fmt.Errorf("remote: %d %s", resp.StatusCode, msg)
	}
}
