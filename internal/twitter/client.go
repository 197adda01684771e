package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/0xNerd/degen-server/internal/domain"
)

const defaultBaseURL = "https://x.com"

// Config configures the Twitter client.
type Config struct {
	BaseURL    string
	Username   string
	Password   string
	TOTPSecret string // optional second factor for the login flow
	SessionDir string
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
}

// Client talks to the Twitter/X internal web API with a cookie session.
// It is safe for concurrent reads once authenticated; credential updates
// happen only during Login/SetCredentials, which callers serialize.
type Client struct {
	cfg       Config
	client    *http.Client
	authToken string
	csrfToken string
}

// NewClient creates an unauthenticated client. Establish a session via
// SetCredentials, LoadSession, or Login before fetching.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{cfg: cfg, client: cfg.HTTPClient}
}

// SetCredentials installs an explicit credential blob (auth + csrf token).
func (c *Client) SetCredentials(authToken, csrfToken string) {
	c.authToken = authToken
	c.csrfToken = csrfToken
}

// HasCredentials reports whether any credentials are currently installed.
func (c *Client) HasCredentials() bool {
	return c.authToken != "" && c.csrfToken != ""
}

// LoadSession restores a persisted session from disk.
// Returns false if no usable session exists.
func (c *Client) LoadSession() (bool, error) {
	authToken, csrfToken, err := loadSession(c.cfg.SessionDir, c.cfg.Username)
	if err != nil {
		return false, err
	}
	if authToken == "" || csrfToken == "" {
		return false, nil
	}
	c.SetCredentials(authToken, csrfToken)
	slog.Info("loaded session from disk", slog.String("user", c.cfg.Username))
	return true, nil
}

// SaveSession persists the current session to disk.
func (c *Client) SaveSession() error {
	return saveSession(c.cfg.SessionDir, c.cfg.Username, c.authToken, c.csrfToken)
}

// ClearSession drops in-memory credentials and the persisted session file.
func (c *Client) ClearSession() {
	c.SetCredentials("", "")
	removeSession(c.cfg.SessionDir, c.cfg.Username)
}

// IsLoggedIn probes the session with a verify-credentials round trip.
func (c *Client) IsLoggedIn(ctx context.Context) (bool, error) {
	if !c.HasCredentials() {
		return false, nil
	}
	_, err := c.doGET(ctx, "/i/api/1.1/account/verify_credentials.json", nil)
	if err != nil {
		if isAuthError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// loginFlowResponse is one step of the onboarding login flow.
type loginFlowResponse struct {
	FlowToken string `json:"flow_token"`
	Subtasks  []struct {
		SubtaskID string `json:"subtask_id"`
	} `json:"subtasks"`
	AuthToken string `json:"auth_token"`
	CSRFToken string `json:"csrf_token"`
}

// Login performs one interactive login attempt: username/password flow,
// answering a TOTP challenge if the flow asks for one.
func (c *Client) Login(ctx context.Context) error {
	if c.cfg.Username == "" || c.cfg.Password == "" {
		return fmt.Errorf("no username/password configured: %w", domain.ErrAuthentication)
	}

	slog.Info("logging in", slog.String("user", c.cfg.Username))

	step, err := c.loginStep(ctx, map[string]any{
		"flow_name": "login",
		"username":  c.cfg.Username,
		"password":  c.cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("login start: %w", err)
	}

	for _, sub := range step.Subtasks {
		if sub.SubtaskID != "LoginTwoFactorAuthChallenge" {
			continue
		}
		if c.cfg.TOTPSecret == "" {
			return fmt.Errorf("two-factor challenge but no TOTP secret configured: %w", domain.ErrAuthentication)
		}
		code, err := totp.GenerateCode(c.cfg.TOTPSecret, time.Now())
		if err != nil {
			return fmt.Errorf("generate totp code: %w", err)
		}
		step, err = c.loginStep(ctx, map[string]any{
			"flow_token": step.FlowToken,
			"challenge":  "two_factor",
			"code":       code,
		})
		if err != nil {
			return fmt.Errorf("two-factor challenge: %w", err)
		}
		break
	}

	if step.AuthToken == "" || step.CSRFToken == "" {
		return fmt.Errorf("login flow ended without session tokens: %w", domain.ErrAuthentication)
	}

	c.SetCredentials(step.AuthToken, step.CSRFToken)
	slog.Info("login succeeded", slog.String("user", c.cfg.Username))
	return nil
}

func (c *Client) loginStep(ctx context.Context, payload map[string]any) (*loginFlowResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	data, err := c.doPOST(ctx, "/i/api/onboarding/task.json", body)
	if err != nil {
		return nil, err
	}

	var step loginFlowResponse
	if err := json.Unmarshal(data, &step); err != nil {
		return nil, fmt.Errorf("decode login flow: %w", err)
	}
	return &step, nil
}

func (c *Client) doGET(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) doPOST(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.authToken != "" {
		req.AddCookie(&http.Cookie{Name: "auth_token", Value: c.authToken})
		req.AddCookie(&http.Cookie{Name: "ct0", Value: c.csrfToken})
		req.Header.Set("X-Csrf-Token", c.csrfToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &apiError{status: resp.StatusCode, class: errAuthExpired, body: truncate(data, 200)}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &apiError{status: resp.StatusCode, class: classifyError(data), body: truncate(data, 200)}
	}
	if class := classifyError(data); class != errNone {
		return nil, &apiError{status: resp.StatusCode, class: class, body: truncate(data, 200)}
	}
	return data, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
