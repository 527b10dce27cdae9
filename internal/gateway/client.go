// Package gateway talks to the chat gateway sidecar that owns the platform
// connection. Every call is bounded by the client timeout and guarded by a
// circuit breaker so a dead gateway cannot stall the workflow.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"warden/internal/moderation/models"
	id "warden/pkg/domain"
	"warden/pkg/platform/circuit"
	"warden/pkg/platform/sentinel"
)

var (
	// ErrForbidden means the bot lacks the permission for the action.
	ErrForbidden = errors.New("gateway: insufficient permissions")
	// ErrNotFound means the user, member, channel or message is gone.
	ErrNotFound = errors.New("gateway: target not found")
	// ErrUnavailable means the breaker is open and the call was not attempted.
	ErrUnavailable = fmt.Errorf("gateway: %w", sentinel.ErrUnavailable)
)

// ReasonHeader carries the audit-log reason for membership changes.
const ReasonHeader = "X-Audit-Log-Reason"

const defaultTimeout = 5 * time.Second

// Client implements the outbound chat ports over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout bounds each outbound call.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.http.Timeout = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		cl.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway url %q", baseURL)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
		breaker: circuit.New("gateway"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type messageRequest struct {
	Content string `json:"content"`
}

type cardResponse struct {
	MessageID id.MessageID `json:"message_id"`
}

func (c *Client) SendDirect(ctx context.Context, user id.UserID, text string) error {
	return c.do(ctx, http.MethodPost, "/v1/users/"+user.String()+"/messages", nil, messageRequest{Content: text}, nil)
}

func (c *Client) PostCard(ctx context.Context, channel id.ChannelID, card models.Card) (id.MessageID, error) {
	var resp cardResponse
	if err := c.do(ctx, http.MethodPost, "/v1/channels/"+channel.String()+"/cards", nil, card, &resp); err != nil {
		return 0, err
	}
	if resp.MessageID.IsZero() {
		return 0, errors.New("gateway: card posted without message id")
	}
	return resp.MessageID, nil
}

func (c *Client) EditCard(ctx context.Context, channel id.ChannelID, message id.MessageID, card models.Card) error {
	path := "/v1/channels/" + channel.String() + "/cards/" + message.String()
	return c.do(ctx, http.MethodPatch, path, nil, card, nil)
}

// PublishPanel posts the "start verification" panel into channel.
func (c *Client) PublishPanel(ctx context.Context, channel id.ChannelID) error {
	return c.do(ctx, http.MethodPost, "/v1/channels/"+channel.String()+"/panels/verification", nil, nil, nil)
}

func (c *Client) AddRole(ctx context.Context, guild id.GuildID, user id.UserID, role id.RoleID) error {
	return c.do(ctx, http.MethodPut, rolePath(guild, user, role), nil, nil, nil)
}

func (c *Client) RemoveRole(ctx context.Context, guild id.GuildID, user id.UserID, role id.RoleID) error {
	return c.do(ctx, http.MethodDelete, rolePath(guild, user, role), nil, nil, nil)
}

func (c *Client) RemoveMember(ctx context.Context, guild id.GuildID, user id.UserID, reason string) error {
	path := "/v1/guilds/" + guild.String() + "/members/" + user.String()
	return c.do(ctx, http.MethodDelete, path, http.Header{ReasonHeader: []string{reason}}, nil, nil)
}

func rolePath(guild id.GuildID, user id.UserID, role id.RoleID) string {
	return "/v1/guilds/" + guild.String() + "/members/" + user.String() + "/roles/" + role.String()
}

func (c *Client) do(ctx context.Context, method, path string, header http.Header, body, out any) error {
	if !c.breaker.Allow() {
		return ErrUnavailable
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode gateway request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.failure(ctx, method, path)
		return fmt.Errorf("gateway %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		c.failure(ctx, method, path)
		return fmt.Errorf("gateway %s %s returned %s", method, path, resp.Status)
	case resp.StatusCode == http.StatusForbidden:
		c.success(ctx)
		return ErrForbidden
	case resp.StatusCode == http.StatusNotFound:
		c.success(ctx)
		return ErrNotFound
	case resp.StatusCode >= 300:
		c.success(ctx)
		return fmt.Errorf("gateway %s %s returned %s", method, path, resp.Status)
	}
	c.success(ctx)

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}

func (c *Client) failure(ctx context.Context, method, path string) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "gateway circuit opened",
			"breaker", c.breaker.Name(),
			"method", method,
			"path", path,
		)
	}
}

func (c *Client) success(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "gateway circuit closed", "breaker", c.breaker.Name())
	}
}
