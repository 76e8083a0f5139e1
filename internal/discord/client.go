package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"resty.dev/v3"

	logx "guildmirror/pkg/logx"
)

const userAgent = "DiscordBot (https://github.com/guildmirror/guildmirror, 1.0)"

// Config configures the REST client.
type Config struct {
	Token string
	// AuthScheme prefixes the token in the Authorization header ("Bot",
	// "Bearer"). "raw" sends the token alone.
	AuthScheme string
	APIBase    string
	Timeout    time.Duration
	RatePerSec int
}

type Client struct {
	cfg     Config
	log     logx.Logger
	http    *resty.Client
	limiter *rate.Limiter
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	cfg.Token = strings.TrimSpace(cfg.Token)
	if cfg.Token == "" {
		return nil, ErrEmptyToken
	}
	if cfg.APIBase == "" {
		cfg.APIBase = "https://discord.com/api/v10"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 5
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	auth := cfg.Token
	switch s := strings.TrimSpace(cfg.AuthScheme); {
	case s == "":
		auth = "Bot " + cfg.Token
	case strings.EqualFold(s, "raw"):
	default:
		auth = s + " " + cfg.Token
	}

	hc := resty.New().
		SetBaseURL(strings.TrimRight(cfg.APIBase, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Authorization", auth).
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept", "application/json")

	return &Client{
		cfg:     cfg,
		log:     log,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}, nil
}

func (c *Client) Close() error { return c.http.Close() }

type request struct {
	method string
	path   string
	body   any
	query  map[string]string
	reason string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req := c.http.R().SetContext(ctx)
	if r.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(r.body)
	}
	if len(r.query) > 0 {
		req.SetQueryParams(r.query)
	}
	if r.reason != "" {
		req.SetHeader("X-Audit-Log-Reason", url.PathEscape(r.reason))
	}

	start := time.Now()
	res, err := req.Execute(r.method, r.path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	status := res.StatusCode()
	c.log.Trace("discord request", logx.String("method", r.method), logx.String("path", r.path), logx.Int("status", status), logx.Duration("dur", time.Since(start)))

	body := []byte(res.String())
	if status < 200 || status >= 300 {
		return newAPIError(r.method, r.path, status, res.Header(), body)
	}
	if out == nil || status == http.StatusNoContent || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", r.method, r.path, err)
	}
	return nil
}

func p(parts ...string) string {
	var b strings.Builder
	for _, s := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// Me returns the account behind the token.
func (c *Client) Me(ctx context.Context) (User, error) {
	var u User
	err := c.do(ctx, request{method: http.MethodGet, path: "/users/@me"}, &u)
	return u, err
}

// Guilds lists the guilds visible to the account (first page, up to 200).
func (c *Client) Guilds(ctx context.Context) ([]Guild, error) {
	var gs []Guild
	err := c.do(ctx, request{method: http.MethodGet, path: "/users/@me/guilds", query: map[string]string{"limit": "200"}}, &gs)
	return gs, err
}

func (c *Client) Guild(ctx context.Context, guildID string) (Guild, error) {
	var g Guild
	err := c.do(ctx, request{method: http.MethodGet, path: p("guilds", guildID)}, &g)
	return g, err
}

func (c *Client) Roles(ctx context.Context, guildID string) ([]Role, error) {
	var rs []Role
	err := c.do(ctx, request{method: http.MethodGet, path: p("guilds", guildID, "roles")}, &rs)
	return rs, err
}

func (c *Client) CreateRole(ctx context.Context, guildID string, params RoleParams, reason string) (Role, error) {
	var r Role
	err := c.do(ctx, request{method: http.MethodPost, path: p("guilds", guildID, "roles"), body: params, reason: reason}, &r)
	return r, err
}

func (c *Client) DeleteRole(ctx context.Context, guildID, roleID, reason string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: p("guilds", guildID, "roles", roleID), reason: reason}, nil)
}

func (c *Client) Channels(ctx context.Context, guildID string) ([]Channel, error) {
	var cs []Channel
	err := c.do(ctx, request{method: http.MethodGet, path: p("guilds", guildID, "channels")}, &cs)
	return cs, err
}

func (c *Client) CreateChannel(ctx context.Context, guildID string, params ChannelParams, reason string) (Channel, error) {
	var ch Channel
	err := c.do(ctx, request{method: http.MethodPost, path: p("guilds", guildID, "channels"), body: params, reason: reason}, &ch)
	return ch, err
}

func (c *Client) DeleteChannel(ctx context.Context, channelID, reason string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: p("channels", channelID), reason: reason}, nil)
}

// Messages returns up to limit (max 100) messages older than before, newest
// first. An empty before starts at the latest message.
func (c *Client) Messages(ctx context.Context, channelID string, limit int, before string) ([]Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	q := map[string]string{"limit": strconv.Itoa(limit)}
	if before != "" {
		q["before"] = before
	}
	var ms []Message
	err := c.do(ctx, request{method: http.MethodGet, path: p("channels", channelID, "messages"), query: q}, &ms)
	return ms, err
}

func (c *Client) CreateWebhook(ctx context.Context, channelID, name, reason string) (Webhook, error) {
	var w Webhook
	body := map[string]string{"name": name}
	err := c.do(ctx, request{method: http.MethodPost, path: p("channels", channelID, "webhooks"), body: body, reason: reason}, &w)
	return w, err
}

// ExecuteWebhook posts msg and waits for the created message.
func (c *Client) ExecuteWebhook(ctx context.Context, hook Webhook, msg WebhookMessage) (Message, error) {
	var m Message
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   p("webhooks", hook.ID, hook.Token),
		body:   msg,
		query:  map[string]string{"wait": "true"},
	}, &m)
	return m, err
}

func (c *Client) DeleteWebhook(ctx context.Context, webhookID, reason string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: p("webhooks", webhookID), reason: reason}, nil)
}
