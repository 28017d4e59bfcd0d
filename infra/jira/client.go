// Package jira implements tracker.Tracker against the Jira REST API v2.
package jira

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/rapidreach/rrops/core/tracker"
	"github.com/rapidreach/rrops/infra/logger"
)

const apiPrefix = "/rest/api/2"

// Config holds the Jira endpoint and credentials.
type Config struct {
	URL               string  `json:"url"`
	User              string  `json:"user"`
	Token             string  `json:"token"`
	Project           string  `json:"project"`
	TimeoutSeconds    int     `json:"timeout_seconds"`
	MaxRetries        int     `json:"max_retries"`
	RequestsPerSecond float64 `json:"requests_per_second"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Project == "" {
		c.Project = "RDP"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = 5
	}
}

// RequireCredentials reports which Jira settings are missing.
func (c Config) RequireCredentials() error {
	var missing []string
	if c.URL == "" {
		missing = append(missing, "JIRA_URL")
	}
	if c.User == "" {
		missing = append(missing, "JIRA_USER")
	}
	if c.Token == "" {
		missing = append(missing, "JIRA_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("jira settings not set: %s", strings.Join(missing, ", "))
	}
	if _, err := url.ParseRequestURI(c.URL); err != nil {
		return fmt.Errorf("jira url: %w", err)
	}
	return nil
}

// Client talks to Jira with basic auth. Requests are rate limited and
// transient failures (connection errors, 429, 5xx) are retried up to
// MaxRetries times.
type Client struct {
	base    string
	user    string
	token   string
	http    *retryablehttp.Client
	limiter *rate.Limiter
	log     logger.Logger
}

var _ tracker.Tracker = (*Client)(nil)

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	log := logger.New("jira")
	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	rc.RetryMax = cfg.MaxRetries
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.Logger = nil
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
		if attempt > 0 {
			log.Warnf("retrying %s %s (attempt %d)", req.Method, req.URL.Path, attempt+1)
		}
	}
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &Client{
		base:    strings.TrimSuffix(cfg.URL, "/"),
		user:    cfg.User,
		token:   cfg.Token,
		http:    rc,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		log:     log,
	}, nil
}

// do sends a JSON request and decodes the response into out when non-nil.
// Any status outside want yields a *tracker.StatusError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any, want ...int) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	u := c.base + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.SetBasicAuth(c.user, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	ok := false
	for _, code := range want {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &tracker.StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

type searchResponse struct {
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary string `json:"summary"`
			Parent  *struct {
				Key string `json:"key"`
			} `json:"parent"`
			Status *struct {
				Name string `json:"name"`
			} `json:"status"`
		} `json:"fields"`
	} `json:"issues"`
	Total int `json:"total"`
}

// Search runs a JQL query and returns up to maxResults issues.
func (c *Client) Search(ctx context.Context, jql string, fields []string, maxResults int) ([]tracker.Issue, error) {
	q := url.Values{}
	q.Set("jql", jql)
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}
	if maxResults > 0 {
		q.Set("maxResults", strconv.Itoa(maxResults))
	}
	var res searchResponse
	if err := c.do(ctx, "search", http.MethodGet, "/search", q, nil, &res, http.StatusOK); err != nil {
		return nil, err
	}
	issues := make([]tracker.Issue, 0, len(res.Issues))
	for _, is := range res.Issues {
		out := tracker.Issue{Key: is.Key, Summary: is.Fields.Summary}
		if is.Fields.Parent != nil {
			out.ParentKey = is.Fields.Parent.Key
		}
		if is.Fields.Status != nil {
			out.Status = is.Fields.Status.Name
		}
		issues = append(issues, out)
	}
	if res.Total > len(issues) {
		c.log.Warnf("search returned %d of %d issues; raise max_results to see the rest", len(issues), res.Total)
	}
	return issues, nil
}

// AddWorklog books time on an issue.
func (c *Client) AddWorklog(ctx context.Context, key string, w tracker.Worklog) error {
	body := map[string]string{
		"timeSpent": w.TimeSpent,
		"comment":   w.Comment,
		"started":   w.Started.Format(tracker.TimeLayout),
	}
	return c.do(ctx, "add worklog", http.MethodPost, issuePath(key, "worklog"), nil, body, nil,
		http.StatusOK, http.StatusCreated)
}

// Transitions lists the workflow transitions available on an issue.
func (c *Client) Transitions(ctx context.Context, key string) ([]tracker.Transition, error) {
	var res struct {
		Transitions []tracker.Transition `json:"transitions"`
	}
	if err := c.do(ctx, "list transitions", http.MethodGet, issuePath(key, "transitions"), nil, nil, &res, http.StatusOK); err != nil {
		return nil, err
	}
	return res.Transitions, nil
}

// DoTransition moves an issue through the given transition.
func (c *Client) DoTransition(ctx context.Context, key, transitionID string) error {
	body := map[string]any{"transition": map[string]string{"id": transitionID}}
	return c.do(ctx, "transition", http.MethodPost, issuePath(key, "transitions"), nil, body, nil, http.StatusNoContent)
}

// SetOriginalEstimate writes timetracking.originalEstimate.
func (c *Client) SetOriginalEstimate(ctx context.Context, key, estimate string) error {
	body := map[string]any{
		"fields": map[string]any{
			"timetracking": map[string]string{"originalEstimate": estimate},
		},
	}
	return c.do(ctx, "update estimate", http.MethodPut, issuePath(key), nil, body, nil, http.StatusNoContent)
}

func issuePath(key string, sub ...string) string {
	p := "/issue/" + url.PathEscape(key)
	for _, s := range sub {
		p += "/" + s
	}
	return p
}
