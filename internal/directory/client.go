package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/sakif/quotefault/internal/model"
)

const (
	defaultTimeout = 10 * time.Second

	// maxBatch bounds the number of uid parameters per lookup request.
	maxBatch = 100
)

// ClientConfig configures the HTTP directory client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration

	// OAuth2 client credentials. Requests are unauthenticated when
	// ClientID is empty.
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Client talks to the directory service over HTTP.
//
// ENDPOINTS:
//
//	GET {base}/users?uid=a&uid=b   → [{"uid": "...", "cn": "..."}]
//	GET {base}/members/quotable    → [{"uid": "...", "cn": "..."}]
type Client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient builds a directory client. With client credentials configured,
// the returned client fetches and refreshes its own access tokens.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		// The token endpoint is called with the same timeout-bound client.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = cc.Client(ctx)
		httpClient.Timeout = timeout
	}

	return &Client{
		http:    httpClient,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger.With(slog.String("component", "directory.Client")),
	}
}

var _ Directory = (*Client)(nil)

// Resolve looks up display names in batches of maxBatch uids.
func (c *Client) Resolve(ctx context.Context, uids []string) (map[string]string, error) {
	uids = dedupe(uids)
	names := make(map[string]string, len(uids))

	for start := 0; start < len(uids); start += maxBatch {
		end := min(start+maxBatch, len(uids))

		q := url.Values{}
		for _, uid := range uids[start:end] {
			q.Add("uid", uid)
		}

		var users []model.User
		if err := c.get(ctx, "/users?"+q.Encode(), &users); err != nil {
			return nil, err
		}
		for _, u := range users {
			names[u.UID] = u.CN
		}
	}
	return names, nil
}

// QuotableMembers fetches the quotable member snapshot.
func (c *Client) QuotableMembers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.get(ctx, "/members/quotable", &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("directory: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %w", ErrUnavailable, req.URL.Path, err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "directory request",
		slog.String("path", req.URL.Path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: GET %s returned %d: %s",
			ErrUnavailable, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %w", ErrUnavailable, req.URL.Path, err)
	}
	return nil
}
