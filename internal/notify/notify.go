// Package notify tells members they were quoted.
//
// Delivery is best-effort: a failed notification is logged and counted, and
// never reaches the caller whose write triggered it.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/rs/xid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Notifier delivers one message to one member.
type Notifier interface {
	Notify(ctx context.Context, username, message string) error
}

// QuotedMessage is the text sent to each speaker of a new quote.
func QuotedMessage(submitter string) string {
	return fmt.Sprintf("You were quoted by %s. Check it out at Quotefault!", submitter)
}

// PingerConfig configures the HTTP notification client.
type PingerConfig struct {
	BaseURL string
	Timeout time.Duration

	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
}

// Pinger posts notifications to the pings service:
//
//	POST {base}/pings  {"username": "...", "body": "..."}
//
// Each request carries a fresh Idempotency-Key so the receiver can drop
// duplicates caused by client retries.
type Pinger struct {
	http    *http.Client
	baseURL string
	newKey  func() string
}

var _ Notifier = (*Pinger)(nil)

// NewPinger builds a Pinger, authenticating with OAuth2 client credentials
// when ClientID is set.
func NewPinger(cfg PingerConfig) *Pinger {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		httpClient = cc.Client(ctx)
		httpClient.Timeout = timeout
	}

	return &Pinger{
		http:    httpClient,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		newKey:  func() string { return xid.New().String() },
	}
}

type pingRequest struct {
	Username string `json:"username"`
	Body     string `json:"body"`
}

func (p *Pinger) Notify(ctx context.Context, username, message string) error {
	payload, err := json.Marshal(pingRequest{Username: username, Body: message})
	if err != nil {
		return fmt.Errorf("notify: encoding ping: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/pings", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("notify: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", p.newKey())

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("notify: sending ping to %s: %w", username, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notify: ping to %s returned %d: %s",
			username, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// LogNotifier only logs. Used when no pings service is configured.
type LogNotifier struct {
	logger *slog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, username, message string) error {
	n.logger.InfoContext(ctx, "notification",
		slog.String("username", username),
		slog.String("body", message),
	)
	return nil
}
