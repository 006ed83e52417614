package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

// PushConfig configures the push gateway client.
type PushConfig struct {
	GatewayURL    string
	AccessToken   string
	RatePerSecond float64
	Timeout       time.Duration
}

// PushResult counts per-device outcomes of one Send.
type PushResult struct {
	Sent   int
	Failed int
}

// PushClient posts one message per device token to an Expo-compatible push gateway.
type PushClient struct {
	http    *http.Client
	url     string
	token   string
	limiter *rate.Limiter
}

func NewPushClient(cfg PushConfig) *PushClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	return &PushClient{
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		url:     cfg.GatewayURL,
		token:   cfg.AccessToken,
		limiter: rate.NewLimiter(limit, 1),
	}
}

type pushMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound"`
	Badge int               `json:"badge"`
}

type pushTicket struct {
	Data struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
}

// Send delivers n to each of tokens. A failure on one device does not stop
// the others; the error return is reserved for a cancelled context.
func (c *PushClient) Send(ctx context.Context, tokens []string, n Notification) (PushResult, error) {
	var res PushResult
	for _, token := range tokens {
		if err := c.limiter.Wait(ctx); err != nil {
			return res, fmt.Errorf("waiting for push rate limit: %w", err)
		}

		if err := c.sendOne(ctx, token, n); err != nil {
			res.Failed++
			slog.WarnContext(ctx, "push delivery failed",
				"error", err,
				"template", n.Template)
			continue
		}
		res.Sent++
	}
	return res, nil
}

func (c *PushClient) sendOne(ctx context.Context, token string, n Notification) error {
	payload, err := json.Marshal(pushMessage{
		To:    token,
		Title: n.Title,
		Body:  n.Body,
		Data:  n.Data,
		Sound: "default",
		Badge: 1,
	})
	if err != nil {
		return fmt.Errorf("encoding push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building push request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting push message: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway returned %d", resp.StatusCode)
	}

	var ticket pushTicket
	if err := json.Unmarshal(body, &ticket); err == nil && ticket.Data.Status == "error" {
		return fmt.Errorf("push gateway rejected message: %s", ticket.Data.Message)
	}
	return nil
}
