package coingecko

// client.go — CoinGecko simple/price client, used as the settlement price
// feed. The free tier rate limits aggressively, so calls go through a
// limiter and a single 429 retry with jitter; settlement tolerates a missing
// price (the bet stays pending), so one retry is enough.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kosaiyno/iryspredict/internal/ports"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"

	// free tier: ~30 req/min. One settlement batch needs one call.
	requestsPerMin = 20

	retryWaitBase   = 700 * time.Millisecond
	retryWaitJitter = 300 * time.Millisecond

	callTimeout = 10 * time.Second
)

// Client implements ports.PriceFeed against the CoinGecko API.
type Client struct {
	http    *http.Client
	baseURL string
	limiter *rate.Limiter
}

var _ ports.PriceFeed = (*Client)(nil)

// New creates a client. An empty baseURL selects the public API.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		http:    &http.Client{Timeout: callTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		limiter: rate.NewLimiter(rate.Every(time.Minute/requestsPerMin), 2),
	}
}

// SpotPrices fetches USD quotes for the given CoinGecko ids. Ids unknown to
// the API are absent from the result, not an error.
func (c *Client) SpotPrices(ctx context.Context, ids []string) (map[string]ports.Quote, error) {
	if len(ids) == 0 {
		return map[string]ports.Quote{}, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := fmt.Sprintf("%s/simple/price?vs_currencies=usd&include_24hr_change=true&ids=%s",
		c.baseURL, url.QueryEscape(strings.Join(ids, ",")))

	body, err := c.fetch(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var raw map[string]struct {
		USD       float64 `json:"usd"`
		Change24h float64 `json:"usd_24h_change"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("coingecko: decode prices: %w", err)
	}

	out := make(map[string]ports.Quote, len(raw))
	for id, q := range raw {
		out[id] = ports.Quote{USD: q.USD, Change24h: q.Change24h}
	}
	return out, nil
}

// fetch GETs the URL, retrying once after a short jittered wait on 429.
func (c *Client) fetch(ctx context.Context, reqURL string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("coingecko: %w", err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests && attempt == 0 {
			wait := retryWaitBase + time.Duration(rand.Int63n(int64(retryWaitJitter)))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		if readErr != nil {
			return nil, fmt.Errorf("coingecko: read body: %w", readErr)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("coingecko: status %d: %s", resp.StatusCode, string(body))
		}
		return body, nil
	}
}
