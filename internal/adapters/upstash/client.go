package upstash

// client.go — Upstash Redis REST adapter implementing ports.Store.
//
// Uses the path-style REST API: commands and their arguments become
// URL-escaped path segments (GET {base}/incrby/{key}/{n}) authorized with a
// bearer token, and every response arrives in a {"result": ...} envelope.
// Result shapes vary per command (string, null, number, array); they are
// decoded into typed values here so callers never see the envelope.

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kosaiyno/iryspredict/internal/domain"
	"github.com/kosaiyno/iryspredict/internal/ports"
)

const (
	// Upstash free tier allows 100 req/s; stay under it.
	requestsPerSec = 80
	requestBurst   = 20

	maxRetries    = 3
	baseRetryWait = 300 * time.Millisecond

	callTimeout = 5 * time.Second
)

// Client talks to one Upstash Redis database over REST.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
}

var _ ports.Store = (*Client)(nil)

// New creates a client for the database at baseURL (https://<db>.upstash.io)
// with the given REST token.
func New(baseURL, token string) (*Client, error) {
	if baseURL == "" || token == "" {
		return nil, fmt.Errorf("upstash.New: base URL and token are required")
	}
	return &Client{
		http:    &http.Client{Timeout: callTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		limiter: rate.NewLimiter(requestsPerSec, requestBurst),
	}, nil
}

// Close is a no-op; the REST API is connectionless.
func (c *Client) Close() error { return nil }

// envelope is the uniform Upstash response wrapper.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// call issues one command as path segments and returns the raw result.
// Retries with exponential backoff and jitter on 429/5xx/transport errors.
func (c *Client) call(ctx context.Context, parts ...string) (json.RawMessage, error) {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	reqURL := c.baseURL + "/" + strings.Join(escaped, "/")

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return nil, fmt.Errorf("upstash %s: %v: %w", parts[0], err, domain.ErrStoreUnavailable)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return nil, fmt.Errorf("upstash %s: status %d after %d retries: %w",
					parts[0], resp.StatusCode, maxRetries, domain.ErrStoreUnavailable)
			}
			c.sleep(ctx, attempt)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("upstash %s: read body: %w", parts[0], err)
		}
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("upstash %s: status %d: %s", parts[0], resp.StatusCode, string(body))
		}

		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("upstash %s: decode envelope: %w", parts[0], err)
		}
		if env.Error != "" {
			return nil, fmt.Errorf("upstash %s: %s", parts[0], env.Error)
		}
		return env.Result, nil
	}
	return nil, fmt.Errorf("upstash %s: exhausted %d retries: %w", parts[0], maxRetries, domain.ErrStoreUnavailable)
}

// sleep waits with exponential backoff and jitter, honoring the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	wait += time.Duration(rand.Int63n(int64(baseRetryWait)))
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// Get returns the value at key, or ports.ErrNotFound for a null result.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	raw, err := c.call(ctx, "get", key)
	if err != nil {
		return "", err
	}
	s, ok := decodeString(raw)
	if !ok {
		return "", ports.ErrNotFound
	}
	return s, nil
}

// Set writes value at key, with EX when ttl > 0.
func (c *Client) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	parts := []string{"set", key, value}
	if ttl > 0 {
		parts = append(parts, "EX", strconv.FormatInt(int64(ttl.Seconds()), 10))
	}
	_, err := c.call(ctx, parts...)
	return err
}

// SetNX issues SET ... NX and reports whether the value was written
// (a null result means the key already existed).
func (c *Client) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	parts := []string{"set", key, value}
	if ttl > 0 {
		parts = append(parts, "EX", strconv.FormatInt(int64(ttl.Seconds()), 10))
	}
	parts = append(parts, "NX")
	raw, err := c.call(ctx, parts...)
	if err != nil {
		return false, err
	}
	_, ok := decodeString(raw)
	return ok, nil
}

// Del removes key.
func (c *Client) Del(ctx context.Context, key string) error {
	_, err := c.call(ctx, "del", key)
	return err
}

// IncrBy adds delta to the counter at key and returns the new total.
func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	raw, err := c.call(ctx, "incrby", key, strconv.FormatInt(delta, 10))
	if err != nil {
		return 0, err
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("upstash incrby %q: unexpected result %s", key, raw)
	}
	return n, nil
}

// ZAdd upserts score/member pairs into the sorted set at key.
func (c *Client) ZAdd(ctx context.Context, key string, members ...ports.ScoredMember) error {
	if len(members) == 0 {
		return nil
	}
	parts := []string{"zadd", key}
	for _, m := range members {
		parts = append(parts, formatScore(m.Score), m.Member)
	}
	_, err := c.call(ctx, parts...)
	return err
}

// ZRange returns members in rank order [start, stop].
func (c *Client) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	raw, err := c.call(ctx, "zrange", key,
		strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10))
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("upstash zrange %q: unexpected result %s", key, raw)
	}
	return out, nil
}

// ZRangeWithScores returns members with scores; the REST API interleaves
// them as [member, score, member, score, ...].
func (c *Client) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ports.ScoredMember, error) {
	raw, err := c.call(ctx, "zrange", key,
		strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10), "WITHSCORES")
	if err != nil {
		return nil, err
	}
	var flat []string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("upstash zrange %q: unexpected result %s", key, raw)
	}
	if len(flat)%2 != 0 {
		return nil, fmt.Errorf("upstash zrange %q: odd WITHSCORES reply length %d", key, len(flat))
	}
	out := make([]ports.ScoredMember, 0, len(flat)/2)
	for i := 0; i < len(flat); i += 2 {
		score, err := strconv.ParseFloat(flat[i+1], 64)
		if err != nil {
			return nil, fmt.Errorf("upstash zrange %q: bad score %q: %w", key, flat[i+1], err)
		}
		out = append(out, ports.ScoredMember{Member: flat[i], Score: score})
	}
	return out, nil
}

// ZRemRangeByRank removes members in rank order [start, stop].
func (c *Client) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	_, err := c.call(ctx, "zremrangebyrank", key,
		strconv.FormatInt(start, 10), strconv.FormatInt(stop, 10))
	return err
}

// decodeString reads a string result, reporting false on null.
func decodeString(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// some commands answer with bare numbers; normalize to string
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		return n.String(), true
	}
	return s, true
}

// formatScore renders a score the way Redis prints integers when possible.
func formatScore(score float64) string {
	if score == math.Trunc(score) {
		return strconv.FormatInt(int64(score), 10)
	}
	return strconv.FormatFloat(score, 'f', -1, 64)
}
