package upstash

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kosaiyno/iryspredict/internal/domain"
	"github.com/kosaiyno/iryspredict/internal/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, "test-token")
	require.NoError(t, err)
	return c
}

func TestClient_Get(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get/lb:0xabc:points", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"result":"42"}`)
	})

	v, err := c.Get(context.Background(), "lb:0xabc:points")
	require.NoError(t, err)
	assert.Equal(t, "42", v)
}

func TestClient_Get_Missing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":null}`)
	})

	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestClient_Set_WithTTL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/set/k/v/EX/604800", r.URL.Path)
		fmt.Fprint(w, `{"result":"OK"}`)
	})

	err := c.Set(context.Background(), "k", "v", 7*24*time.Hour)
	assert.NoError(t, err)
}

func TestClient_SetNX(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/set/k/v/NX", r.URL.Path)
		if calls == 1 {
			fmt.Fprint(w, `{"result":"OK"}`)
		} else {
			fmt.Fprint(w, `{"result":null}`)
		}
	})

	ok, err := c.SetNX(context.Background(), "k", "v", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.SetNX(context.Background(), "k", "v", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_IncrBy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/incrby/points/-7", r.URL.Path)
		fmt.Fprint(w, `{"result":35}`)
	})

	n, err := c.IncrBy(context.Background(), "points", -7)
	require.NoError(t, err)
	assert.Equal(t, int64(35), n)
}

func TestClient_ZAdd(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/zadd/lb:z:points/120/0xabc", r.URL.Path)
		fmt.Fprint(w, `{"result":1}`)
	})

	err := c.ZAdd(context.Background(), "lb:z:points",
		ports.ScoredMember{Member: "0xabc", Score: 120})
	assert.NoError(t, err)
}

func TestClient_ZRangeWithScores(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/zrange/lb:z:points/-2/-1/WITHSCORES", r.URL.Path)
		fmt.Fprint(w, `{"result":["0xaaa","10","0xbbb","25"]}`)
	})

	got, err := c.ZRangeWithScores(context.Background(), "lb:z:points", -2, -1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ports.ScoredMember{Member: "0xaaa", Score: 10}, got[0])
	assert.Equal(t, ports.ScoredMember{Member: "0xbbb", Score: 25}, got[1])
}

func TestClient_RetriesServerErrors(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"result":"ok"}`)
	})

	v, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 3, calls)
}

func TestClient_UnavailableAfterRetries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := c.Get(context.Background(), "k")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestClient_CommandError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"WRONGTYPE Operation against a key holding the wrong kind of value"}`)
	})

	_, err := c.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrNotFound)
}

func TestClient_EscapesKeySegments(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// EscapedPath preserves the encoded member payload
		assert.Contains(t, r.URL.EscapedPath(), "%7B%22roundId%22:12%7D")
		fmt.Fprint(w, `{"result":1}`)
	})

	err := c.ZAdd(context.Background(), "lb:hist:0xabc",
		ports.ScoredMember{Member: `{"roundId":12}`, Score: 1})
	assert.NoError(t, err)
}
