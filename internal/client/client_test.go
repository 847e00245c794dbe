package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rshade/finboard/internal/client"
	"github.com/rshade/finboard/internal/engine/cache"
	"github.com/rshade/finboard/internal/session"
)

func newClient(t *testing.T, handler http.HandlerFunc, opts ...client.Option) *client.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := client.New(client.Config{BaseURL: srv.URL, Token: "secret"}, opts...)
	require.NoError(t, err)
	return c
}

func TestNew_Validation(t *testing.T) {
	_, err := client.New(client.Config{})
	require.ErrorIs(t, err, client.ErrInvalidConfig)

	_, err = client.New(client.Config{BaseURL: "not a url"})
	require.ErrorIs(t, err, client.ErrInvalidConfig)

	c, err := client.New(client.Config{BaseURL: "https://example.test/"})
	require.NoError(t, err)
	assert.Equal(t, client.DefaultEndpoints(), c.Endpoints())
}

func TestSend_GetEncodesQueryAndAuth(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/things", r.URL.Path)
		assert.Equal(t, "A,B", r.URL.Query().Get("symbols"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	resp := c.Send(context.Background(), "/api/things", map[string]any{"symbols": []string{"A", "B"}}, "get")
	require.NoError(t, resp.Err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Data))
}

func TestSend_PostEncodesJSONBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string][]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"A"}, body["symbols"])
		w.WriteHeader(http.StatusNoContent)
	})

	resp := c.Send(context.Background(), "/x", map[string]any{"symbols": []string{"A"}}, http.MethodPost)
	require.NoError(t, resp.Err)
	assert.Equal(t, "null", string(resp.Data))
}

func TestSend_ErrorStatus(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream down"}`))
	})

	resp := c.Send(context.Background(), "/x", nil, http.MethodGet)
	require.ErrorIs(t, resp.Err, client.ErrRequestFailed)
	assert.Contains(t, resp.Err.Error(), "upstream down")
	assert.Equal(t, http.StatusBadGateway, resp.Status)
	assert.Nil(t, resp.Data)
}

func TestSend_InvalidJSON(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	})

	resp := c.Send(context.Background(), "/x", nil, http.MethodGet)
	require.ErrorIs(t, resp.Err, client.ErrRequestFailed)
}

func TestSend_UnauthorizedPublishesForcedLogout(t *testing.T) {
	bus := session.NewBus(zerolog.Nop())
	t.Cleanup(bus.Close)
	events, unsubscribe := bus.Subscribe(session.SignalForcedLogout)
	t.Cleanup(unsubscribe)

	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, client.WithBus(bus))

	resp := c.Send(context.Background(), "/x", nil, http.MethodGet)
	require.ErrorIs(t, resp.Err, client.ErrUnauthorized)

	select {
	case e := <-events:
		assert.Equal(t, session.SignalForcedLogout, e.Signal)
		assert.Contains(t, e.Reason, "/x")
	case <-time.After(time.Second):
		t.Fatal("forced logout not published")
	}
}

func TestSend_ContextCancelled(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := c.Send(ctx, "/x", nil, http.MethodGet)
	require.ErrorIs(t, resp.Err, context.Canceled)
}

func TestLookupValuations(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/valuation/bulk", r.URL.Path)
		assert.Equal(t, "AAA,BBB", r.URL.Query().Get("symbols"))
		_, _ = w.Write([]byte(`{"data":[
			{"symbol":"AAA","name":"Alpha","current_price":10.5,"estimated_price":"12.25","peg":0.8},
			{"symbol":"BBB","name":"Beta","current_price":20}
		]}`))
	})

	quotes, err := c.LookupValuations(context.Background(), []string{"AAA", "BBB"})
	require.NoError(t, err)
	require.Len(t, quotes, 2)
	assert.Equal(t, "Alpha", quotes[0].Name)
	require.NotNil(t, quotes[0].EstimatedPrice)
	assert.Equal(t, "12.25", quotes[0].EstimatedPrice.String())
	assert.Nil(t, quotes[1].PEG)
}

func TestLookupValuations_Cached(t *testing.T) {
	var hits atomic.Int32
	store, err := cache.Open(t.TempDir(), cache.DefaultTTLSeconds)
	require.NoError(t, err)

	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[{"symbol":"AAA","current_price":1}]`))
	}, client.WithCache(store))

	for range 3 {
		quotes, lookupErr := c.LookupValuations(context.Background(), []string{"AAA"})
		require.NoError(t, lookupErr)
		require.Len(t, quotes, 1)
	}
	assert.Equal(t, int32(1), hits.Load())

	_, err = c.LookupValuations(context.Background(), []string{"BBB"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
}

func TestLookupGrades(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/evaluation/grades", r.URL.Path)
		_, _ = w.Write([]byte(`[{"symbol":"aaa","grade":"A"},{"symbol":"BBB","grade":"S"}]`))
	})

	grades, err := c.LookupGrades(context.Background(), []string{"AAA", "BBB"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"AAA": "A", "BBB": "S"}, grades)
}

func TestLoginInstallsToken(t *testing.T) {
	var lastAuth atomic.Value
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		lastAuth.Store(r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/auth/login":
			_, _ = w.Write([]byte(`{"access_token":"fresh","expires_in":1800}`))
		default:
			_, _ = w.Write([]byte(`{"remaining_seconds":1799}`))
		}
	})

	seconds, err := c.Login(context.Background(), "user", "pw")
	require.NoError(t, err)
	assert.Equal(t, 1800, seconds)
	assert.Equal(t, "fresh", c.Token())

	remaining, err := c.SessionTTL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1799, remaining)
	assert.Equal(t, "Bearer fresh", lastAuth.Load())
}

func TestRefreshSession(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/refresh", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":{"token":"rotated","ttl":3600}}`))
	})

	seconds, err := c.RefreshSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3600, seconds)
	assert.Equal(t, "rotated", c.Token())
}

func TestSessionTTL_Missing(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"unrelated":1}`))
	})

	_, err := c.SessionTTL(context.Background())
	require.ErrorIs(t, err, client.ErrRequestFailed)
}

func TestCheckCompatibility(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		constraint string
		wantErr    error
		wantParse  bool
	}{
		{name: "object satisfied", body: `{"version":"2.3.1"}`, constraint: ">= 2.1, < 3"},
		{name: "plain string", body: `"v2.1.0"`, constraint: "^2"},
		{name: "too old", body: `{"version":"1.9.0"}`, constraint: ">= 2", wantErr: client.ErrIncompatibleServer},
		{name: "garbage", body: `{"version":"banana"}`, constraint: ">= 2", wantParse: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			v, err := c.CheckCompatibility(context.Background(), tt.constraint)
			switch {
			case tt.wantErr != nil:
				require.ErrorIs(t, err, tt.wantErr)
				require.NotNil(t, v)
			case tt.wantParse:
				require.Error(t, err)
			default:
				require.NoError(t, err)
				assert.NotNil(t, v)
			}
		})
	}
}

func TestCheckCompatibility_BadConstraint(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`"1.0.0"`))
	})
	_, err := c.CheckCompatibility(context.Background(), "not a constraint ~~")
	require.Error(t, err)
}
