package adminclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientResolveSendsQuery(t *testing.T) {
	t.Parallel()

	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/resolve", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"query":"lamp 1","count":1,"items":[{"phrase":"lamp 1","source":"catalog","entity_ids":["light.lamp_1"]}]}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	response, err := client.Resolve(context.Background(), " lamp 1 ")
	require.NoError(t, err)
	assert.Equal(t, "lamp 1", gotQuery)
	assert.Equal(t, 1, response.Count)
	require.Len(t, response.Items, 1)
	assert.Equal(t, []string{"light.lamp_1"}, response.Items[0].EntityIDs)
}

func TestClientCommandsEncodesFilters(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		assert.Equal(t, "true", query.Get("failed"))
		assert.Equal(t, "5", query.Get("limit"))
		assert.Equal(t, "light.lamp_2", query.Get("entity_id"))
		_, _ = w.Write([]byte(`{"count":1,"items":[{"id":"cmd_1","entity_id":"light.lamp_2","command":"turn_on","status":500}]}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	items, err := client.Commands(context.Background(), ListCommandsInput{EntityID: "light.lamp_2", FailedOnly: true, Limit: 5})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 500, items[0].Status)
	assert.False(t, items[0].Succeeded)
}

func TestClientSurfacesAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable","error":"heartbeat is disabled"}`))
	}))
	defer server.Close()

	client := &Client{baseURL: server.URL, http: server.Client()}
	_, err := client.Heartbeat(context.Background())
	require.EqualError(t, err, "heartbeat is disabled")
}

func TestNewValidatesURLAndTimeout(t *testing.T) {
	t.Parallel()

	_, err := New("", time.Second)
	require.Error(t, err)

	client, err := New("http://127.0.0.1:8080/", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080", client.baseURL)
	assert.Equal(t, 10*time.Second, client.http.Timeout)
}

func TestBaseURLForAddr(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		":8080":                "http://127.0.0.1:8080",
		"0.0.0.0:9000":         "http://0.0.0.0:9000",
		"https://bridge.local": "https://bridge.local",
	}
	for addr, want := range cases {
		assert.Equal(t, want, BaseURLForAddr(addr), "addr %q", addr)
	}
}
