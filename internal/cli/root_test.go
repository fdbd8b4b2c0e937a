package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeHomeAssistant(t *testing.T, webhookStatus int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/states":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"entity_id": "light.lamp_1", "attributes": map[string]any{"friendly_name": "Lamp 1"}},
				{"entity_id": "light.lamp_2", "attributes": map[string]any{"friendly_name": "Lamp 2"}},
			})
		case strings.HasPrefix(r.URL.Path, "/api/webhook/"):
			calls.Add(1)
			w.WriteHeader(webhookStatus)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func setBridgeEnv(t *testing.T, haURL string) {
	t.Helper()
	t.Setenv("HASS_BRIDGE_DATA_DIR", t.TempDir())
	t.Setenv("HASS_BRIDGE_DIRECTORY_PATH", "")
	t.Setenv("HASS_BRIDGE_DB_PATH", "")
	t.Setenv("HASS_BRIDGE_HA_BASE_URL", haURL)
	t.Setenv("HASS_BRIDGE_HA_TOKEN", "token")
	t.Setenv("HASS_BRIDGE_ALLOWED_USER_IDS", "")
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	root := NewRoot(quietLogger())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.Execute(), "execute %v:\n%s", args, out.String())
	return out.String()
}

func TestRootIncludesExpectedSubcommands(t *testing.T) {
	root := NewRoot(quietLogger())
	for _, name := range []string{"serve", "exec", "resolve", "history", "status", "version"} {
		_, _, err := root.Find([]string{name})
		assert.NoError(t, err, "subcommand %q", name)
	}
}

func TestExecSwitchThenHistory(t *testing.T) {
	var calls atomic.Int32
	server := fakeHomeAssistant(t, http.StatusOK, &calls)
	setBridgeEnv(t, server.URL)

	out := run(t, "exec", "turn", "on", "lamp", "1-2")
	assert.Contains(t, out, "✅ Turn On `lamp 1` (`light.lamp_1`) requested.")
	assert.Contains(t, out, "✅ Turn On `lamp 2` (`light.lamp_2`) requested.")
	assert.Equal(t, int32(2), calls.Load())

	out = run(t, "history", "--limit", "5")
	assert.Equal(t, 2, strings.Count(out, "turn_on"), out)
	assert.Contains(t, out, "light.lamp_1")

	assert.Contains(t, run(t, "history", "--failed"), "no commands recorded")
}

func TestExecAdminCommandPersistsAlias(t *testing.T) {
	var calls atomic.Int32
	server := fakeHomeAssistant(t, http.StatusOK, &calls)
	setBridgeEnv(t, server.URL)

	assert.Contains(t, run(t, "exec", "!alias add reading light.lamp_2"), "reading")
	assert.Contains(t, run(t, "resolve", "Reading"), "Reading (alias) -> light.lamp_2")
	assert.Zero(t, calls.Load())
}

func TestExecIgnoresPlainText(t *testing.T) {
	var calls atomic.Int32
	server := fakeHomeAssistant(t, http.StatusOK, &calls)
	setBridgeEnv(t, server.URL)

	assert.Contains(t, run(t, "exec", "good morning"), "ignored")
}

func TestResolveReportsAmbiguity(t *testing.T) {
	var calls atomic.Int32
	server := fakeHomeAssistant(t, http.StatusOK, &calls)
	setBridgeEnv(t, server.URL)

	out := run(t, "resolve", "lamp")
	assert.Contains(t, out, "lamp -> ambiguous:")
	assert.Contains(t, out, "Lamp 2 (light.lamp_2)")
}

func TestStatusReadsRunningAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/heartbeat":
			_, _ = w.Write([]byte(`{"overall":"degraded","components":[{"name":"connector:discord","state":"degraded","message":"gateway session error","error":"EOF"}]}`))
		case "/api/v1/catalog":
			_, _ = w.Write([]byte(`{"entities":12,"last_refresh":{"trigger":"schedule","error":"catalog fetch failed"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	out := run(t, "status", "--api", server.URL)
	for _, want := range []string{"overall: degraded", "connector:discord", "(EOF)", "catalog: 12 entities", "last schedule refresh failed"} {
		assert.Contains(t, out, want)
	}
}

func TestResolveRejectsOversizedRange(t *testing.T) {
	var calls atomic.Int32
	server := fakeHomeAssistant(t, http.StatusOK, &calls)
	setBridgeEnv(t, server.URL)

	root := NewRoot(quietLogger())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"resolve", "lamp", "1-500"})
	err := root.Execute()
	require.Error(t, err, out.String())
	assert.Contains(t, err.Error(), "numeric range too wide")
	assert.Zero(t, calls.Load())
}
