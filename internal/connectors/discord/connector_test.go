package discord

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwizi/hass-bridge/internal/gateway"
	"github.com/dwizi/hass-bridge/internal/heartbeat"
)

type fakeCommandGateway struct {
	mu    sync.Mutex
	calls []gateway.MessageInput
	reply string
}

func (f *fakeCommandGateway) HandleMessage(ctx context.Context, input gateway.MessageInput) (gateway.MessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, input)
	if f.reply == "" {
		return gateway.MessageOutput{}, nil
	}
	return gateway.MessageOutput{Handled: true, Reply: f.reply}, nil
}

func (f *fakeCommandGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHandleMessageCreateRunsGateway(t *testing.T) {
	commands := &fakeCommandGateway{reply: "✅ Turn On `kitchen` (`light.kitchen`) requested."}
	var sentBody, sentAuth, sentPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		sentAuth = req.Header.Get("Authorization")
		sentPath = req.URL.Path
		body, _ := io.ReadAll(req.Body)
		sentBody = string(body)
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "msg-2"})
	}))
	defer server.Close()

	connector := New("bot-token", server.URL, "wss://discord.test/ws", "chan-1", commands, quietLogger())
	err := connector.handleMessageCreate(context.Background(), discordMessageCreate{
		ID:        "msg-1",
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		Content:   "  turn on kitchen ",
		Author: discordAuthor{
			ID:         "user-2",
			Username:   "operator",
			GlobalName: "Operator Prime",
		},
	})
	require.NoError(t, err)
	require.Len(t, commands.calls, 1)
	call := commands.calls[0]
	assert.Equal(t, "turn on kitchen", call.Text)
	assert.Equal(t, "user-2", call.FromUserID)
	assert.Equal(t, "Operator Prime", call.DisplayName)
	assert.Equal(t, "Bot bot-token", sentAuth)
	assert.Equal(t, "/channels/chan-1/messages", sentPath)
	assert.Contains(t, sentBody, "requested.")
}

func TestHandleMessageCreateFiltersMessages(t *testing.T) {
	commands := &fakeCommandGateway{reply: "should not be sent"}
	connector := New("bot-token", "http://127.0.0.1:1", "wss://discord.test/ws", "chan-1", commands, quietLogger())

	messages := []discordMessageCreate{
		{ChannelID: "chan-1", Content: "turn on kitchen", Author: discordAuthor{ID: "bot-id", Bot: true}},
		{ChannelID: "chan-2", Content: "turn on kitchen", Author: discordAuthor{ID: "user-1"}},
		{ChannelID: "chan-1", Content: "   ", Author: discordAuthor{ID: "user-1"}},
	}
	for _, message := range messages {
		require.NoError(t, connector.handleMessageCreate(context.Background(), message))
	}
	assert.Empty(t, commands.calls)
}

func TestHandleMessageCreateSkipsUnhandledReply(t *testing.T) {
	commands := &fakeCommandGateway{}
	connector := New("bot-token", "http://127.0.0.1:1", "wss://discord.test/ws", "chan-1", commands, quietLogger())
	err := connector.handleMessageCreate(context.Background(), discordMessageCreate{
		ChannelID: "chan-1",
		Content:   "just chatting",
		Author:    discordAuthor{ID: "user-1"},
	})
	assert.NoError(t, err, "unhandled message should not be sent")
}

func TestClipDiscordMessage(t *testing.T) {
	long := strings.Repeat("é", 2500)
	clipped := clipDiscordMessage(long)
	assert.Len(t, []rune(clipped), maxMessageLength)
	assert.True(t, strings.HasSuffix(clipped, "..."))
	assert.Equal(t, "short", clipDiscordMessage("  short  "))
}

func TestDiscordDisplayName(t *testing.T) {
	assert.Equal(t, "Global", discordDisplayName(discordAuthor{ID: "1", Username: "user", GlobalName: "Global"}))
	assert.Equal(t, "user", discordDisplayName(discordAuthor{ID: "1", Username: "user"}))
	assert.Equal(t, "1", discordDisplayName(discordAuthor{ID: "1"}))
}

func TestStartDisabledWithoutToken(t *testing.T) {
	registry := heartbeat.NewRegistry()
	connector := New("", "", "", "chan-1", &fakeCommandGateway{}, quietLogger())
	connector.SetHeartbeatReporter(registry)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, connector.Start(ctx))
	snapshot := registry.Snapshot(time.Minute)
	require.Len(t, snapshot.Components, 1)
	assert.Equal(t, heartbeat.StateDisabled, snapshot.Components[0].State)
}

func TestGatewaySessionDeliversChannelMessages(t *testing.T) {
	posted := make(chan string, 4)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, _ := io.ReadAll(req.Body)
		posted <- string(body)
		w.WriteHeader(http.StatusOK)
	}))
	defer api.Close()

	identified := make(chan map[string]any, 1)
	upgrader := websocket.Upgrader{}
	ws := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{"op": 10, "d": map[string]any{"heartbeat_interval": 45000}})

		var identify map[string]any
		if err := conn.ReadJSON(&identify); err != nil {
			return
		}
		identified <- identify

		events := []map[string]any{
			{"op": 0, "t": "READY", "s": 1, "d": map[string]any{"user": map[string]any{"id": "bot-1"}}},
			{"op": 0, "t": "MESSAGE_CREATE", "s": 2, "d": map[string]any{
				"id": "m1", "channel_id": "other", "content": "turn on kitchen",
				"author": map[string]any{"id": "u1", "username": "alice"},
			}},
			{"op": 0, "t": "MESSAGE_CREATE", "s": 3, "d": map[string]any{
				"id": "m2", "channel_id": "chan-1", "content": "turn on kitchen",
				"author": map[string]any{"id": "u1", "username": "alice"},
			}},
		}
		for _, event := range events {
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
		// Hold the session open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer ws.Close()

	commands := &fakeCommandGateway{reply: "✅ done"}
	registry := heartbeat.NewRegistry()
	wsURL := "ws" + strings.TrimPrefix(ws.URL, "http")
	connector := New("bot-token", api.URL, wsURL, "chan-1", commands, quietLogger())
	connector.SetHeartbeatReporter(registry)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- connector.Start(ctx) }()

	select {
	case identify := <-identified:
		payload, _ := identify["d"].(map[string]any)
		assert.Equal(t, float64(2), identify["op"])
		assert.Equal(t, "bot-token", payload["token"])
		intents, _ := payload["intents"].(float64)
		assert.NotZero(t, int(intents)&discordIntentMessageContents, "message content intent, got %v", intents)
	case <-time.After(5 * time.Second):
		cancel()
		require.FailNow(t, "timed out waiting for identify")
	}

	select {
	case body := <-posted:
		assert.Contains(t, body, "done")
	case <-time.After(5 * time.Second):
		cancel()
		require.FailNow(t, "timed out waiting for channel reply")
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "connector did not stop")
	}
	assert.Equal(t, 1, commands.callCount())
	snapshot := registry.Snapshot(time.Minute)
	require.Len(t, snapshot.Components, 1)
	assert.Equal(t, heartbeat.StateStopped, snapshot.Components[0].State)
}
