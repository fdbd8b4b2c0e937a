package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	opDispatch       = 0
	opHeartbeat      = 1
	opIdentify       = 2
	opReconnect      = 7
	opInvalidSession = 9
	opHello          = 10
)

type gatewayEnvelope struct {
	Op int             `json:"op"`
	T  string          `json:"t"`
	S  *int64          `json:"s"`
	D  json.RawMessage `json:"d"`
}

type discordHello struct {
	HeartbeatIntervalMS int64 `json:"heartbeat_interval"`
}

type discordReady struct {
	User discordAuthor `json:"user"`
}

// Start runs gateway sessions until ctx is cancelled, reconnecting after a
// short pause whenever a session ends.
func (c *Connector) Start(ctx context.Context) error {
	c.report(func() { c.reporter.Starting(componentName, "starting") })
	if c.token == "" || c.gateway == nil {
		c.report(func() { c.reporter.Disabled(componentName, "token or gateway missing") })
		c.logger.Info("connector disabled, token or gateway missing")
		<-ctx.Done()
		return nil
	}

	c.logger.Info("connector started", "mode", "gateway", "channel_id", c.channelID)
	for {
		err := c.runSession(ctx)
		if ctx.Err() != nil {
			c.report(func() { c.reporter.Stopped(componentName, "stopped") })
			c.logger.Info("connector stopped")
			return nil
		}
		c.report(func() { c.reporter.Degrade(componentName, "gateway session error", err) })
		c.logger.Error("discord session ended, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			c.report(func() { c.reporter.Stopped(componentName, "stopped") })
			c.logger.Info("connector stopped")
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Connector) runSession(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.gatewayURL, nil)
	if err != nil {
		return fmt.Errorf("dial discord gateway: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the caller cancels.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	interval, err := readHello(conn)
	if err != nil {
		return err
	}

	var (
		writeMu  sync.Mutex
		sequence atomic.Int64
	)
	if err := c.sendIdentify(conn, &writeMu); err != nil {
		return err
	}
	c.report(func() { c.reporter.Beat(componentName, "gateway session established") })

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go c.heartbeatLoop(heartbeatCtx, conn, &writeMu, &sequence, interval)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read gateway message: %w", err)
		}
		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			c.logger.Error("decode gateway envelope failed", "error", err)
			continue
		}
		if envelope.S != nil {
			sequence.Store(*envelope.S)
		}

		switch envelope.Op {
		case opDispatch:
			c.report(func() { c.reporter.Beat(componentName, "gateway event received") })
			c.handleDispatch(ctx, envelope)
		case opHeartbeat:
			if err := sendHeartbeat(conn, &writeMu, sequence.Load()); err != nil {
				return err
			}
		case opReconnect:
			return fmt.Errorf("gateway requested reconnect")
		case opInvalidSession:
			return fmt.Errorf("gateway invalid session")
		}
	}
}

func (c *Connector) handleDispatch(ctx context.Context, envelope gatewayEnvelope) {
	switch envelope.T {
	case "READY":
		var ready discordReady
		if err := json.Unmarshal(envelope.D, &ready); err == nil {
			c.botUserID = strings.TrimSpace(ready.User.ID)
			c.logger.Info("discord session ready", "bot_user_id", c.botUserID)
		}
	case "MESSAGE_CREATE":
		var message discordMessageCreate
		if err := json.Unmarshal(envelope.D, &message); err != nil {
			c.logger.Error("decode message create failed", "error", err)
			return
		}
		if err := c.handleMessageCreate(ctx, message); err != nil {
			c.logger.Error("handle discord message failed", "error", err, "message_id", message.ID)
		}
	}
}

func readHello(conn *websocket.Conn) (time.Duration, error) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("read hello: %w", err)
		}
		var envelope gatewayEnvelope
		if err := json.Unmarshal(data, &envelope); err != nil {
			return 0, fmt.Errorf("decode hello payload: %w", err)
		}
		if envelope.Op != opHello {
			continue
		}
		var hello discordHello
		if err := json.Unmarshal(envelope.D, &hello); err != nil {
			return 0, fmt.Errorf("decode hello body: %w", err)
		}
		return time.Duration(hello.HeartbeatIntervalMS) * time.Millisecond, nil
	}
}

func (c *Connector) heartbeatLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, seq *atomic.Int64, interval time.Duration) {
	if interval < time.Second {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sendHeartbeat(conn, writeMu, seq.Load()); err != nil {
				c.logger.Error("heartbeat failed", "error", err)
				return
			}
		}
	}
}

func (c *Connector) sendIdentify(conn *websocket.Conn, writeMu *sync.Mutex) error {
	payload := map[string]any{
		"op": opIdentify,
		"d": map[string]any{
			"token":   c.token,
			"intents": discordIntentGuilds | discordIntentGuildMessages | discordIntentMessageContents,
			"properties": map[string]string{
				"os":      "linux",
				"browser": "hass-bridge",
				"device":  "hass-bridge",
			},
		},
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := conn.WriteJSON(payload); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}
	return nil
}

func sendHeartbeat(conn *websocket.Conn, writeMu *sync.Mutex, seq int64) error {
	writeMu.Lock()
	defer writeMu.Unlock()
	var d any
	if seq > 0 {
		d = seq
	}
	if err := conn.WriteJSON(map[string]any{"op": opHeartbeat, "d": d}); err != nil {
		return fmt.Errorf("send heartbeat: %w", err)
	}
	return nil
}

func (c *Connector) report(fn func()) {
	if c.reporter != nil {
		fn()
	}
}
