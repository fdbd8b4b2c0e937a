package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dwizi/hass-bridge/internal/gateway"
)

type discordMessageCreate struct {
	ID        string        `json:"id"`
	ChannelID string        `json:"channel_id"`
	GuildID   string        `json:"guild_id"`
	Content   string        `json:"content"`
	Author    discordAuthor `json:"author"`
}

type discordAuthor struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Bot        bool   `json:"bot"`
}

// handleMessageCreate runs on the read loop, so messages are answered one at
// a time in arrival order.
func (c *Connector) handleMessageCreate(ctx context.Context, message discordMessageCreate) error {
	if message.Author.Bot {
		return nil
	}
	if c.channelID != "" && message.ChannelID != c.channelID {
		return nil
	}
	text := strings.TrimSpace(message.Content)
	if text == "" {
		return nil
	}

	output, err := c.gateway.HandleMessage(ctx, gateway.MessageInput{
		Connector:   "discord",
		ExternalID:  message.ChannelID,
		DisplayName: discordDisplayName(message.Author),
		FromUserID:  message.Author.ID,
		Text:        text,
	})
	if err != nil {
		return err
	}
	reply := strings.TrimSpace(output.Reply)
	if !output.Handled || reply == "" {
		return nil
	}
	c.logger.Info("discord command handled",
		"channel_id", message.ChannelID,
		"message_id", message.ID,
		"user_id", message.Author.ID,
		"reply_len", len(reply),
	)
	return c.sendChannelMessage(ctx, message.ChannelID, reply)
}

func (c *Connector) sendChannelMessage(ctx context.Context, channelID, content string) error {
	endpoint := fmt.Sprintf("%s/channels/%s/messages", c.apiBase, channelID)
	payload, err := json.Marshal(map[string]string{"content": clipDiscordMessage(content)})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("User-Agent", "hass-bridge/0.1")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("discord send message failed: status=%d body=%s", res.StatusCode, string(body))
	}
	return nil
}

// clipDiscordMessage keeps replies under the API limit, counted in runes.
func clipDiscordMessage(content string) string {
	trimmed := strings.TrimSpace(content)
	runes := []rune(trimmed)
	if len(runes) <= maxMessageLength {
		return trimmed
	}
	return strings.TrimSpace(string(runes[:maxMessageLength-3])) + "..."
}

func discordDisplayName(author discordAuthor) string {
	if name := strings.TrimSpace(author.GlobalName); name != "" {
		return name
	}
	if name := strings.TrimSpace(author.Username); name != "" {
		return name
	}
	return strings.TrimSpace(author.ID)
}
