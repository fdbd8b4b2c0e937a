package discord

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dwizi/hass-bridge/internal/gateway"
	"github.com/dwizi/hass-bridge/internal/heartbeat"
)

const (
	componentName = "connector:discord"

	discordIntentGuilds          = 1 << 0
	discordIntentGuildMessages   = 1 << 9
	discordIntentMessageContents = 1 << 15

	maxMessageLength = 2000
	reconnectDelay   = 2 * time.Second
)

type CommandGateway interface {
	HandleMessage(ctx context.Context, input gateway.MessageInput) (gateway.MessageOutput, error)
}

// Connector holds one gateway session at a time and answers messages posted
// in a single channel.
type Connector struct {
	token      string
	apiBase    string
	gatewayURL string
	channelID  string
	gateway    CommandGateway
	httpClient *http.Client
	logger     *slog.Logger
	reporter   heartbeat.Reporter
	botUserID  string
}

type Option func(*Connector)

func WithHTTPClient(client *http.Client) Option {
	return func(connector *Connector) {
		if client != nil {
			connector.httpClient = client
		}
	}
}

func New(token, apiBase, gatewayURL, channelID string, commandGateway CommandGateway, logger *slog.Logger, opts ...Option) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://discord.com/api/v10"
	}
	if strings.TrimSpace(gatewayURL) == "" {
		gatewayURL = "wss://gateway.discord.gg/?v=10&encoding=json"
	}
	if logger == nil {
		logger = slog.Default()
	}
	connector := &Connector{
		token:      strings.TrimSpace(token),
		apiBase:    strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		gatewayURL: strings.TrimSpace(gatewayURL),
		channelID:  strings.TrimSpace(channelID),
		gateway:    commandGateway,
		httpClient: &http.Client{Timeout: 12 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(connector)
		}
	}
	return connector
}

func (c *Connector) Name() string {
	return "discord"
}

func (c *Connector) SetHeartbeatReporter(reporter heartbeat.Reporter) {
	c.reporter = reporter
}
