package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dwizi/hass-bridge/internal/bridgeerr"
	"github.com/dwizi/hass-bridge/internal/directory"
	"github.com/dwizi/hass-bridge/internal/dispatcher"
)

type Directory interface {
	UpsertAlias(name, entityID string) (directory.Alias, error)
	DeleteAlias(name string) (bool, error)
	Aliases() []directory.Alias
	SetGroup(name string, members []string) (directory.Group, error)
	AppendGroup(name string, members []string) (directory.Group, error)
	DeleteGroup(name string) (bool, error)
	LookupGroup(name string) (directory.Group, bool)
	Groups() []directory.Group
}

type Catalog interface {
	Refresh(ctx context.Context) error
}

type Dispatcher interface {
	Dispatch(ctx context.Context, action dispatcher.Action, rawPhrase string, issuer dispatcher.Issuer) dispatcher.Report
}

type Service struct {
	directory  Directory
	catalog    Catalog
	dispatcher Dispatcher
	allowed    map[string]struct{}
	logger     *slog.Logger
}

type MessageInput struct {
	Connector   string
	ExternalID  string
	DisplayName string
	FromUserID  string
	Text        string
}

type MessageOutput struct {
	Handled bool
	Reply   string
}

// New builds the gateway. An empty allowedUserIDs list leaves admin commands
// open to everyone.
func New(directory Directory, catalog Catalog, dispatcher Dispatcher, allowedUserIDs []string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	allowed := make(map[string]struct{}, len(allowedUserIDs))
	for _, id := range allowedUserIDs {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = struct{}{}
		}
	}
	return &Service{
		directory:  directory,
		catalog:    catalog,
		dispatcher: dispatcher,
		allowed:    allowed,
		logger:     logger,
	}
}

func (s *Service) HandleMessage(ctx context.Context, input MessageInput) (MessageOutput, error) {
	command := Parse(input.Text)
	if command.Kind == KindIgnore {
		return MessageOutput{}, nil
	}
	if err := s.authorize(input.FromUserID, command.Scope); err != nil {
		s.logger.Warn("admin command denied",
			"connector", input.Connector,
			"user_id", input.FromUserID,
			"scope", command.Scope.String(),
			"error", err,
		)
		return reply(denialMessage(command.Scope)), nil
	}

	switch command.Kind {
	case KindUsage:
		return reply(command.Usage), nil
	case KindListAliases:
		return reply(s.listAliases()), nil
	case KindAddAlias:
		return reply(s.addAlias(command)), nil
	case KindDeleteAlias:
		return reply(s.deleteAlias(command)), nil
	case KindListGroups:
		return reply(s.listGroups()), nil
	case KindShowGroup:
		return reply(s.showGroup(command)), nil
	case KindSetGroup, KindAppendGroup:
		return reply(s.writeGroup(command)), nil
	case KindDeleteGroup:
		return reply(s.deleteGroup(command)), nil
	case KindReload:
		return reply(s.reload(ctx)), nil
	case KindSwitch:
		if s.dispatcher == nil {
			return MessageOutput{}, fmt.Errorf("dispatcher is not configured")
		}
		issuer := dispatcher.Issuer{ID: input.FromUserID, Name: input.DisplayName}
		report := s.dispatcher.Dispatch(ctx, command.Action, command.Phrase, issuer)
		return reply(report.String()), nil
	}
	return MessageOutput{}, nil
}

// Authorized reports whether userID may run admin commands.
func (s *Service) Authorized(userID string) bool {
	if len(s.allowed) == 0 {
		return true
	}
	_, ok := s.allowed[strings.TrimSpace(userID)]
	return ok
}

// authorize returns an error wrapping bridgeerr.ErrAccessDenied when an
// admin scope is used by someone outside the allowlist.
func (s *Service) authorize(userID string, scope Scope) error {
	if scope == ScopeNone || s.Authorized(userID) {
		return nil
	}
	return fmt.Errorf("%w: user %q may not manage %s", bridgeerr.ErrAccessDenied, userID, scope.String())
}

func (s *Service) reload(ctx context.Context) string {
	if s.catalog == nil {
		return "⚠️ Failed to rebuild index: `no catalog configured`"
	}
	if err := s.catalog.Refresh(ctx); err != nil {
		s.logger.Error("catalog reload failed", "error", err)
		return fmt.Sprintf("⚠️ Failed to rebuild index: `%v`", err)
	}
	return "🔄 Rebuilt HA entity index."
}

func (s Scope) String() string {
	switch s {
	case ScopeAliases:
		return "aliases"
	case ScopeGroups:
		return "groups"
	case ScopeReload:
		return "reload"
	default:
		return "none"
	}
}

func denialMessage(scope Scope) string {
	switch scope {
	case ScopeAliases:
		return "⛔ You are not authorized to manage aliases."
	case ScopeGroups:
		return "⛔ You are not authorized to manage groups."
	default:
		return "⛔ Not authorized."
	}
}

func reply(text string) MessageOutput {
	return MessageOutput{Handled: true, Reply: text}
}
