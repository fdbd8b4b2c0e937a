package dispatcher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dwizi/hass-bridge/internal/bridgeerr"
	"github.com/dwizi/hass-bridge/internal/homeassistant"
	"github.com/dwizi/hass-bridge/internal/names"
	"github.com/dwizi/hass-bridge/internal/resolver"
	"github.com/dwizi/hass-bridge/internal/store"
)

// maxSuggestions caps the close matches listed for an unresolved phrase.
const maxSuggestions = 5

type Action string

const (
	ActionTurnOn  Action = "turn on"
	ActionTurnOff Action = "turn off"
)

// Command maps the chat action onto the webhook command name.
func (a Action) Command() string {
	if a == ActionTurnOff {
		return homeassistant.CommandTurnOff
	}
	return homeassistant.CommandTurnOn
}

func (a Action) Title() string {
	if a == ActionTurnOff {
		return "Turn Off"
	}
	return "Turn On"
}

type Issuer struct {
	ID   string
	Name string
}

type Resolver interface {
	ResolveTarget(phrase string) resolver.Resolution
}

type Sender interface {
	SendCommand(ctx context.Context, command homeassistant.Command) (int, error)
}

type CommandLog interface {
	RecordCommand(ctx context.Context, input store.RecordCommandInput) (store.CommandRecord, error)
}

// Outcome is the result of one outbound command.
type Outcome struct {
	Phrase   string
	EntityID string
	Status   int
	Err      error
}

func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Status == http.StatusOK
}

type Report struct {
	Action    Action
	Successes []string
	Failures  []string
	Outcomes  []Outcome
}

// String renders the chat reply: successes first, then failures.
func (r Report) String() string {
	lines := make([]string, 0, len(r.Successes)+len(r.Failures))
	lines = append(lines, r.Successes...)
	lines = append(lines, r.Failures...)
	if len(lines) == 0 {
		return "⚠️ Nothing to do."
	}
	return strings.Join(lines, "\n")
}

type Dispatcher struct {
	resolver Resolver
	sender   Sender
	log      CommandLog
	logger   *slog.Logger
}

func New(resolver Resolver, sender Sender, log CommandLog, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		resolver: resolver,
		sender:   sender,
		log:      log,
		logger:   logger,
	}
}

// Dispatch expands rawPhrase, resolves every resulting phrase and sends one
// command per entity id. Calls run sequentially and are never retried.
func (d *Dispatcher) Dispatch(ctx context.Context, action Action, rawPhrase string, issuer Issuer) Report {
	report := Report{Action: action}
	phrases, err := names.ExpandNumericSuffix(rawPhrase)
	if err != nil {
		report.Failures = append(report.Failures, fmt.Sprintf("⚠️ `%s`: %v. Split it into smaller commands.", strings.TrimSpace(rawPhrase), err))
		return report
	}
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		resolution := d.resolver.ResolveTarget(phrase)
		if len(resolution.EntityIDs) == 0 {
			report.Failures = append(report.Failures, unresolvedLine(phrase, resolution))
			continue
		}
		for _, entityID := range resolution.EntityIDs {
			outcome := d.send(ctx, action, phrase, entityID, issuer)
			report.Outcomes = append(report.Outcomes, outcome)
			switch {
			case outcome.Succeeded():
				report.Successes = append(report.Successes, fmt.Sprintf("✅ %s `%s` (`%s`) requested.", action.Title(), phrase, entityID))
			case outcome.Err != nil:
				report.Failures = append(report.Failures, fmt.Sprintf("⚠️ `%s` (`%s`) → HA webhook error: %v", phrase, entityID, outcome.Err))
			default:
				report.Failures = append(report.Failures, fmt.Sprintf("⚠️ `%s` (`%s`) → HA webhook HTTP %d", phrase, entityID, outcome.Status))
			}
		}
	}
	return report
}

func (d *Dispatcher) send(ctx context.Context, action Action, phrase, entityID string, issuer Issuer) Outcome {
	outcome := Outcome{Phrase: phrase, EntityID: entityID}
	if d.sender == nil {
		outcome.Err = fmt.Errorf("%w: no backend configured", bridgeerr.ErrOutboundCommand)
	} else {
		status, err := d.sender.SendCommand(ctx, homeassistant.Command{
			Command: action.Command(),
			Target:  entityID,
			User:    issuer.Name,
		})
		outcome.Status = status
		if err != nil {
			outcome.Err = fmt.Errorf("%w: %v", bridgeerr.ErrOutboundCommand, err)
		}
	}
	if !outcome.Succeeded() {
		d.logger.Warn("outbound command failed",
			"entity_id", entityID,
			"command", action.Command(),
			"status", outcome.Status,
			"error", outcome.Err,
		)
	}
	d.record(ctx, action, outcome, issuer)
	return outcome
}

func (d *Dispatcher) record(ctx context.Context, action Action, outcome Outcome, issuer Issuer) {
	if d.log == nil {
		return
	}
	errorText := ""
	if outcome.Err != nil {
		errorText = outcome.Err.Error()
	}
	if _, err := d.log.RecordCommand(ctx, store.RecordCommandInput{
		IssuerID:   issuer.ID,
		IssuerName: issuer.Name,
		Phrase:     outcome.Phrase,
		EntityID:   outcome.EntityID,
		Command:    action.Command(),
		Status:     outcome.Status,
		Succeeded:  outcome.Succeeded(),
		Error:      errorText,
	}); err != nil {
		d.logger.Error("command log append failed", "error", err, "entity_id", outcome.EntityID)
	}
}

func unresolvedLine(phrase string, resolution resolver.Resolution) string {
	if len(resolution.Candidates) == 0 {
		return fmt.Sprintf("❓ `%s` → no match in Home Assistant.", phrase)
	}
	candidates := resolution.Candidates
	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	lines := make([]string, 0, len(candidates)+1)
	lines = append(lines, fmt.Sprintf("❓ `%s` → close matches:", phrase))
	for _, candidate := range candidates {
		lines = append(lines, fmt.Sprintf("- `%s` (`%s`)", candidate.Label, candidate.ID))
	}
	return strings.Join(lines, "\n")
}
