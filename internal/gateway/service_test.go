package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwizi/hass-bridge/internal/bridgeerr"
	"github.com/dwizi/hass-bridge/internal/directory"
	"github.com/dwizi/hass-bridge/internal/dispatcher"
)

type fakeCatalog struct {
	err   error
	calls int
}

func (f *fakeCatalog) Refresh(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeDispatcher struct {
	action dispatcher.Action
	phrase string
	issuer dispatcher.Issuer
	calls  int
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, action dispatcher.Action, rawPhrase string, issuer dispatcher.Issuer) dispatcher.Report {
	f.calls++
	f.action = action
	f.phrase = rawPhrase
	f.issuer = issuer
	return dispatcher.Report{Successes: []string{"✅ Turn On `" + rawPhrase + "` (`light.x`) requested."}}
}

type harness struct {
	service    *Service
	directory  *directory.Store
	catalog    *fakeCatalog
	dispatcher *fakeDispatcher
	path       string
}

func newHarness(t *testing.T, allowed ...string) harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "config.json")
	dir := directory.Open(path, logger)
	cat := &fakeCatalog{}
	disp := &fakeDispatcher{}
	return harness{
		service:    New(dir, cat, disp, allowed, logger),
		directory:  dir,
		catalog:    cat,
		dispatcher: disp,
		path:       path,
	}
}

func (h harness) send(t *testing.T, userID, text string) string {
	t.Helper()
	return h.sendFull(t, userID, text).Reply
}

func (h harness) sendFull(t *testing.T, userID, text string) MessageOutput {
	t.Helper()
	output, err := h.service.HandleMessage(context.Background(), MessageInput{
		Connector:   "discord",
		ExternalID:  "chan-1",
		DisplayName: "alice",
		FromUserID:  userID,
		Text:        text,
	})
	require.NoError(t, err, "handle %q", text)
	return output
}

func TestAliasLifecycle(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "📘 No aliases saved.", h.send(t, "1", "!alias"))
	assert.Equal(t, "✅ Alias saved: `Kitchen Light` → `light.kitchen`", h.send(t, "1", `!alias add "Kitchen Light" light.kitchen`))
	h.send(t, "1", `!alias add Porch light.porch`)
	assert.Equal(t,
		"**Aliases**:\n- `Kitchen Light` → `light.kitchen`\n- `Porch` → `light.porch`",
		h.send(t, "1", "!alias list"),
	)
	assert.Equal(t, "✅ Alias removed.", h.send(t, "1", `!alias del "kitchen light"`))
	assert.Equal(t, "ℹ️ Alias not found.", h.send(t, "1", `!alias del "kitchen light"`))

	_, ok := h.directory.LookupAlias("porch")
	assert.True(t, ok, "porch alias should remain")
}

func TestGroupLifecycle(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, "📗 No groups saved.", h.send(t, "1", "!group"))
	assert.Equal(t, "✅ Group `Downstairs` set with 2 member(s).", h.send(t, "1", `!group set "Downstairs" light.kitchen, switch.fan1`))
	assert.Equal(t, "✅ Group `downstairs` updated with 1 member(s).", h.send(t, "1", `!group add "downstairs" light.porch`))
	assert.Equal(t, "**Downstairs** → `light.kitchen`, `switch.fan1`, `light.porch`", h.send(t, "1", `!group show DOWNSTAIRS`))
	assert.Equal(t, "**Groups**:\n- `Downstairs` → `light.kitchen`, `switch.fan1`, `light.porch`", h.send(t, "1", "!group list"))
	assert.Equal(t, "ℹ️ Group not found.", h.send(t, "1", `!group show "Upstairs"`))
	assert.Equal(t, "✅ Group removed.", h.send(t, "1", `!group del Downstairs`))
	assert.Equal(t, "ℹ️ Group not found.", h.send(t, "1", `!group del Downstairs`))
}

func TestUsageRepliesMakeNoChanges(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, groupNoMembers, h.send(t, "1", `!group add "Downstairs"`))
	assert.Equal(t, aliasAddUsage, h.send(t, "1", `!alias add "Kitchen"`))

	_, err := os.Stat(h.path)
	assert.ErrorIs(t, err, os.ErrNotExist, "no directory file should be written")
}

func TestUnauthorizedAdminCommandsAreDenied(t *testing.T) {
	h := newHarness(t, "100", " 200 ")

	cases := map[string]string{
		`!alias add porch light.porch`:    "⛔ You are not authorized to manage aliases.",
		`!alias bogus`:                    "⛔ You are not authorized to manage aliases.",
		`!group set "Downstairs" light.a`: "⛔ You are not authorized to manage groups.",
		"!reload":                         "⛔ Not authorized.",
	}
	for text, want := range cases {
		assert.Equal(t, want, h.send(t, "999", text), "text %q", text)
	}
	assert.Empty(t, h.directory.Aliases())
	assert.Zero(t, h.catalog.calls)

	assert.Contains(t, h.send(t, "200", `!alias add porch light.porch`), "✅")
}

func TestAuthorizeWrapsAccessDenied(t *testing.T) {
	h := newHarness(t, "100")
	assert.ErrorIs(t, h.service.authorize("999", ScopeGroups), bridgeerr.ErrAccessDenied)
	assert.NoError(t, h.service.authorize("999", ScopeNone))
	assert.NoError(t, h.service.authorize("100", ScopeReload))
}

func TestSwitchCommandsSkipAuthorization(t *testing.T) {
	h := newHarness(t, "100")
	out := h.sendFull(t, "999", "Turn On kitchen")

	assert.True(t, out.Handled)
	assert.Equal(t, 1, h.dispatcher.calls)
	assert.Equal(t, dispatcher.ActionTurnOn, h.dispatcher.action)
	assert.Equal(t, "kitchen", h.dispatcher.phrase)
	assert.Equal(t, "999", h.dispatcher.issuer.ID)
	assert.Equal(t, "alice", h.dispatcher.issuer.Name)
	assert.Equal(t, "✅ Turn On `kitchen` (`light.x`) requested.", out.Reply)
}

func TestReloadReportsOutcome(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, "🔄 Rebuilt HA entity index.", h.send(t, "1", "!reload"))

	h.catalog.err = errors.New("catalog fetch failed: timeout")
	assert.Equal(t, "⚠️ Failed to rebuild index: `catalog fetch failed: timeout`", h.send(t, "1", "!reload"))
	assert.Equal(t, 2, h.catalog.calls)
}

func TestIgnoredTextIsNotHandled(t *testing.T) {
	h := newHarness(t)
	out := h.sendFull(t, "1", "good morning")
	assert.False(t, out.Handled)
	assert.Empty(t, out.Reply)
}
