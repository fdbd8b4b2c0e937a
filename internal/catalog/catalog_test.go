package catalog

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwizi/hass-bridge/internal/bridgeerr"
	"github.com/dwizi/hass-bridge/internal/homeassistant"
)

type fakeSource struct {
	states []homeassistant.State
	err    error
	calls  int
}

func (f *fakeSource) FetchStates(ctx context.Context) ([]homeassistant.State, error) {
	f.calls++
	return f.states, f.err
}

func state(entityID, friendly string) homeassistant.State {
	return homeassistant.State{
		EntityID:   entityID,
		Attributes: homeassistant.StateAttributes{FriendlyName: friendly},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewSnapshotDerivesFields(t *testing.T) {
	snapshot := NewSnapshot([]homeassistant.State{
		state("light.kitchen", "Kitchen Light"),
		state("sensor.outdoor_temp", ""),
		state("weird", "No Separator"),
		state("", "Dropped"),
	}, time.Now())

	entities := snapshot.Entities()
	require.Len(t, entities, 3)
	assert.Equal(t, Entity{
		ID:              "light.kitchen",
		Label:           "Kitchen Light",
		Category:        "light",
		NormalizedLabel: "kitchenlight",
		NormalizedID:    "lightkitchen",
	}, entities[0])
	assert.Equal(t, "sensor.outdoor_temp", entities[1].Label)
	assert.Equal(t, "", entities[2].Category)

	id, ok := snapshot.Lookup("kitchenlight")
	require.True(t, ok)
	assert.Equal(t, "light.kitchen", id)
	id, ok = snapshot.Lookup("lightkitchen")
	require.True(t, ok)
	assert.Equal(t, "light.kitchen", id)
	_, ok = snapshot.Lookup("")
	assert.False(t, ok)
}

func TestNewSnapshotLastWriteWins(t *testing.T) {
	snapshot := NewSnapshot([]homeassistant.State{
		state("light.a", "Porch"),
		state("switch.b", "porch!"),
	}, time.Now())
	id, ok := snapshot.Lookup("porch")
	require.True(t, ok)
	assert.Equal(t, "switch.b", id)
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "light", Category("light.kitchen"))
	assert.Equal(t, "binary_sensor", Category("binary_sensor.door.front"))
	assert.Equal(t, "", Category("kitchen"))
}

func TestRefreshFailureKeepsPreviousSnapshot(t *testing.T) {
	source := &fakeSource{states: []homeassistant.State{state("light.kitchen", "Kitchen")}}
	cat := New(source, quietLogger())
	assert.Equal(t, 0, cat.Snapshot().Len())

	require.NoError(t, cat.Refresh(context.Background()))
	before := cat.Snapshot()
	assert.Equal(t, 1, before.Len())

	source.err = errors.New("connection refused")
	err := cat.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, bridgeerr.ErrCatalogFetch))
	assert.Same(t, before, cat.Snapshot())
}

func TestRefreshReplacesWholeSnapshot(t *testing.T) {
	source := &fakeSource{states: []homeassistant.State{state("light.a", "A"), state("light.b", "B")}}
	cat := New(source, quietLogger())
	require.NoError(t, cat.Refresh(context.Background()))
	old := cat.Snapshot()

	source.states = []homeassistant.State{state("fan.c", "C")}
	require.NoError(t, cat.Refresh(context.Background()))

	assert.Equal(t, 2, old.Len())
	current := cat.Snapshot()
	assert.Equal(t, 1, current.Len())
	_, ok := current.Lookup("a")
	assert.False(t, ok)
	assert.Equal(t, 2, source.calls)
}
