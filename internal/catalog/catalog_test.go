package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// checkCatalog прогоняет общий сценарий Put/Get/List/Delete на любом хранилище
func checkCatalog(t *testing.T, c Catalog) {
	t.Helper()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := RecordingInfo{
		ID: "b", Path: "b.rec",
		StartedAt: base.Add(time.Minute), StoppedAt: base.Add(2 * time.Minute),
		ApplicationStart: 12.5, SimulationStart: -1e8,
		CameraFrames: 3, ClockFrames: 3, Scripts: 2, Duration: 60,
	}
	require.NoError(t, c.Put(ctx, b))
	require.NoError(t, c.Put(ctx, RecordingInfo{ID: "a", Path: "a.rec", StartedAt: base, StoppedAt: base, Failed: true}))

	got, err := c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 8, got.Lines())
	assert.True(t, b.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, -1e8, got.SimulationStart)

	b.Scripts = 5
	require.NoError(t, c.Put(ctx, b), "повторный Put заменяет запись")
	got, err = c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Scripts)

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID, "сортировка по времени начала")
	assert.True(t, list[0].Failed)

	require.NoError(t, c.Delete(ctx, "a"))
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	list, err = c.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	assert.Error(t, c.Put(ctx, RecordingInfo{}), "пустой ID")
}

// checkClosed проверяет, что закрытый каталог отвечает ErrNotReady
func checkClosed(t *testing.T, c Catalog) {
	t.Helper()
	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "повторное закрытие")

	ctx := context.Background()
	assert.ErrorIs(t, c.Put(ctx, RecordingInfo{ID: "a"}), ErrNotReady)
	_, err := c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotReady)
	_, err = c.List(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, c.Delete(ctx, "a"), ErrNotReady)
}

func TestOpen(t *testing.T) {
	c, err := Open(context.Background(), Settings{Backend: BackendBadger})
	require.NoError(t, err)
	assert.IsType(t, &BadgerCatalog{}, c)
	require.NoError(t, c.Close())

	_, err = Open(context.Background(), Settings{Backend: "cassandra"})
	assert.Error(t, err)
}
