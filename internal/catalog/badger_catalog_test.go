package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerCatalog_PutGetList(t *testing.T) {
	c, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	later := RecordingInfo{ID: "b", Path: "b.rec", StartedAt: base.Add(time.Minute), CameraFrames: 10, ClockFrames: 10, Scripts: 1}
	earlier := RecordingInfo{ID: "a", Path: "a.rec", StartedAt: base, Duration: 4.5}

	require.NoError(t, c.Put(ctx, later))
	require.NoError(t, c.Put(ctx, earlier))

	got, err := c.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "b.rec", got.Path)
	assert.Equal(t, 21, got.Lines())
	assert.True(t, got.StartedAt.Equal(later.StartedAt))

	list, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID, "сортировка по времени начала")
	assert.Equal(t, 4.5, list[0].Duration)

	require.NoError(t, c.Delete(ctx, "a"))
	_, err = c.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerCatalog_InMemoryAndClosed(t *testing.T) {
	c, err := OpenBadger("")
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, c.Put(ctx, RecordingInfo{}), "пустой ID")
	require.NoError(t, c.Put(ctx, RecordingInfo{ID: "x"}))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close(), "повторное закрытие - no-op")

	_, err = c.List(ctx)
	assert.ErrorIs(t, err, ErrNotReady)
	assert.ErrorIs(t, c.Put(ctx, RecordingInfo{ID: "y"}), ErrNotReady)
}

func TestBadgerCatalog_CancelledContext(t *testing.T) {
	c, err := OpenBadger("")
	require.NoError(t, err)
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Put(ctx, RecordingInfo{ID: "x"}), context.Canceled)
}

func TestBadgerCatalog_Contract(t *testing.T) {
	c, err := OpenBadger("")
	require.NoError(t, err)
	defer c.Close()
	checkCatalog(t, c)
}
