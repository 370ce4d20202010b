package timeref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	cases := map[string]Mode{
		"application-time": ModeApplicationTime,
		"recorded-time":    ModeRecordedTime,
		"Simulation-Time":  ModeSimulationTime,
		"simulation":       ModeSimulationTime,
	}
	for in, want := range cases {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
		if in == want.String() {
			assert.Equal(t, in, got.String())
		}
	}

	_, err := ParseMode("wall-clock")
	assert.Error(t, err)
}

func TestConverter_PerMode(t *testing.T) {
	// Запись: приложение 105 с, 5 с от начала записи, симуляция 1005 с.
	// Запись начиналась при симуляции 1000 с.
	s := Stamp{Application: 105, Relative: 5, Simulation: 1005}

	// Воспроизведение стартует при приложении 300 с и симуляции 5000 с
	base := NewConverter(ModeApplicationTime, 300, 5000)
	base.RecordingSimulationStart = 1000
	assert.Equal(t, 4700.0, base.Offset())

	t.Run("application", func(t *testing.T) {
		c := base
		assert.Equal(t, 105.0, c.Timestamp(s))
		assert.Equal(t, 105.0, c.ApplicationTime(s))
		assert.Equal(t, 4805.0, c.SimulationTime(s))
		assert.Equal(t, 105.0, c.ScheduleTime(s))
	})

	t.Run("recorded", func(t *testing.T) {
		c := base
		c.Mode = ModeRecordedTime
		assert.Equal(t, 305.0, c.Timestamp(s))
		assert.Equal(t, 305.0, c.ApplicationTime(s))
		assert.Equal(t, 5005.0, c.SimulationTime(s))
		assert.Equal(t, 5.0, c.ScheduleTime(s))
	})

	t.Run("simulation", func(t *testing.T) {
		c := base
		c.Mode = ModeSimulationTime
		// Перенос на текущую эпоху: 5000 + (1005 - 1000)
		assert.Equal(t, 5005.0, c.Timestamp(s))
		assert.Equal(t, 305.0, c.ApplicationTime(s))
		assert.Equal(t, 5005.0, c.SimulationTime(s))
		assert.Equal(t, 5005.0, c.ScheduleTime(s))
	})
}

func TestJ2000_RoundTrip(t *testing.T) {
	var conv J2000

	assert.Equal(t, "2000 JAN 01 11:58:55.816", conv.EpochToString(0))

	s := conv.EpochToString(585908115.345)
	back, err := conv.StringToEpoch(s)
	require.NoError(t, err)
	assert.InDelta(t, 585908115.345, back, 1e-3)

	v, err := conv.StringToEpoch("2018 jul 26 21:15:15.345")
	require.NoError(t, err)
	assert.Equal(t, "2018 JUL 26 21:15:15.345", conv.EpochToString(v))

	v, err = conv.StringToEpoch("12.5")
	require.NoError(t, err)
	assert.Equal(t, 12.5, v)

	_, err = conv.StringToEpoch("вчера")
	assert.Error(t, err)
}
