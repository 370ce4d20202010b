package schedule

import (
	"bytes"
	"errors"
	"testing"

	"github.com/annel0/session-replay/internal/logging"
	"github.com/annel0/session-replay/internal/timeref"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingRunner struct {
	executed []string
	failOn   map[string]bool
}

func (r *recordingRunner) Execute(script string) error {
	r.executed = append(r.executed, script)
	if r.failOn[script] {
		return errors.New("boom")
	}
	return nil
}

func newTestScheduler(t *testing.T) (*Scheduler, *recordingRunner, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	runner := &recordingRunner{failOn: map[string]bool{}}
	s := NewScheduler(runner, timeref.J2000{},
		WithLogger(logging.NewWriterLogger("scheduler", &buf, logging.DEBUG)))
	return s, runner, &buf
}

func TestScheduler_SimulationTimeTick(t *testing.T) {
	s, runner, _ := newTestScheduler(t)
	s.LoadScripts(entry(100, "100", 0), entry(200, "200", 0))

	assert.Equal(t, 0, s.Tick(1, 50))
	assert.Equal(t, 1, s.Tick(2, 150))
	assert.Equal(t, []string{"f100"}, runner.executed)
	assert.Equal(t, 150.0, s.CurrentTime())

	s.SetCurrentTime(0)
	assert.Equal(t, []string{"f100", "b100"}, runner.executed, "скачок назад выполняет обратный скрипт")
}

func TestScheduler_ApplicationTimeTick(t *testing.T) {
	s, runner, _ := newTestScheduler(t)
	s.SetTimeReferenceMode(timeref.ModeApplicationTime, 5, 1e6)
	s.LoadScripts(entry(10, "10", 0))

	s.Tick(9, 2e6)
	assert.Empty(t, runner.executed)
	s.Tick(10, 2e6)
	assert.Equal(t, []string{"f10"}, runner.executed)
}

func TestScheduler_RecordedTimeRelativeToSwitch(t *testing.T) {
	s, runner, _ := newTestScheduler(t)
	s.SetTimeReferenceMode(timeref.ModeRecordedTime, 1000, 5e8)
	s.LoadScripts(entry(0, "0", 0), entry(2, "2", 0))

	s.Tick(1000.5, 5e8)
	assert.Equal(t, []string{"f0"}, runner.executed, "запись на нуле срабатывает на первом тике")
	s.Tick(1002, 5e8)
	assert.Equal(t, []string{"f0", "f2"}, runner.executed)
}

func TestScheduler_ModeSwitchIsNotAScrub(t *testing.T) {
	s, runner, _ := newTestScheduler(t)
	s.LoadScripts(entry(100, "100", 0))
	s.Tick(1, 150)
	require.Equal(t, []string{"f100"}, runner.executed)

	// Отсчёт начинается с нуля, но обратный скрипт не выполняется
	s.SetTimeReferenceMode(timeref.ModeRecordedTime, 5, 150)
	s.Tick(6, 151)
	assert.Equal(t, []string{"f100"}, runner.executed)
	assert.Equal(t, timeref.ModeRecordedTime, s.Mode())
}

func TestScheduler_ScriptErrorsAreLogged(t *testing.T) {
	s, runner, buf := newTestScheduler(t)
	runner.failOn["f1"] = true
	s.LoadScripts(entry(1, "1", 0), entry(2, "2", 0))

	assert.Equal(t, 2, s.Tick(0, 3))
	assert.Equal(t, []string{"f1", "f2"}, runner.executed, "ошибка не прерывает остальные скрипты")
	assert.Contains(t, buf.String(), "boom")
	assert.Contains(t, buf.String(), "[ERROR]")
}

func TestScheduler_ReentrantScript(t *testing.T) {
	var s *Scheduler
	var seen int
	s = NewScheduler(RunnerFunc(func(string) error {
		seen = len(s.AllScripts())
		s.LoadScripts(ScheduledScript{Time: 50, ForwardScript: "later"})
		return nil
	}), timeref.J2000{})
	s.LoadScripts(entry(1, "1", 0))

	s.Tick(0, 2)
	assert.Equal(t, 1, seen)
	assert.Len(t, s.AllScripts(), 2)
}

func TestScheduler_Disabled(t *testing.T) {
	s, runner, _ := newTestScheduler(t)
	s.LoadScripts(entry(1, "1", 0))
	s.SetEnabled(false)
	assert.False(t, s.Enabled())

	assert.Equal(t, 0, s.Tick(0, 2))
	assert.Empty(t, runner.executed)
}

func TestScheduler_LoadScheduledScript(t *testing.T) {
	s, _, buf := newTestScheduler(t)

	require.NoError(t, s.LoadScheduledScript("2000 JAN 01 11:58:56.816", "fwd", "bwd", "", 3))
	scripts := s.ScriptsInGroup(3)
	require.Len(t, scripts, 1)
	assert.InDelta(t, 1.0, scripts[0].Time, 1e-9)
	assert.Equal(t, "fwd", scripts[0].ForwardScript)

	require.NoError(t, s.LoadScheduledScript("42", "", "", "", 0))
	assert.Contains(t, buf.String(), "не содержит ни одного скрипта")

	assert.Error(t, s.LoadScheduledScript("not a date", "x", "", "", 0))
	assert.Len(t, s.AllScripts(), 2)

	assert.Equal(t, 1, s.ClearGroup(3))
	s.Clear()
	assert.Empty(t, s.AllScripts())
}

func TestScheduler_PlaybackTrack(t *testing.T) {
	s, runner, _ := newTestScheduler(t)
	s.LoadScripts(entry(5e8, "user", 0))

	s.BeginPlayback(timeref.ModeRecordedTime, 10, 4e8)
	assert.True(t, s.PlaybackActive())
	assert.True(t, s.PlaybackFinished(), "без скриптов дорожка сразу завершена")

	s.AddPlaybackScript(1, "a")
	s.AddPlaybackScript(2, "b")
	assert.False(t, s.PlaybackFinished())

	s.Tick(11.5, 4e8)
	assert.Equal(t, []string{"a"}, runner.executed)
	assert.False(t, s.PlaybackFinished())

	s.Tick(12, 4e8)
	assert.Equal(t, []string{"a", "b"}, runner.executed)
	assert.True(t, s.PlaybackFinished())

	s.EndPlayback(12, 4e8)
	assert.False(t, s.PlaybackActive())
	assert.Equal(t, timeref.ModeSimulationTime, s.Mode())
	assert.Empty(t, s.ScriptsInGroup(PlaybackGroup))
	assert.Len(t, s.AllScripts(), 1)
}

func TestScheduler_EndPlaybackDoesNotReplayScripts(t *testing.T) {
	s, runner, _ := newTestScheduler(t)

	// Время симуляции до 2000 года: отрицательные секунды J2000
	s.BeginPlayback(timeref.ModeApplicationTime, 0, -1e8)
	s.AddPlaybackScript(5, "playbackScript()")
	s.Tick(10, -1e8)
	require.Equal(t, []string{"playbackScript()"}, runner.executed)

	s.EndPlayback(10, -1e8)
	assert.Empty(t, s.ScriptsInGroup(PlaybackGroup))

	s.Tick(11, 6.3e8)
	s.SetCurrentTime(-2e8)
	s.SetCurrentTime(7e8)
	assert.Equal(t, []string{"playbackScript()"}, runner.executed, "скрипт воспроизведения выполняется один раз")
}

func TestScheduler_StopPlaybackClearsOnlyPlaybackGroup(t *testing.T) {
	s, runner, _ := newTestScheduler(t)
	s.LoadScripts(entry(5e8, "user", 0))

	s.BeginPlayback(timeref.ModeApplicationTime, 10, 4e8)
	s.AddPlaybackScript(20, "never")
	s.StopPlayback(11, 4e8)

	assert.Empty(t, s.ScriptsInGroup(PlaybackGroup))
	assert.Len(t, s.AllScripts(), 1)
	assert.Equal(t, timeref.ModeSimulationTime, s.Mode())

	s.Tick(30, 6e8)
	assert.Equal(t, []string{"fuser"}, runner.executed)
}

func TestScheduler_BeginPlaybackDropsPreviousTrack(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	s.BeginPlayback(timeref.ModeRecordedTime, 0, 0)
	s.AddPlaybackScript(1, "old")
	s.EndPlayback(0, 0)

	s.BeginPlayback(timeref.ModeRecordedTime, 0, 0)
	assert.Empty(t, s.ScriptsInGroup(PlaybackGroup))
}
