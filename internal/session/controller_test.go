package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/annel0/session-replay/internal/catalog"
	"github.com/annel0/session-replay/internal/eventbus"
	"github.com/annel0/session-replay/internal/eventlog"
	"github.com/annel0/session-replay/internal/keyframe"
	"github.com/annel0/session-replay/internal/logging"
	"github.com/annel0/session-replay/internal/timeref"
	"github.com/annel0/session-replay/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timedClock struct {
	at float64
	kf keyframe.Clock
}

type fakeClock struct {
	app, sim  float64
	rate      float64
	keyframes []timedClock
	cleared   int
	finished  bool
}

func (c *fakeClock) ApplicationTime() float64 { return c.app }
func (c *fakeClock) SimulationTime() float64  { return c.sim }
func (c *fakeClock) State() keyframe.Clock {
	return keyframe.Clock{Time: c.sim, Rate: c.rate}
}
func (c *fakeClock) AddKeyframe(at float64, kf keyframe.Clock) {
	c.keyframes = append(c.keyframes, timedClock{at, kf})
}
func (c *fakeClock) ClearKeyframes()        { c.keyframes = nil; c.cleared++ }
func (c *fakeClock) PlaybackFinished() bool { return c.finished }

type timedPose struct {
	at   float64
	pose keyframe.CameraPose
}

type fakeCamera struct {
	pose      keyframe.CameraPose
	keyframes []timedPose
	cleared   int
	finished  bool
}

func (c *fakeCamera) Pose() keyframe.CameraPose { return c.pose }
func (c *fakeCamera) AddKeyframe(at float64, pose keyframe.CameraPose) {
	c.keyframes = append(c.keyframes, timedPose{at, pose})
}
func (c *fakeCamera) ClearKeyframes()        { c.keyframes = nil; c.cleared++ }
func (c *fakeCamera) PlaybackFinished() bool { return c.finished }

type timedScript struct {
	at     float64
	script string
}

type fakeScheduler struct {
	mode     timeref.Mode
	scripts  []timedScript
	begun    int
	ended    int
	stopped  int
	finished bool
}

func (s *fakeScheduler) BeginPlayback(mode timeref.Mode, appNow, simNow float64) {
	s.mode = mode
	s.begun++
}
func (s *fakeScheduler) AddPlaybackScript(t float64, script string) {
	s.scripts = append(s.scripts, timedScript{t, script})
}
func (s *fakeScheduler) PlaybackFinished() bool { return s.finished }
func (s *fakeScheduler) EndPlayback(appNow, simNow float64) {
	s.ended++
	s.mode = timeref.ModeSimulationTime
}
func (s *fakeScheduler) StopPlayback(appNow, simNow float64) {
	s.stopped++
	s.scripts = nil
	s.mode = timeref.ModeSimulationTime
}

type fakeBus struct {
	mu     sync.Mutex
	events []*eventbus.Envelope
}

func (b *fakeBus) Publish(ctx context.Context, ev *eventbus.Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *fakeBus) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, ev := range b.events {
		out = append(out, ev.EventType)
	}
	return out
}

func (b *fakeBus) count(eventType string) int {
	n := 0
	for _, typ := range b.types() {
		if typ == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	clock  *fakeClock
	camera *fakeCamera
	sched  *fakeScheduler
	bus    *fakeBus
	cat    catalog.Catalog
	logs   *bytes.Buffer
	ctrl   *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.OpenBadger("")
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	f := &fixture{
		clock:  &fakeClock{app: 100, sim: 5000, rate: 1},
		camera: &fakeCamera{pose: keyframe.CameraPose{Rotation: vec.IdentityQuat(), FocusNode: "Earth"}},
		sched:  &fakeScheduler{mode: timeref.ModeSimulationTime},
		bus:    &fakeBus{},
		cat:    cat,
		logs:   &bytes.Buffer{},
	}
	f.ctrl = NewController(f.clock, f.camera, f.sched,
		WithEventBus(f.bus),
		WithCatalog(cat),
		WithLogger(logging.NewWriterLogger("session", f.logs, logging.DEBUG)),
	)
	return f
}

// advance сдвигает часы, как это делает цикл симуляции
func (f *fixture) advance(dt float64) {
	f.clock.app += dt
	f.clock.sim += dt
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestRecording_PairedLinesFlushedPerTick(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.rec")

	require.NoError(t, f.ctrl.StartRecording(ctx, path))
	assert.True(t, f.ctrl.IsRecording())

	f.advance(0.5)
	f.ctrl.Tick(ctx)
	lines := readLines(t, path)
	require.Len(t, lines, 2, "строки доступны сразу после тика")
	assert.True(t, strings.HasPrefix(lines[0], "camera 100.5 0.5 5000.5 "))
	assert.Equal(t, "time 100.5 0.5 5000.500 1 R -", lines[1])

	f.advance(0.5)
	require.NoError(t, f.ctrl.RecordScript(ctx, `openspace.time.setPause(true)`))
	f.ctrl.Tick(ctx)

	require.NoError(t, f.ctrl.StopRecording(ctx))
	assert.False(t, f.ctrl.IsRecording())
	require.NoError(t, f.ctrl.StopRecording(ctx), "повторная остановка - no-op")

	lines = readLines(t, path)
	require.Len(t, lines, 5)
	assert.Equal(t, "script 101 1 5001 openspace.time.setPause(true)", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "camera "))
	assert.True(t, strings.HasPrefix(lines[4], "time "))

	list, err := f.cat.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, path, list[0].Path)
	assert.Equal(t, 2, list[0].CameraFrames)
	assert.Equal(t, 2, list[0].ClockFrames)
	assert.Equal(t, 1, list[0].Scripts)
	assert.Equal(t, 1.0, list[0].Duration)
	assert.False(t, list[0].Failed)

	assert.Equal(t, []string{eventbus.RecordingStarted, eventbus.RecordingStopped}, f.bus.types())
}

func TestRecording_NotRecording(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, f.ctrl.RecordScript(ctx, "x"), ErrNotRecording)

	require.NoError(t, f.ctrl.StartRecording(ctx, filepath.Join(t.TempDir(), "x.rec")))
	assert.ErrorIs(t, f.ctrl.RecordScript(ctx, "a()\nb()"), ErrInvalidScript)
	assert.ErrorIs(t, f.ctrl.RecordScript(ctx, "  "), ErrInvalidScript)
	assert.ErrorIs(t, f.ctrl.RecordScript(ctx, strings.Repeat("x", keyframe.MaxScriptLength+1)), ErrInvalidScript)
	assert.True(t, f.ctrl.IsRecording(), "запись продолжается")
	require.NoError(t, f.ctrl.StopRecording(ctx))
	f.bus.events = nil
	assert.NoError(t, f.ctrl.StopRecording(ctx))
	f.ctrl.Tick(ctx)
	assert.Empty(t, f.bus.types())
}

func TestRecording_UnwritablePath(t *testing.T) {
	f := newFixture(t)
	err := f.ctrl.StartRecording(context.Background(), filepath.Join(t.TempDir(), "missing", "dir", "x.rec"))

	assert.ErrorIs(t, err, keyframe.ErrIO)
	assert.Equal(t, StateIdle, f.ctrl.State())
}

func TestRecording_AlreadyRecording(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartRecording(ctx, filepath.Join(t.TempDir(), "a.rec")))
	assert.ErrorIs(t, f.ctrl.StartRecording(ctx, filepath.Join(t.TempDir(), "b.rec")), ErrAlreadyRecording)
}

func TestRecording_WriteFailureStopsRecording(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.ctrl.StartRecording(ctx, filepath.Join(t.TempDir(), "x.rec")))

	// Файл закрыт из-под записи: следующая запись строки завершится ошибкой
	require.NoError(t, f.ctrl.rec.w.Close())

	f.ctrl.Tick(ctx)
	assert.False(t, f.ctrl.IsRecording(), "после ошибки записи контроллер в Idle")
	assert.Contains(t, f.logs.String(), "[ERROR]")
	assert.Equal(t, 1, f.bus.count(eventbus.RecordingFailed))

	list, err := f.cat.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Failed)
}

func writeRecording(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "playback.rec")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	return path
}

var sampleLines = []string{
	"camera 10 0 1000 1 2 3 0 0 0 1 - Earth",
	"time 10 0 1000.000 1 R -",
	"script 10.5 0.5 1000.5 openspace.time.setPause(true)",
	"camera 11 1 1001 4 5 6 0 0 0 1 F Moon",
	"time 11 1 1001.000 1 P J",
}

func TestPlayback_DispatchesRecordedTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := writeRecording(t, sampleLines...)

	require.NoError(t, f.ctrl.StartPlayback(ctx, path, timeref.ModeRecordedTime))
	assert.True(t, f.ctrl.IsPlayingBack())
	assert.Equal(t, 1, f.sched.begun)
	assert.Equal(t, timeref.ModeRecordedTime, f.sched.mode)

	// Время приложения: старт воспроизведения (100) плюс относительная метка
	require.Len(t, f.camera.keyframes, 2)
	assert.Equal(t, 100.0, f.camera.keyframes[0].at)
	assert.Equal(t, 101.0, f.camera.keyframes[1].at)
	assert.Equal(t, "Moon", f.camera.keyframes[1].pose.FocusNode)
	assert.True(t, f.camera.keyframes[1].pose.FollowFocusRotation)

	// Время симуляции: время приложения плюс смещение 5000-100
	require.Len(t, f.clock.keyframes, 2)
	assert.Equal(t, 101.0, f.clock.keyframes[1].at)
	assert.Equal(t, 5001.0, f.clock.keyframes[1].kf.Time)
	assert.True(t, f.clock.keyframes[1].kf.Paused)
	assert.True(t, f.clock.keyframes[1].kf.RequiresJump)

	// Скрипты планируются по относительной метке
	require.Len(t, f.sched.scripts, 1)
	assert.Equal(t, timedScript{0.5, "openspace.time.setPause(true)"}, f.sched.scripts[0])

	assert.Equal(t, []string{eventbus.PlaybackStarted}, f.bus.types())
}

func TestPlayback_SimulationTimeReanchors(t *testing.T) {
	f := newFixture(t)
	path := writeRecording(t, sampleLines...)

	require.NoError(t, f.ctrl.StartPlayback(context.Background(), path, timeref.ModeSimulationTime))

	// Первая запись файла (1000) совмещается с текущим временем симуляции (5000)
	require.Len(t, f.sched.scripts, 1)
	assert.Equal(t, 5000.5, f.sched.scripts[0].at)
	assert.Equal(t, 5001.0, f.clock.keyframes[1].kf.Time)
	assert.Equal(t, 101.0, f.camera.keyframes[1].at)
}

func TestPlayback_JoinFinishesOnceInAnyOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := writeRecording(t, sampleLines...)
	require.NoError(t, f.ctrl.StartPlayback(ctx, path, timeref.ModeRecordedTime))

	f.sched.finished = true
	f.ctrl.Tick(ctx)
	assert.True(t, f.ctrl.IsPlayingBack(), "одна дорожка не завершает воспроизведение")

	f.clock.finished = true
	f.ctrl.Tick(ctx)
	assert.True(t, f.ctrl.IsPlayingBack())
	assert.Equal(t, 0, f.bus.count(eventbus.PlaybackFinished))

	f.camera.finished = true
	f.ctrl.Tick(ctx)
	assert.False(t, f.ctrl.IsPlayingBack())
	assert.Equal(t, 1, f.sched.ended)

	f.ctrl.Tick(ctx)
	f.ctrl.OnTrackFinished(ctx, TrackCamera)
	assert.Equal(t, 1, f.bus.count(eventbus.PlaybackFinished), "событие ровно одно")
	assert.Equal(t, 1, f.sched.ended)
}

func TestPlayback_ExplicitTrackSignals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := writeRecording(t, sampleLines...)
	require.NoError(t, f.ctrl.StartPlayback(ctx, path, timeref.ModeApplicationTime))

	f.ctrl.OnTrackFinished(ctx, TrackCamera)
	f.ctrl.OnTrackFinished(ctx, TrackCamera)
	f.ctrl.OnTrackFinished(ctx, TrackScript)
	assert.True(t, f.ctrl.IsPlayingBack(), "повторный сигнал не считается за другую дорожку")

	f.ctrl.OnTrackFinished(ctx, TrackClock)
	assert.False(t, f.ctrl.IsPlayingBack())
	assert.Equal(t, 1, f.bus.count(eventbus.PlaybackFinished))
}

func TestPlayback_MalformedLineKeepsDispatchedEntries(t *testing.T) {
	f := newFixture(t)
	path := writeRecording(t,
		sampleLines[0],
		sampleLines[1],
		"camera 11 1 1001 4 5 6 0 0 0",
		sampleLines[3],
	)

	err := f.ctrl.StartPlayback(context.Background(), path, timeref.ModeRecordedTime)
	var perr *keyframe.ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 3, perr.Line)
	assert.True(t, errors.Is(err, keyframe.ErrParse))

	assert.True(t, f.ctrl.IsPlayingBack(), "воспроизведение продолжается")
	assert.Len(t, f.camera.keyframes, 1)
	assert.Len(t, f.clock.keyframes, 1)
	assert.Contains(t, f.logs.String(), "строки 3")
}

func TestPlayback_MissingFile(t *testing.T) {
	f := newFixture(t)
	err := f.ctrl.StartPlayback(context.Background(), filepath.Join(t.TempDir(), "none.rec"), timeref.ModeRecordedTime)

	assert.ErrorIs(t, err, keyframe.ErrIO)
	assert.Equal(t, StateIdle, f.ctrl.State())
	assert.Equal(t, 0, f.sched.begun)
}

func TestPlayback_StopAbortsWithoutFinishedEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := writeRecording(t, sampleLines...)
	require.NoError(t, f.ctrl.StartPlayback(ctx, path, timeref.ModeRecordedTime))

	f.ctrl.OnTrackFinished(ctx, TrackScript)
	require.NoError(t, f.ctrl.StopPlayback(ctx))

	assert.Equal(t, StateIdle, f.ctrl.State())
	assert.Empty(t, f.camera.keyframes)
	assert.Empty(t, f.clock.keyframes)
	assert.Equal(t, 1, f.sched.stopped)
	assert.Equal(t, timeref.ModeSimulationTime, f.sched.mode)

	// Поздние сигналы дорожек игнорируются
	f.ctrl.OnTrackFinished(ctx, TrackCamera)
	f.ctrl.OnTrackFinished(ctx, TrackClock)
	f.camera.finished, f.clock.finished, f.sched.finished = true, true, true
	f.ctrl.Tick(ctx)

	assert.Equal(t, 0, f.bus.count(eventbus.PlaybackFinished))
	assert.Equal(t, 1, f.bus.count(eventbus.PlaybackAborted))
	assert.Equal(t, 0, f.sched.ended)
	assert.NoError(t, f.ctrl.StopPlayback(ctx), "повторная остановка - no-op")
}

func TestPlayback_RecordingClosesPlayback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := writeRecording(t, sampleLines...)
	require.NoError(t, f.ctrl.StartPlayback(ctx, path, timeref.ModeRecordedTime))

	require.NoError(t, f.ctrl.StartRecording(ctx, filepath.Join(t.TempDir(), "new.rec")))
	assert.Equal(t, StateRecording, f.ctrl.State())
	assert.Equal(t, 1, f.sched.stopped)
	assert.Equal(t, 1, f.camera.cleared)
	assert.Equal(t, []string{eventbus.PlaybackStarted, eventbus.PlaybackAborted, eventbus.RecordingStarted}, f.bus.types())

	assert.ErrorIs(t, f.ctrl.StartPlayback(ctx, path, timeref.ModeRecordedTime), ErrRecordingActive)
}

func TestPlayback_AlreadyPlaying(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := writeRecording(t, sampleLines...)
	require.NoError(t, f.ctrl.StartPlayback(ctx, path, timeref.ModeRecordedTime))
	assert.ErrorIs(t, f.ctrl.StartPlayback(ctx, path, timeref.ModeRecordedTime), ErrAlreadyPlaying)
}

func TestRecordThenPlayBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "roundtrip.rec.gz")

	require.NoError(t, f.ctrl.StartRecording(ctx, path))
	for i := 0; i < 3; i++ {
		f.advance(0.25)
		f.camera.pose.Position = vec.Vec3Float{X: float64(i)}
		f.ctrl.Tick(ctx)
	}
	require.NoError(t, f.ctrl.StopRecording(ctx))

	entries, err := eventlog.ReadAll(path)
	require.NoError(t, err)
	require.Len(t, entries, 6)

	f.clock.app = 500
	require.NoError(t, f.ctrl.StartPlayback(ctx, path, timeref.ModeRecordedTime))
	require.Len(t, f.camera.keyframes, 3)
	assert.Equal(t, 500.25, f.camera.keyframes[0].at)
	assert.Equal(t, 2.0, f.camera.keyframes[2].pose.Position.X)
}

func TestController_DefaultLoggers(t *testing.T) {
	logging.Configure(logging.Options{ConsoleLevel: logging.ERROR})
	c := NewController(&fakeClock{}, &fakeCamera{}, &fakeScheduler{})

	assert.Equal(t, "session", c.log.Component())
	assert.Equal(t, "recording", c.recLog.Component())
	assert.Equal(t, "playback", c.playLog.Component())
}
