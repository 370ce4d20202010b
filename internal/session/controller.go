package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/annel0/session-replay/internal/catalog"
	"github.com/annel0/session-replay/internal/eventbus"
	"github.com/annel0/session-replay/internal/eventlog"
	"github.com/annel0/session-replay/internal/keyframe"
	"github.com/annel0/session-replay/internal/logging"
	"github.com/annel0/session-replay/internal/metrics"
	"github.com/annel0/session-replay/internal/observability"
	"github.com/annel0/session-replay/internal/timeref"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Clock - часы приложения и симуляции
type Clock interface {
	ApplicationTime() float64
	SimulationTime() float64
	// State возвращает текущее состояние часов для записи
	State() keyframe.Clock
	// AddKeyframe ставит состояние часов на момент at по времени приложения
	AddKeyframe(at float64, kf keyframe.Clock)
	ClearKeyframes()
	// PlaybackFinished сообщает, что очередь ключевых кадров пуста
	PlaybackFinished() bool
}

// Camera - навигатор камеры
type Camera interface {
	Pose() keyframe.CameraPose
	// AddKeyframe ставит положение камеры на момент at по времени приложения
	AddKeyframe(at float64, pose keyframe.CameraPose)
	ClearKeyframes()
	PlaybackFinished() bool
}

// ScriptScheduler - дорожка скриптов воспроизведения; реализуется schedule.Scheduler
type ScriptScheduler interface {
	BeginPlayback(mode timeref.Mode, appNow, simNow float64)
	AddPlaybackScript(t float64, script string)
	PlaybackFinished() bool
	EndPlayback(appNow, simNow float64)
	StopPlayback(appNow, simNow float64)
}

const eventSource = "session"

// Controller владеет состоянием Idle/Recording/Playing и связывает журнал
// событий с камерой, часами и планировщиком. Один тик-поток вызывает Tick;
// остальные методы можно вызывать из любого потока.
type Controller struct {
	mu        sync.Mutex
	state     State
	clock     Clock
	camera    Camera
	scheduler ScriptScheduler

	bus     eventbus.Publisher
	catalog catalog.Catalog
	metrics *metrics.Metrics
	log     *logging.Logger
	recLog  *logging.Logger
	playLog *logging.Logger

	rec     *recorder
	pb      *playback
	pending []*eventbus.Envelope
}

// Option настраивает Controller
type Option func(*Controller)

// WithEventBus публикует события жизненного цикла в шину
func WithEventBus(bus eventbus.Publisher) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithCatalog сохраняет сведения о завершённых записях
func WithCatalog(cat catalog.Catalog) Option {
	return func(c *Controller) { c.catalog = cat }
}

// WithMetrics подключает метрики
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithLogger задаёт один логгер для записи и воспроизведения
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		c.log = l
		c.recLog = l
		c.playLog = l
	}
}

// NewController создаёт контроллер в состоянии Idle
func NewController(clock Clock, camera Camera, scheduler ScriptScheduler, opts ...Option) *Controller {
	c := &Controller{
		state:     StateIdle,
		clock:     clock,
		camera:    camera,
		scheduler: scheduler,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = logging.GetComponentLogger("session")
	}
	if c.recLog == nil {
		c.recLog = logging.GetRecordingLogger()
	}
	if c.playLog == nil {
		c.playLog = logging.GetPlaybackLogger()
	}
	c.metrics.SetSessionState(int(StateIdle))
	return c
}

// State возвращает текущее состояние
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsRecording сообщает, идёт ли запись. После ошибки записи возвращает false.
func (c *Controller) IsRecording() bool {
	return c.State() == StateRecording
}

// IsPlayingBack сообщает, идёт ли воспроизведение
func (c *Controller) IsPlayingBack() bool {
	return c.State() == StatePlaying
}

func (c *Controller) setState(s State) {
	c.state = s
	c.metrics.SetSessionState(int(s))
}

// queue откладывает публикацию события до снятия блокировки
func (c *Controller) queue(eventType, correlationID string, payload eventbus.SessionEvent) {
	if c.bus == nil {
		return
	}
	ev, err := eventbus.NewEnvelope(eventSource, eventType, correlationID, payload)
	if err != nil {
		c.log.Error("Не удалось сформировать событие %s: %v", eventType, err)
		return
	}
	c.pending = append(c.pending, ev)
}

// flushEvents публикует отложенные события без удержания блокировки
func (c *Controller) flushEvents(ctx context.Context) {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, ev := range pending {
		if err := c.bus.Publish(ctx, ev); err != nil {
			c.log.Warn("Не удалось опубликовать событие %s: %v", ev.EventType, err)
		}
	}
}

//================ Recording =================//

// StartRecording открывает файл path и начинает запись. Если идёт
// воспроизведение, оно принудительно закрывается.
func (c *Controller) StartRecording(ctx context.Context, path string) (err error) {
	ctx, span := observability.StartSpan(ctx, "session.start_recording", attribute.String("path", path))
	defer func() { observability.EndSpan(span, err) }()
	defer c.flushEvents(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateRecording:
		return ErrAlreadyRecording
	case StatePlaying:
		c.recLog.Warn("Запуск записи во время воспроизведения %s: воспроизведение закрывается", c.pb.path)
		c.abortPlayback()
	}

	w, err := eventlog.Create(path)
	if err != nil {
		c.metrics.RecordingEvent("failed")
		c.recLog.Error("Не удалось начать запись в %s: %v", path, err)
		return err
	}

	c.rec = newRecorder(uuid.NewString(), w, c.clock.ApplicationTime(), c.clock.SimulationTime())
	c.setState(StateRecording)
	c.metrics.RecordingEvent("started")
	c.queue(eventbus.RecordingStarted, c.rec.id, eventbus.SessionEvent{SessionID: c.rec.id, Path: path})
	c.recLog.Info("🔴 Запись начата: %s", path)
	return nil
}

// Tick вызывается один раз за тик симуляции. Во время записи пишет пару
// строк камеры и часов; во время воспроизведения опрашивает дорожки.
func (c *Controller) Tick(ctx context.Context) {
	defer c.flushEvents(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateRecording:
		c.recordFrame(ctx)
	case StatePlaying:
		c.pollTracks()
	}
}

func (c *Controller) recordFrame(ctx context.Context) {
	stamp := c.rec.stamp(c.clock.ApplicationTime(), c.clock.SimulationTime())
	if err := c.rec.writeFrame(stamp, c.camera.Pose(), c.clock.State()); err != nil {
		c.failRecording(ctx, err)
		return
	}
	c.metrics.KeyframeRecorded(string(keyframe.TypeCamera))
	c.metrics.KeyframeRecorded(string(keyframe.TypeClock))
}

// RecordScript добавляет в запись выполненный скрипт. Без активной записи
// возвращает ErrNotRecording. Многострочный, пустой или слишком длинный текст
// отклоняется с ErrInvalidScript, запись при этом продолжается.
func (c *Controller) RecordScript(ctx context.Context, text string) error {
	defer c.flushEvents(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording {
		return ErrNotRecording
	}
	if strings.ContainsAny(text, "\r\n") || strings.TrimSpace(text) == "" || len(text) > keyframe.MaxScriptLength {
		return fmt.Errorf("%w: %q", ErrInvalidScript, text)
	}
	stamp := c.rec.stamp(c.clock.ApplicationTime(), c.clock.SimulationTime())
	if err := c.rec.writeScript(stamp, text); err != nil {
		c.failRecording(ctx, err)
		return err
	}
	c.metrics.KeyframeRecorded(string(keyframe.TypeScript))
	return nil
}

// failRecording переводит контроллер в Idle после ошибки записи.
// Ошибка логируется, сессия продолжает работу.
func (c *Controller) failRecording(ctx context.Context, cause error) {
	rec := c.rec
	c.metrics.WriteError()
	c.metrics.RecordingEvent("failed")
	c.recLog.Error("❌ Ошибка записи в %s, запись остановлена: %v", rec.w.Path(), cause)

	if err := rec.w.Close(); err != nil {
		c.recLog.Warn("Ошибка закрытия файла записи %s: %v", rec.w.Path(), err)
	}
	info := rec.info(true)
	c.storeRecording(ctx, info)
	c.queue(eventbus.RecordingFailed, rec.id, eventbus.SessionEvent{
		SessionID: rec.id,
		Path:      info.Path,
		Lines:     info.Lines(),
		Duration:  info.Duration,
		Error:     cause.Error(),
	})
	c.rec = nil
	c.setState(StateIdle)
}

// StopRecording закрывает файл записи. Без активной записи ничего не делает.
func (c *Controller) StopRecording(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "session.stop_recording")
	defer func() { observability.EndSpan(span, err) }()
	defer c.flushEvents(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording {
		return nil
	}

	rec := c.rec
	c.rec = nil
	c.setState(StateIdle)

	err = rec.w.Close()
	info := rec.info(err != nil)
	c.storeRecording(ctx, info)
	c.metrics.RecordingEvent("stopped")
	c.queue(eventbus.RecordingStopped, rec.id, eventbus.SessionEvent{
		SessionID: rec.id,
		Path:      info.Path,
		Lines:     info.Lines(),
		Duration:  info.Duration,
	})
	if err != nil {
		c.recLog.Error("Ошибка закрытия файла записи %s: %v", info.Path, err)
		return err
	}
	c.recLog.Info("⏹️ Запись остановлена: %s (%d строк, %.3f с)", info.Path, info.Lines(), info.Duration)
	return nil
}

func (c *Controller) storeRecording(ctx context.Context, info catalog.RecordingInfo) {
	if c.catalog == nil {
		return
	}
	if err := c.catalog.Put(ctx, info); err != nil {
		c.recLog.Warn("Не удалось сохранить запись %s в каталог: %v", info.ID, err)
	}
}

//================ Playback =================//

// StartPlayback открывает файл path и раздаёт все его записи потребителям
// в режиме времени mode. Ошибка открытия файла оставляет контроллер в Idle.
// Ошибка разбора строки возвращается как *keyframe.ParseError, но
// воспроизведение продолжается с уже переданными записями.
func (c *Controller) StartPlayback(ctx context.Context, path string, mode timeref.Mode) (err error) {
	ctx, span := observability.StartSpan(ctx, "session.start_playback",
		attribute.String("path", path), attribute.String("mode", mode.String()))
	defer func() { observability.EndSpan(span, err) }()
	defer c.flushEvents(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateRecording:
		return ErrRecordingActive
	case StatePlaying:
		return ErrAlreadyPlaying
	}

	reader, err := eventlog.Open(path)
	if err != nil {
		c.playLog.Error("Не удалось открыть файл воспроизведения %s: %v", path, err)
		return err
	}

	appNow, simNow := c.clock.ApplicationTime(), c.clock.SimulationTime()
	c.pb = &playback{
		id:     uuid.NewString(),
		path:   path,
		conv:   timeref.NewConverter(mode, appNow, simNow),
		reader: reader,
		join:   newTrackJoin(),
	}
	c.scheduler.BeginPlayback(mode, appNow, simNow)
	c.setState(StatePlaying)
	c.metrics.PlaybackEvent("started")

	loadErr := c.pb.load(c)
	var parseErr *keyframe.ParseError
	if errors.As(loadErr, &parseErr) {
		c.metrics.ParseError()
		c.playLog.Error("Ошибка разбора строки %d файла %s: %v", parseErr.Line, path, parseErr)
	} else if loadErr != nil {
		c.playLog.Error("Ошибка чтения файла %s: %v", path, loadErr)
	}

	c.queue(eventbus.PlaybackStarted, c.pb.id, eventbus.SessionEvent{
		SessionID: c.pb.id,
		Path:      path,
		Mode:      mode.String(),
		Lines:     c.pb.dispatched,
	})
	c.playLog.Info("▶️ Воспроизведение %s (%s): %d записей", path, mode, c.pb.dispatched)

	if loadErr != nil {
		return fmt.Errorf("playback %s: %w", path, loadErr)
	}
	return nil
}

// dispatch передаёт запись её потребителю. Потребители сами согласуют
// записи с текущими часами.
func (c *Controller) dispatch(conv timeref.Converter, e keyframe.Entry) {
	switch {
	case e.Camera != nil:
		c.camera.AddKeyframe(conv.ApplicationTime(e.Stamp), *e.Camera)
	case e.Clock != nil:
		kf := *e.Clock
		kf.Time = conv.SimulationTime(e.Stamp)
		c.clock.AddKeyframe(conv.ApplicationTime(e.Stamp), kf)
	case e.Script != nil:
		c.scheduler.AddPlaybackScript(conv.ScheduleTime(e.Stamp), e.Script.Text)
	}
	c.metrics.KeyframeDispatched(string(e.Type()))
}

// pollTracks опрашивает потребителей и передаёт завершения в объединение
func (c *Controller) pollTracks() {
	finished := [...]bool{
		TrackCamera: c.camera.PlaybackFinished(),
		TrackClock:  c.clock.PlaybackFinished(),
		TrackScript: c.scheduler.PlaybackFinished(),
	}
	for _, tr := range Tracks {
		if finished[tr] && c.state == StatePlaying {
			c.trackFinished(tr)
		}
	}
}

// OnTrackFinished сообщает о завершении дорожки. Когда завершены все три,
// файл закрывается и публикуется playback.finished. Повторные сигналы и
// сигналы после StopPlayback игнорируются.
func (c *Controller) OnTrackFinished(ctx context.Context, track Track) {
	defer c.flushEvents(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePlaying {
		c.playLog.Debug("Сигнал завершения дорожки %s вне воспроизведения", track)
		return
	}
	c.trackFinished(track)
}

func (c *Controller) trackFinished(track Track) {
	join, effect := c.pb.join.next(trackDone(track))
	c.pb.join = join

	switch effect {
	case effectTrackDone:
		c.metrics.TrackFinished(track.String())
		c.playLog.Debug("Дорожка %s завершена", track)
	case effectFinished:
		c.metrics.TrackFinished(track.String())
		c.playLog.Debug("Дорожка %s завершена", track)
		c.finishPlayback()
	}
}

// finishPlayback - естественное завершение: все дорожки отработали
func (c *Controller) finishPlayback() {
	pb := c.pb
	if err := pb.close(); err != nil {
		c.playLog.Warn("Ошибка закрытия файла воспроизведения %s: %v", pb.path, err)
	}
	c.scheduler.EndPlayback(c.clock.ApplicationTime(), c.clock.SimulationTime())
	c.pb = nil
	c.setState(StateIdle)
	c.metrics.PlaybackEvent("finished")
	c.queue(eventbus.PlaybackFinished, pb.id, eventbus.SessionEvent{
		SessionID: pb.id,
		Path:      pb.path,
		Mode:      pb.conv.Mode.String(),
		Lines:     pb.dispatched,
	})
	c.playLog.Info("✅ Воспроизведение %s завершено", pb.path)
}

// StopPlayback прерывает воспроизведение: очереди потребителей очищаются,
// файл закрывается, playback.finished не публикуется. Без активного
// воспроизведения ничего не делает.
func (c *Controller) StopPlayback(ctx context.Context) (err error) {
	ctx, span := observability.StartSpan(ctx, "session.stop_playback")
	defer func() { observability.EndSpan(span, err) }()
	defer c.flushEvents(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePlaying {
		return nil
	}
	c.abortPlayback()
	return nil
}

func (c *Controller) abortPlayback() {
	pb := c.pb
	join, effect := pb.join.next(abortJoin)
	pb.join = join
	if effect != effectAborted {
		return
	}

	c.camera.ClearKeyframes()
	c.clock.ClearKeyframes()
	c.scheduler.StopPlayback(c.clock.ApplicationTime(), c.clock.SimulationTime())
	if err := pb.close(); err != nil {
		c.playLog.Warn("Ошибка закрытия файла воспроизведения %s: %v", pb.path, err)
	}
	c.pb = nil
	c.setState(StateIdle)
	c.metrics.PlaybackEvent("aborted")
	c.queue(eventbus.PlaybackAborted, pb.id, eventbus.SessionEvent{
		SessionID: pb.id,
		Path:      pb.path,
		Mode:      pb.conv.Mode.String(),
	})
	c.playLog.Info("⏹️ Воспроизведение %s прервано", pb.path)
}
