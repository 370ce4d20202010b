package schedule

import (
	"fmt"
	"math"
	"sync"

	"github.com/annel0/session-replay/internal/logging"
	"github.com/annel0/session-replay/internal/metrics"
	"github.com/annel0/session-replay/internal/timeref"
)

// PlaybackGroup - группа, в которую попадают скрипты из файла воспроизведения
const PlaybackGroup = math.MinInt32

// Runner выполняет текст скрипта
type Runner interface {
	Execute(script string) error
}

// RunnerFunc позволяет использовать функцию как Runner
type RunnerFunc func(script string) error

// Execute вызывает f(script)
func (f RunnerFunc) Execute(script string) error { return f(script) }

// Scheduler выполняет скрипты временной шкалы по мере хода часов.
// В режиме времени симуляции шкала идёт по часам симуляции, в режиме
// времени приложения - по часам приложения, в режиме записанного времени -
// по времени приложения от момента переключения режима.
type Scheduler struct {
	mu             sync.Mutex
	timeline       *Timeline
	runner         Runner
	epochs         timeref.EpochConverter
	metrics        *metrics.Metrics
	log            *logging.Logger
	mode           timeref.Mode
	referenceStart float64
	playback       bool
}

// Option настраивает Scheduler
type Option func(*Scheduler)

// WithMetrics подключает метрики
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithLogger задаёт логгер
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// NewScheduler создаёт планировщик в режиме времени симуляции
func NewScheduler(runner Runner, epochs timeref.EpochConverter, opts ...Option) *Scheduler {
	s := &Scheduler{
		timeline: NewTimeline(),
		runner:   runner,
		epochs:   epochs,
		mode:     timeref.ModeSimulationTime,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.GetSchedulerLogger()
	}
	return s
}

// LoadScripts добавляет записи во временную шкалу
func (s *Scheduler) LoadScripts(entries ...ScheduledScript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline.Load(entries...)
	s.metrics.SetTimelineEntries(s.timeline.Len())
}

// LoadScheduledScript добавляет одну запись; время задаётся строкой эпохи
func (s *Scheduler) LoadScheduledScript(epoch, forward, backward, universal string, group int) error {
	t, err := s.epochs.StringToEpoch(epoch)
	if err != nil {
		return fmt.Errorf("scheduled script time: %w", err)
	}
	entry := ScheduledScript{
		Time:            t,
		ForwardScript:   forward,
		BackwardScript:  backward,
		UniversalScript: universal,
		Group:           group,
	}
	if entry.Empty() {
		s.log.Warn("Запланированный скрипт на %s не содержит ни одного скрипта", epoch)
	}
	s.LoadScripts(entry)
	return nil
}

// Clear удаляет все записи
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline.Clear()
	s.metrics.SetTimelineEntries(0)
}

// ClearGroup удаляет записи группы и возвращает их число
func (s *Scheduler) ClearGroup(group int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.timeline.ClearGroup(group)
	s.metrics.SetTimelineEntries(s.timeline.Len())
	return n
}

// SetEnabled включает или выключает выполнение скриптов
func (s *Scheduler) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline.SetEnabled(enabled)
}

// Enabled сообщает, включён ли планировщик
func (s *Scheduler) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Enabled()
}

// SetTimeReferenceMode переключает шкалу времени. appNow и simNow - текущие
// показания часов; курсор молча переносится в начало нового отсчёта, чтобы
// смена шкалы не выглядела как перемотка.
func (s *Scheduler) SetTimeReferenceMode(mode timeref.Mode, appNow, simNow float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setMode(mode, appNow, simNow)
}

func (s *Scheduler) setMode(mode timeref.Mode, appNow, simNow float64) {
	if s.mode != mode {
		s.log.Debug("Режим времени планировщика: %s -> %s", s.mode, mode)
	}
	s.mode = mode
	s.referenceStart = appNow
	// Записи ровно на текущем моменте должны сработать на ближайшем тике
	s.timeline.Seek(math.Nextafter(s.frameTime(appNow, simNow), math.Inf(-1)))
}

// Mode возвращает текущий режим времени
func (s *Scheduler) Mode() timeref.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Scheduler) frameTime(appTime, simTime float64) float64 {
	switch s.mode {
	case timeref.ModeApplicationTime:
		return appTime
	case timeref.ModeRecordedTime:
		return appTime - s.referenceStart
	default:
		return simTime
	}
}

// Tick перематывает шкалу к текущему времени и выполняет выданные скрипты.
// Возвращает количество выполненных скриптов.
func (s *Scheduler) Tick(appTime, simTime float64) int {
	s.mu.Lock()
	scripts := s.timeline.ScrubTo(s.frameTime(appTime, simTime))
	s.mu.Unlock()
	return s.run(scripts)
}

// SetCurrentTime перематывает шкалу сразу к t (скачок времени) и выполняет
// все пересечённые скрипты.
func (s *Scheduler) SetCurrentTime(t float64) int {
	s.mu.Lock()
	scripts := s.timeline.ScrubTo(t)
	s.mu.Unlock()
	return s.run(scripts)
}

// run выполняет скрипты без удержания блокировки: скрипт может сам
// обращаться к планировщику. Ошибки логируются, повторов нет.
func (s *Scheduler) run(scripts []string) int {
	for _, script := range scripts {
		err := s.runner.Execute(script)
		s.metrics.ScriptExecuted(err)
		if err != nil {
			s.log.Error("Ошибка запланированного скрипта %q: %v", script, err)
		}
	}
	return len(scripts)
}

// CurrentTime возвращает время последней перемотки
func (s *Scheduler) CurrentTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.CurrentTime()
}

// AllScripts возвращает копию всех записей
func (s *Scheduler) AllScripts() []ScheduledScript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.Scripts()
}

// ScriptsInGroup возвращает копию записей группы
func (s *Scheduler) ScriptsInGroup(group int) []ScheduledScript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeline.ScriptsInGroup(group)
}

// BeginPlayback готовит шкалу к новому воспроизведению: убирает скрипты
// прошлого воспроизведения и переключает режим времени.
func (s *Scheduler) BeginPlayback(mode timeref.Mode, appNow, simNow float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline.ClearGroup(PlaybackGroup)
	s.setMode(mode, appNow, simNow)
	s.playback = true
	s.metrics.SetTimelineEntries(s.timeline.Len())
}

// AddPlaybackScript ставит скрипт из файла воспроизведения на момент t
// в шкале текущего режима.
func (s *Scheduler) AddPlaybackScript(t float64, script string) {
	s.LoadScripts(ScheduledScript{Time: t, ForwardScript: script, Group: PlaybackGroup})
}

// PlaybackFinished сообщает, что все скрипты воспроизведения пройдены
func (s *Scheduler) PlaybackFinished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.timeline.LastTimeInGroup(PlaybackGroup)
	if !ok {
		return true
	}
	return s.timeline.CurrentTime() >= last
}

// EndPlayback вызывается при естественном завершении воспроизведения.
// Скрипты воспроизведения удаляются: их время задано в шкале режима
// воспроизведения и после возврата к времени симуляции не имеет смысла.
func (s *Scheduler) EndPlayback(appNow, simNow float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline.ClearGroup(PlaybackGroup)
	s.playback = false
	s.setMode(timeref.ModeSimulationTime, appNow, simNow)
	s.metrics.SetTimelineEntries(s.timeline.Len())
}

// StopPlayback прерывает воспроизведение: скрипты воспроизведения удаляются,
// режим возвращается к времени симуляции.
func (s *Scheduler) StopPlayback(appNow, simNow float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeline.ClearGroup(PlaybackGroup)
	s.playback = false
	s.setMode(timeref.ModeSimulationTime, appNow, simNow)
	s.metrics.SetTimelineEntries(s.timeline.Len())
}

// PlaybackActive сообщает, идёт ли воспроизведение
func (s *Scheduler) PlaybackActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playback
}
