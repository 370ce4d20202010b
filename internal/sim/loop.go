package sim

import (
	"context"
	"time"

	"github.com/annel0/session-replay/internal/logging"
)

// ScriptTicker - планировщик скриптов, продвигаемый часами
type ScriptTicker interface {
	Tick(appTime, simTime float64) int
}

// SessionTicker - контроллер записи и воспроизведения
type SessionTicker interface {
	Tick(ctx context.Context)
}

// Loop - единственный поток тиков. Команды извне выполняются в нём же
// между тиками, поэтому движок скриптов не нужно защищать.
type Loop struct {
	clock     *Clock
	camera    *Navigator
	scheduler ScriptTicker
	session   SessionTicker
	interval  time.Duration
	commands  chan func()
	ticks     uint64
	log       *logging.Logger
}

// NewLoop создаёт цикл с частотой tickRate тиков в секунду
func NewLoop(clock *Clock, camera *Navigator, scheduler ScriptTicker, session SessionTicker, tickRate int) *Loop {
	if tickRate <= 0 {
		tickRate = 60
	}
	return &Loop{
		clock:     clock,
		camera:    camera,
		scheduler: scheduler,
		session:   session,
		interval:  time.Second / time.Duration(tickRate),
		commands:  make(chan func(), 64),
		log:       logging.GetComponentLogger("sim"),
	}
}

// Run крутит цикл до отмены ctx
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.log.Info("⏱️ Цикл симуляции запущен: %v на тик", l.interval)
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			l.log.Info("Цикл симуляции остановлен после %d тиков", l.ticks)
			return
		case fn := <-l.commands:
			fn()
		case now := <-ticker.C:
			l.Step(ctx, now.Sub(last).Seconds())
			last = now
		}
	}
}

// Step выполняет один тик: часы, камера, скрипты, затем сессия.
// Сессия видит состояние, уже продвинутое на этом тике.
func (l *Loop) Step(ctx context.Context, dt float64) {
	l.clock.Advance(dt)
	app, sim := l.clock.ApplicationTime(), l.clock.SimulationTime()
	l.camera.Update(app)
	if l.scheduler != nil {
		l.scheduler.Tick(app, sim)
	}
	if l.session != nil {
		l.session.Tick(ctx)
	}
	l.ticks++
}

// Submit выполняет fn в потоке цикла и ждёт завершения
func (l *Loop) Submit(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case l.commands <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ticks возвращает число выполненных тиков. Читать только из потока цикла.
func (l *Loop) Ticks() uint64 {
	return l.ticks
}
