// Package sim - минимальный движок без рендера: часы симуляции, навигатор
// камеры и цикл тиков, который продвигает их вместе с планировщиком и
// контроллером сессии.
package sim

import (
	"sync"

	"github.com/annel0/session-replay/internal/keyframe"
)

type clockKeyframe struct {
	at float64
	kf keyframe.Clock
}

// Clock ведёт время приложения (секунды от старта) и время симуляции
// (секунды J2000). Ключевые кадры применяются, когда время приложения
// достигает их момента.
type Clock struct {
	mu        sync.Mutex
	app       float64
	sim       float64
	rate      float64
	paused    bool
	jumped    bool
	keyframes []clockKeyframe
}

// NewClock создаёт часы со временем симуляции simStart и скоростью 1
func NewClock(simStart float64) *Clock {
	return &Clock{sim: simStart, rate: 1}
}

// ApplicationTime - секунды от запуска приложения
func (c *Clock) ApplicationTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.app
}

// SimulationTime - текущее время симуляции
func (c *Clock) SimulationTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sim
}

// State возвращает состояние часов и сбрасывает признак скачка времени
func (c *Clock) State() keyframe.Clock {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := keyframe.Clock{Time: c.sim, Rate: c.rate, Paused: c.paused, RequiresJump: c.jumped}
	c.jumped = false
	return st
}

// SetTime переводит время симуляции скачком
func (c *Clock) SetTime(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sim = t
	c.jumped = true
}

// SetRate задаёт скорость течения времени симуляции
func (c *Clock) SetRate(rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rate = rate
}

// SetPaused ставит или снимает паузу
func (c *Clock) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
}

// Advance продвигает время приложения на dt секунд и применяет наступившие
// ключевые кадры. Последний наступивший кадр определяет состояние.
func (c *Clock) Advance(dt float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.app += dt
	if !c.paused {
		c.sim += c.rate * dt
	}

	n := 0
	for n < len(c.keyframes) && c.keyframes[n].at <= c.app {
		kf := c.keyframes[n].kf
		c.sim = kf.Time
		c.rate = kf.Rate
		c.paused = kf.Paused
		if kf.RequiresJump {
			c.jumped = true
		}
		n++
	}
	c.keyframes = c.keyframes[n:]
}

// AddKeyframe ставит состояние kf на момент at по времени приложения.
// Кадры хранятся по возрастанию at.
func (c *Clock) AddKeyframe(at float64, kf keyframe.Clock) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := len(c.keyframes)
	for i > 0 && c.keyframes[i-1].at > at {
		i--
	}
	c.keyframes = append(c.keyframes, clockKeyframe{})
	copy(c.keyframes[i+1:], c.keyframes[i:])
	c.keyframes[i] = clockKeyframe{at: at, kf: kf}
}

// ClearKeyframes удаляет все ожидающие кадры
func (c *Clock) ClearKeyframes() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keyframes = nil
}

// PlaybackFinished сообщает, что ожидающих кадров нет
func (c *Clock) PlaybackFinished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keyframes) == 0
}

// Pending возвращает число ожидающих кадров
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keyframes)
}
