package scripting

import (
	"github.com/Shopify/go-lua"
	"github.com/annel0/session-replay/internal/timeref"
)

// ClockControl - управление часами симуляции; реализуется sim.Clock
type ClockControl interface {
	TimeSource
	SetTime(t float64)
	SetRate(rate float64)
	SetPaused(paused bool)
}

// RegisterSimulationLibrary добавляет глобальную таблицу simulation
func RegisterSimulationLibrary(e *Engine, clock ClockControl, epochs timeref.EpochConverter) {
	e.Register("simulation", []lua.RegistryFunction{
		{Name: "setPause", Function: func(l *lua.State) int {
			clock.SetPaused(l.ToBoolean(1))
			return 0
		}},
		{Name: "setRate", Function: func(l *lua.State) int {
			clock.SetRate(lua.CheckNumber(l, 1))
			return 0
		}},
		{Name: "setTime", Function: func(l *lua.State) int {
			epoch, err := epochArg(l, 1)
			if err != nil {
				lua.ArgumentError(l, 1, err.Error())
				return 0
			}
			t, err := epochs.StringToEpoch(epoch)
			if err != nil {
				return raise(l, err)
			}
			clock.SetTime(t)
			return 0
		}},
		{Name: "currentTime", Function: func(l *lua.State) int {
			l.PushNumber(clock.SimulationTime())
			return 1
		}},
		{Name: "currentTimeString", Function: func(l *lua.State) int {
			l.PushString(epochs.EpochToString(clock.SimulationTime()))
			return 1
		}},
		{Name: "applicationTime", Function: func(l *lua.State) int {
			l.PushNumber(clock.ApplicationTime())
			return 1
		}},
	})
}
