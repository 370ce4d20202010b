package scripting

import (
	"fmt"
	"strconv"

	"github.com/Shopify/go-lua"
	"github.com/annel0/session-replay/internal/schedule"
	"github.com/annel0/session-replay/internal/timeref"
)

// SchedulerControl - операции планировщика, доступные из Lua
type SchedulerControl interface {
	LoadScripts(entries ...schedule.ScheduledScript)
	LoadScheduledScript(epoch, forward, backward, universal string, group int) error
	Clear()
	ClearGroup(group int) int
	SetEnabled(enabled bool)
	SetTimeReferenceMode(mode timeref.Mode, appNow, simNow float64)
}

// TimeSource - текущие показания часов
type TimeSource interface {
	ApplicationTime() float64
	SimulationTime() float64
}

// RegisterSchedulerLibrary добавляет глобальную таблицу scriptScheduler
func RegisterSchedulerLibrary(e *Engine, sched SchedulerControl, clock TimeSource, epochs timeref.EpochConverter) {
	setMode := func(mode timeref.Mode) lua.Function {
		return func(l *lua.State) int {
			sched.SetTimeReferenceMode(mode, clock.ApplicationTime(), clock.SimulationTime())
			return 0
		}
	}

	e.Register("scriptScheduler", []lua.RegistryFunction{
		{Name: "loadScheduledScript", Function: func(l *lua.State) int {
			epoch, err := epochArg(l, 1)
			if err != nil {
				lua.ArgumentError(l, 1, err.Error())
				return 0
			}
			forward := lua.CheckString(l, 2)
			backward := lua.OptString(l, 3, "")
			universal := lua.OptString(l, 4, "")
			group := lua.OptInteger(l, 5, 0)
			if err := sched.LoadScheduledScript(epoch, forward, backward, universal, group); err != nil {
				return raise(l, err)
			}
			return 0
		}},
		{Name: "loadFile", Function: func(l *lua.State) int {
			path := lua.CheckString(l, 1)
			entries, err := e.loadSchedule(path, epochs)
			if err != nil {
				return raise(l, err)
			}
			sched.LoadScripts(entries...)
			l.PushInteger(len(entries))
			return 1
		}},
		{Name: "clear", Function: func(l *lua.State) int {
			if l.IsNoneOrNil(1) {
				sched.Clear()
				return 0
			}
			sched.ClearGroup(lua.CheckInteger(l, 1))
			return 0
		}},
		{Name: "setEnabled", Function: func(l *lua.State) int {
			sched.SetEnabled(l.ToBoolean(1))
			return 0
		}},
		{Name: "setModeApplicationTime", Function: setMode(timeref.ModeApplicationTime)},
		{Name: "setModeRecordedTime", Function: setMode(timeref.ModeRecordedTime)},
		{Name: "setModeSimulationTime", Function: setMode(timeref.ModeSimulationTime)},
	})
}

// epochArg принимает время строкой эпохи или числом секунд
func epochArg(l *lua.State, index int) (string, error) {
	switch l.TypeOf(index) {
	case lua.TypeString:
		s, _ := l.ToString(index)
		return s, nil
	case lua.TypeNumber:
		v, _ := l.ToNumber(index)
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	default:
		return "", fmt.Errorf("time must be an epoch string or seconds, got %s", lua.TypeNameOf(l, index))
	}
}
