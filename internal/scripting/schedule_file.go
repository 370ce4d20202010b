package scripting

import (
	"fmt"

	"github.com/Shopify/go-lua"
	"github.com/annel0/session-replay/internal/schedule"
	"github.com/annel0/session-replay/internal/timeref"
)

// Ключи таблиц файла расписания
const (
	keyTime      = "Time"
	keyForward   = "ForwardScript"
	keyBackward  = "BackwardScript"
	keyUniversal = "Script"
	keyGroup     = "Group"
)

// LoadScheduleFile выполняет Lua-файл расписания и разбирает возвращённый
// список таблиц {Time=, ForwardScript=, BackwardScript=, Script=, Group=}.
// Time - строка эпохи или число секунд.
func (e *Engine) LoadScheduleFile(path string, epochs timeref.EpochConverter) ([]schedule.ScheduledScript, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadSchedule(path, epochs)
}

// loadSchedule требует удержания e.mu (или вызова из Lua)
func (e *Engine) loadSchedule(path string, epochs timeref.EpochConverter) ([]schedule.ScheduledScript, error) {
	l := e.l
	top := l.Top()
	defer l.SetTop(top)

	if err := lua.LoadFile(l, path, ""); err != nil {
		return nil, fmt.Errorf("load schedule %s: %w", path, err)
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run schedule %s: %w", path, err)
	}
	if !l.IsTable(-1) {
		return nil, fmt.Errorf("schedule %s must return a list of tables", path)
	}

	list := l.AbsIndex(-1)
	n := l.RawLength(list)
	entries := make([]schedule.ScheduledScript, 0, n)
	for i := 1; i <= n; i++ {
		l.RawGetInt(list, i)
		entry, err := readScheduledScript(l, epochs)
		l.Pop(1)
		if err != nil {
			return nil, fmt.Errorf("schedule %s entry %d: %w", path, i, err)
		}
		entries = append(entries, entry)
	}
	e.log.Info("📅 Загружено %d запланированных скриптов из %s", len(entries), path)
	return entries, nil
}

// readScheduledScript разбирает таблицу на вершине стека
func readScheduledScript(l *lua.State, epochs timeref.EpochConverter) (schedule.ScheduledScript, error) {
	if !l.IsTable(-1) {
		return schedule.ScheduledScript{}, fmt.Errorf("entry is %s, not a table", lua.TypeNameOf(l, -1))
	}
	entry := l.AbsIndex(-1)

	l.Field(entry, keyTime)
	epoch, err := epochArg(l, -1)
	l.Pop(1)
	if err != nil {
		return schedule.ScheduledScript{}, err
	}
	t, err := epochs.StringToEpoch(epoch)
	if err != nil {
		return schedule.ScheduledScript{}, err
	}

	out := schedule.ScheduledScript{
		Time:            t,
		ForwardScript:   stringField(l, entry, keyForward),
		BackwardScript:  stringField(l, entry, keyBackward),
		UniversalScript: stringField(l, entry, keyUniversal),
	}

	l.Field(entry, keyGroup)
	if g, ok := l.ToInteger(-1); ok {
		out.Group = g
	}
	l.Pop(1)
	return out, nil
}

func stringField(l *lua.State, index int, key string) string {
	l.Field(index, key)
	defer l.Pop(1)
	if l.TypeOf(-1) != lua.TypeString {
		return ""
	}
	s, _ := l.ToString(-1)
	return s
}
