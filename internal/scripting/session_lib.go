package scripting

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/annel0/session-replay/internal/keyframe"
	"github.com/annel0/session-replay/internal/timeref"
)

// SessionControl - команды записи и воспроизведения; реализуется session.Controller
type SessionControl interface {
	StartRecording(ctx context.Context, path string) error
	StopRecording(ctx context.Context) error
	StartPlayback(ctx context.Context, path string, mode timeref.Mode) error
	StopPlayback(ctx context.Context) error
	IsRecording() bool
	IsPlayingBack() bool
}

// SessionPaths задаёт разрешение имён файлов записи
type SessionPaths struct {
	Dir      string // относительные имена разрешаются от Dir
	Compress bool   // новые записи без расширения .gz получают его
}

// Resolve разрешает имя существующего файла
func (p SessionPaths) Resolve(name string) string {
	if p.Dir == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.Dir, name)
}

// Recording разрешает имя новой записи
func (p SessionPaths) Recording(name string) string {
	if p.Compress && !strings.HasSuffix(strings.ToLower(name), ".gz") {
		name += ".gz"
	}
	return p.Resolve(name)
}

// RegisterSessionLibrary добавляет глобальную таблицу sessionRecording
func RegisterSessionLibrary(e *Engine, ctrl SessionControl, paths SessionPaths) {
	startPlayback := func(l *lua.State, mode timeref.Mode) int {
		path := paths.Resolve(lua.CheckString(l, 1))
		err := ctrl.StartPlayback(e.ctx, path, mode)
		var perr *keyframe.ParseError
		if errors.As(err, &perr) {
			// Воспроизведение идёт с записями до ошибочной строки
			l.PushBoolean(false)
			l.PushString(err.Error())
			return 2
		}
		if err != nil {
			return raise(l, err)
		}
		l.PushBoolean(true)
		return 1
	}

	e.Register("sessionRecording", []lua.RegistryFunction{
		{Name: "startRecording", Function: func(l *lua.State) int {
			if err := ctrl.StartRecording(e.ctx, paths.Recording(lua.CheckString(l, 1))); err != nil {
				return raise(l, err)
			}
			return 0
		}},
		{Name: "stopRecording", Function: func(l *lua.State) int {
			if err := ctrl.StopRecording(e.ctx); err != nil {
				return raise(l, err)
			}
			return 0
		}},
		{Name: "startPlaybackApplicationTime", Function: func(l *lua.State) int {
			return startPlayback(l, timeref.ModeApplicationTime)
		}},
		{Name: "startPlaybackRecordedTime", Function: func(l *lua.State) int {
			return startPlayback(l, timeref.ModeRecordedTime)
		}},
		{Name: "startPlaybackSimulationTime", Function: func(l *lua.State) int {
			return startPlayback(l, timeref.ModeSimulationTime)
		}},
		{Name: "startPlayback", Function: func(l *lua.State) int {
			mode, err := timeref.ParseMode(lua.OptString(l, 2, timeref.ModeRecordedTime.String()))
			if err != nil {
				lua.ArgumentError(l, 2, err.Error())
				return 0
			}
			return startPlayback(l, mode)
		}},
		{Name: "stopPlayback", Function: func(l *lua.State) int {
			if err := ctrl.StopPlayback(e.ctx); err != nil {
				return raise(l, err)
			}
			return 0
		}},
		{Name: "isRecording", Function: func(l *lua.State) int {
			l.PushBoolean(ctrl.IsRecording())
			return 1
		}},
		{Name: "isPlayingBack", Function: func(l *lua.State) int {
			l.PushBoolean(ctrl.IsPlayingBack())
			return 1
		}},
	})
}
