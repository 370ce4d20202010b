// Package scripting - хост Lua-скриптов: выполняет скрипты планировщика и
// интерактивные команды, предоставляет библиотеки sessionRecording,
// scriptScheduler и simulation.
package scripting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Shopify/go-lua"
	"github.com/annel0/session-replay/internal/logging"
	"github.com/annel0/session-replay/internal/session"
)

// ScriptRecorder записывает выполненные интерактивные скрипты
type ScriptRecorder interface {
	IsRecording() bool
	RecordScript(ctx context.Context, text string) error
}

// Engine владеет состоянием Lua. Состояние не потокобезопасно, поэтому
// все вызовы сериализуются.
type Engine struct {
	mu       sync.Mutex
	l        *lua.State
	ctx      context.Context
	recorder ScriptRecorder
	log      *logging.Logger
}

// Option настраивает Engine
type Option func(*Engine)

// WithRecorder записывает интерактивные скрипты во время записи сессии
func WithRecorder(r ScriptRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithContext задаёт контекст, передаваемый из Lua в контроллер
func WithContext(ctx context.Context) Option {
	return func(e *Engine) { e.ctx = ctx }
}

// WithLogger задаёт логгер
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// NewEngine создаёт состояние Lua со стандартными библиотеками
func NewEngine(opts ...Option) *Engine {
	l := lua.NewState()
	lua.OpenLibraries(l)

	e := &Engine{l: l, ctx: context.Background()}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.GetScriptingLogger()
	}
	return e
}

// SetRecorder подключает запись интерактивных скриптов после создания
func (e *Engine) SetRecorder(r ScriptRecorder) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recorder = r
}

// Register делает функции доступными в Lua как глобальную таблицу name
func (e *Engine) Register(name string, funcs []lua.RegistryFunction) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.l.NewTable()
	lua.SetFunctions(e.l, funcs, 0)
	e.l.SetGlobal(name)
}

// Execute выполняет скрипт. Используется планировщиком: такие скрипты
// не попадают в запись сессии.
func (e *Engine) Execute(script string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doString(script)
}

// ExecuteInteractive выполняет команду пользователя. Если до выполнения
// шла запись, команда записывается как ключевой кадр скрипта.
func (e *Engine) ExecuteInteractive(script string) error {
	e.mu.Lock()
	recorder := e.recorder
	wasRecording := recorder != nil && recorder.IsRecording()
	err := e.doString(script)
	e.mu.Unlock()
	if err != nil {
		return err
	}

	if wasRecording {
		if err := recorder.RecordScript(e.ctx, script); err != nil && !errors.Is(err, session.ErrNotRecording) {
			e.log.Warn("Скрипт выполнен, но не записан: %v", err)
		}
	}
	return nil
}

// RunFile выполняет Lua-файл
func (e *Engine) RunFile(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	top := e.l.Top()
	defer e.l.SetTop(top)
	if err := lua.DoFile(e.l, path); err != nil {
		return fmt.Errorf("lua file %s: %w", path, err)
	}
	return nil
}

func (e *Engine) doString(script string) error {
	top := e.l.Top()
	defer e.l.SetTop(top)
	if err := lua.DoString(e.l, script); err != nil {
		e.log.Debug("Ошибка Lua в %q: %v", script, err)
		return fmt.Errorf("lua: %w", err)
	}
	return nil
}

// raise поднимает ошибку Lua из Go-функции
func raise(l *lua.State, err error) int {
	lua.Errorf(l, "%s", err.Error())
	return 0
}
