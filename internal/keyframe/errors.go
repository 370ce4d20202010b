package keyframe

import (
	"errors"
	"fmt"
)

var (
	// ErrIO - ошибка открытия, записи или чтения журнала
	ErrIO = errors.New("keyframe log i/o error")
	// ErrParse - некорректная строка журнала
	ErrParse = errors.New("keyframe log parse error")
	// ErrLineTooLong - строка не поместится в буфер чтения журнала
	ErrLineTooLong = errors.New("keyframe log line too long")
)

// IOError описывает неудачную файловую операцию
type IOError struct {
	Op   string // open, write, read, close
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap позволяет errors.Is(err, os.ErrNotExist) и т.п.
func (e *IOError) Unwrap() error { return e.Err }

// Is сопоставляет IOError с ErrIO
func (e *IOError) Is(target error) bool { return target == ErrIO }

// ParseError - ошибка разбора строки с номером (с 1) и исходным текстом
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Is сопоставляет ParseError с ErrParse
func (e *ParseError) Is(target error) bool { return target == ErrParse }
