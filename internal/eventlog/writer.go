// Package eventlog пишет и читает построчный журнал ключевых кадров.
// Файлы с расширением .gz сжимаются gzip.
package eventlog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/annel0/session-replay/internal/keyframe"
	"github.com/klauspost/compress/gzip"
)

// Writer дописывает записи в журнал. Каждая строка сбрасывается на диск
// сразу после записи: при падении теряется не больше одной строки.
type Writer struct {
	path  string
	file  *os.File
	gz    *gzip.Writer
	buf   *bufio.Writer
	lines int
}

// Create создаёт (или перезаписывает) журнал по пути path
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, &keyframe.IOError{Op: "open", Path: path, Err: err}
	}

	w := &Writer{path: path, file: f}
	var sink io.Writer = f
	if isCompressed(path) {
		w.gz = gzip.NewWriter(f)
		sink = w.gz
	}
	w.buf = bufio.NewWriter(sink)
	return w, nil
}

func isCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// Path возвращает путь к файлу журнала
func (w *Writer) Path() string { return w.path }

// Lines возвращает количество записанных строк
func (w *Writer) Lines() int { return w.lines }

// Append кодирует запись, пишет её строкой и сбрасывает буферы
func (w *Writer) Append(e keyframe.Entry) error {
	line, err := keyframe.Encode(e)
	if err != nil {
		return err
	}
	return w.WriteLine(line)
}

// WriteLine пишет готовую строку журнала
func (w *Writer) WriteLine(line string) error {
	if w.file == nil {
		return &keyframe.IOError{Op: "write", Path: w.path, Err: os.ErrClosed}
	}
	if len(line) > keyframe.MaxLineLength {
		return fmt.Errorf("%w: %d bytes, limit %d", keyframe.ErrLineTooLong, len(line), keyframe.MaxLineLength)
	}
	if _, err := w.buf.WriteString(line); err != nil {
		return &keyframe.IOError{Op: "write", Path: w.path, Err: err}
	}
	if err := w.buf.WriteByte('\n'); err != nil {
		return &keyframe.IOError{Op: "write", Path: w.path, Err: err}
	}
	if err := w.flush(); err != nil {
		return err
	}
	w.lines++
	return nil
}

func (w *Writer) flush() error {
	if err := w.buf.Flush(); err != nil {
		return &keyframe.IOError{Op: "write", Path: w.path, Err: err}
	}
	if w.gz != nil {
		if err := w.gz.Flush(); err != nil {
			return &keyframe.IOError{Op: "write", Path: w.path, Err: err}
		}
	}
	return nil
}

// Close сбрасывает остаток и закрывает файл. Повторный вызов ничего не делает.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	defer func() { w.file = nil }()

	err := w.flush()
	if w.gz != nil {
		if cerr := w.gz.Close(); cerr != nil && err == nil {
			err = &keyframe.IOError{Op: "close", Path: w.path, Err: cerr}
		}
	}
	if cerr := w.file.Close(); cerr != nil && err == nil {
		err = &keyframe.IOError{Op: "close", Path: w.path, Err: cerr}
	}
	return err
}
