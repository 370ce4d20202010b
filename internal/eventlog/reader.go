package eventlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/annel0/session-replay/internal/keyframe"
	"github.com/klauspost/compress/gzip"
)

// Reader последовательно разбирает журнал, отслеживая номер строки
type Reader struct {
	path    string
	file    *os.File
	gz      *gzip.Reader
	scanner *bufio.Scanner
	line    int
}

// Open открывает журнал для чтения
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &keyframe.IOError{Op: "open", Path: path, Err: err}
	}

	r := &Reader{path: path, file: f}
	var src io.Reader = f
	if isCompressed(path) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &keyframe.IOError{Op: "open", Path: path, Err: err}
		}
		r.gz = gz
		src = gz
	}
	r.scanner = bufio.NewScanner(src)
	// +1 под перевод строки
	r.scanner.Buffer(make([]byte, 0, 64*1024), keyframe.MaxLineLength+1)
	return r, nil
}

// Path возвращает путь к журналу
func (r *Reader) Path() string { return r.path }

// Line возвращает номер последней прочитанной строки (с 1)
func (r *Reader) Line() int { return r.line }

// Next читает и разбирает следующую строку. В конце файла возвращает io.EOF.
// Ошибка разбора - *keyframe.ParseError с номером строки.
func (r *Reader) Next() (keyframe.Entry, error) {
	if r.scanner == nil {
		return keyframe.Entry{}, &keyframe.IOError{Op: "read", Path: r.path, Err: os.ErrClosed}
	}
	if !r.scanner.Scan() {
		err := r.scanner.Err()
		if errors.Is(err, bufio.ErrTooLong) {
			return keyframe.Entry{}, &keyframe.ParseError{
				Line:   r.line + 1,
				Reason: fmt.Sprintf("line longer than %d bytes", keyframe.MaxLineLength),
			}
		}
		if err != nil {
			return keyframe.Entry{}, &keyframe.IOError{Op: "read", Path: r.path, Err: err}
		}
		return keyframe.Entry{}, io.EOF
	}
	r.line++
	return keyframe.Decode(r.scanner.Text(), r.line)
}

// Close закрывает файл. Повторный вызов ничего не делает.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	var err error
	if r.gz != nil {
		err = r.gz.Close()
	}
	if cerr := r.file.Close(); cerr != nil && err == nil {
		err = cerr
	}
	r.file = nil
	r.scanner = nil
	if err != nil {
		return &keyframe.IOError{Op: "close", Path: r.path, Err: err}
	}
	return nil
}

// ReadAll читает журнал целиком до первой ошибки. Уже разобранные записи
// возвращаются вместе с ошибкой.
func ReadAll(path string) ([]keyframe.Entry, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	var entries []keyframe.Entry
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
}
