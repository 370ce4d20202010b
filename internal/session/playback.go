package session

import (
	"errors"
	"io"

	"github.com/annel0/session-replay/internal/eventlog"
	"github.com/annel0/session-replay/internal/keyframe"
	"github.com/annel0/session-replay/internal/timeref"
)

// playback - состояние одного воспроизведения
type playback struct {
	id     string
	path   string
	conv   timeref.Converter
	reader *eventlog.Reader
	join   trackJoin

	dispatched int
}

// dispatcher получает разобранные записи файла
type dispatcher interface {
	dispatch(conv timeref.Converter, e keyframe.Entry)
}

// load читает файл целиком и передаёт каждую запись потребителю.
// Останавливается на первой ошибочной строке; уже переданные записи
// остаются в силе, ошибка возвращается вызывающему.
func (p *playback) load(d dispatcher) error {
	first := true
	for {
		e, err := p.reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if first {
			p.conv.RecordingSimulationStart = e.Stamp.Simulation
			first = false
		}
		d.dispatch(p.conv, e)
		p.dispatched++
	}
}

func (p *playback) close() error {
	if p.reader == nil {
		return nil
	}
	err := p.reader.Close()
	p.reader = nil
	return err
}
