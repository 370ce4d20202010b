// Package timeref переводит метки времени записи между тремя системами отсчёта:
// временем приложения, временем от начала записи и абсолютным временем симуляции.
package timeref

import (
	"fmt"
	"strings"
)

// Mode задаёт, относительно чего воспроизводятся записанные метки времени
type Mode int

const (
	// ModeApplicationTime - метки времени приложения используются как есть
	ModeApplicationTime Mode = iota
	// ModeRecordedTime - время от начала записи, отсчитываемое от старта воспроизведения
	ModeRecordedTime
	// ModeSimulationTime - время симуляции, перенесённое на текущую эпоху
	ModeSimulationTime
)

// String возвращает имя режима в том виде, в каком его принимает ParseMode
func (m Mode) String() string {
	switch m {
	case ModeApplicationTime:
		return "application-time"
	case ModeRecordedTime:
		return "recorded-time"
	case ModeSimulationTime:
		return "simulation-time"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode разбирает имя режима
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "application-time", "application":
		return ModeApplicationTime, nil
	case "recorded-time", "recorded":
		return ModeRecordedTime, nil
	case "simulation-time", "simulation":
		return ModeSimulationTime, nil
	}
	return 0, fmt.Errorf("unknown time reference mode %q", s)
}
