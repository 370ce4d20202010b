// Package catalog хранит сведения о завершённых записях сессий.
package catalog

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound - записи с таким ID нет
	ErrNotFound = errors.New("catalog: recording not found")
	// ErrNotReady - каталог закрыт
	ErrNotReady = errors.New("catalog: not ready")
)

// RecordingInfo описывает один файл записи
type RecordingInfo struct {
	ID               string    `json:"id"`
	Path             string    `json:"path"`
	StartedAt        time.Time `json:"started_at"`
	StoppedAt        time.Time `json:"stopped_at"`
	ApplicationStart float64   `json:"application_start"` // Время приложения в момент старта
	SimulationStart  float64   `json:"simulation_start"`  // Время симуляции в момент старта
	CameraFrames     int       `json:"camera_frames"`
	ClockFrames      int       `json:"clock_frames"`
	Scripts          int       `json:"scripts"`
	Duration         float64   `json:"duration"` // Длительность по времени приложения, с
	Failed           bool      `json:"failed,omitempty"`
}

// Lines возвращает общее число строк в файле записи
func (r RecordingInfo) Lines() int {
	return r.CameraFrames + r.ClockFrames + r.Scripts
}

// Catalog - хранилище RecordingInfo
type Catalog interface {
	Put(ctx context.Context, info RecordingInfo) error
	Get(ctx context.Context, id string) (RecordingInfo, error)
	List(ctx context.Context) ([]RecordingInfo, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
