package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Типы событий сессии
const (
	RecordingStarted = "recording.started"
	RecordingStopped = "recording.stopped"
	RecordingFailed  = "recording.failed"
	PlaybackStarted  = "playback.started"
	PlaybackFinished = "playback.finished"
	PlaybackAborted  = "playback.aborted"
	TrackFinished    = "playback.track_finished"
)

// SchemaVersion - версия полезной нагрузки событий сессии
const SchemaVersion = 1

// SessionEvent - полезная нагрузка событий записи и воспроизведения
type SessionEvent struct {
	SessionID string  `json:"session_id"`
	Path      string  `json:"path"`
	Mode      string  `json:"mode,omitempty"`
	Track     string  `json:"track,omitempty"`
	Lines     int     `json:"lines,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// NewEnvelope упаковывает payload в JSON и заполняет служебные поля.
// correlationID связывает все события одной сессии.
func NewEnvelope(source, eventType, correlationID string, payload any) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return &Envelope{
		ID:            uuid.NewString(),
		Timestamp:     time.Now().UTC(),
		Source:        source,
		EventType:     eventType,
		Version:       SchemaVersion,
		CorrelationID: correlationID,
		Priority:      5,
		Payload:       data,
	}, nil
}

// DecodeSessionEvent разбирает полезную нагрузку события сессии
func DecodeSessionEvent(ev *Envelope) (SessionEvent, error) {
	var se SessionEvent
	if err := json.Unmarshal(ev.Payload, &se); err != nil {
		return SessionEvent{}, fmt.Errorf("decode %s payload: %w", ev.EventType, err)
	}
	return se, nil
}
