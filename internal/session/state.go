// Package session записывает ход сессии в журнал событий и воспроизводит
// его, раздавая ключевые кадры камере, часам и планировщику скриптов.
package session

import "errors"

// State - режим контроллера сессии
type State int

const (
	StateIdle State = iota
	StateRecording
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}

// Track - дорожка воспроизведения с независимым завершением
type Track int

const (
	TrackCamera Track = iota
	TrackClock
	TrackScript
)

// Tracks перечисляет все дорожки
var Tracks = [...]Track{TrackCamera, TrackClock, TrackScript}

func (t Track) String() string {
	switch t {
	case TrackCamera:
		return "camera"
	case TrackClock:
		return "clock"
	case TrackScript:
		return "script"
	default:
		return "unknown"
	}
}

var (
	// ErrNotRecording - операция требует активной записи
	ErrNotRecording = errors.New("session: not recording")
	// ErrNotPlaying - операция требует активного воспроизведения
	ErrNotPlaying = errors.New("session: not playing")
	// ErrAlreadyRecording - запись уже идёт
	ErrAlreadyRecording = errors.New("session: already recording")
	// ErrAlreadyPlaying - воспроизведение уже идёт
	ErrAlreadyPlaying = errors.New("session: already playing")
	// ErrInvalidScript - скрипт нельзя записать одной строкой журнала (перевод строки, пустой текст, превышение MaxScriptLength)
	ErrInvalidScript = errors.New("session: script must be a single non-empty line")
	// ErrRecordingActive - воспроизведение нельзя начать во время записи
	ErrRecordingActive = errors.New("session: cannot play back while recording")
)
