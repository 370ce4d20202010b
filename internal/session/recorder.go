package session

import (
	"time"

	"github.com/annel0/session-replay/internal/catalog"
	"github.com/annel0/session-replay/internal/eventlog"
	"github.com/annel0/session-replay/internal/keyframe"
	"github.com/annel0/session-replay/internal/timeref"
)

// recorder - состояние одной активной записи
type recorder struct {
	id        string
	w         *eventlog.Writer
	startedAt time.Time
	appStart  float64
	simStart  float64
	lastRel   float64

	cameraFrames int
	clockFrames  int
	scripts      int
}

func newRecorder(id string, w *eventlog.Writer, appNow, simNow float64) *recorder {
	return &recorder{
		id:        id,
		w:         w,
		startedAt: time.Now().UTC(),
		appStart:  appNow,
		simStart:  simNow,
	}
}

// stamp строит метки записи. Relative не убывает в пределах записи.
func (r *recorder) stamp(appNow, simNow float64) timeref.Stamp {
	rel := appNow - r.appStart
	if rel < r.lastRel {
		rel = r.lastRel
	}
	r.lastRel = rel
	return timeref.Stamp{Application: appNow, Relative: rel, Simulation: simNow}
}

// writeFrame пишет парные строки камеры и часов одного тика
func (r *recorder) writeFrame(stamp timeref.Stamp, pose keyframe.CameraPose, clock keyframe.Clock) error {
	if err := r.w.Append(keyframe.NewCameraEntry(stamp, pose)); err != nil {
		return err
	}
	r.cameraFrames++
	if err := r.w.Append(keyframe.NewClockEntry(stamp, clock)); err != nil {
		return err
	}
	r.clockFrames++
	return nil
}

func (r *recorder) writeScript(stamp timeref.Stamp, text string) error {
	if err := r.w.Append(keyframe.NewScriptEntry(stamp, text)); err != nil {
		return err
	}
	r.scripts++
	return nil
}

func (r *recorder) info(failed bool) catalog.RecordingInfo {
	return catalog.RecordingInfo{
		ID:               r.id,
		Path:             r.w.Path(),
		StartedAt:        r.startedAt,
		StoppedAt:        time.Now().UTC(),
		ApplicationStart: r.appStart,
		SimulationStart:  r.simStart,
		CameraFrames:     r.cameraFrames,
		ClockFrames:      r.clockFrames,
		Scripts:          r.scripts,
		Duration:         r.lastRel,
		Failed:           failed,
	}
}
