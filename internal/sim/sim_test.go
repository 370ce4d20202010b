package sim

import (
	"context"
	"testing"
	"time"

	"github.com/annel0/session-replay/internal/keyframe"
	"github.com/annel0/session-replay/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_AdvanceAndKeyframes(t *testing.T) {
	c := NewClock(1000)
	c.Advance(0.5)
	assert.Equal(t, 0.5, c.ApplicationTime())
	assert.Equal(t, 1000.5, c.SimulationTime())

	c.AddKeyframe(2, keyframe.Clock{Time: 5000, Rate: 10})
	c.AddKeyframe(1, keyframe.Clock{Time: 3000, Rate: 2, Paused: true})
	assert.False(t, c.PlaybackFinished())
	assert.Equal(t, 2, c.Pending())

	c.Advance(0.5) // app = 1
	assert.Equal(t, 3000.0, c.SimulationTime(), "кадр на 1 применён")
	assert.True(t, c.State().Paused)

	c.Advance(0.5) // на паузе время симуляции стоит
	assert.Equal(t, 3000.0, c.SimulationTime())

	c.Advance(0.5) // app = 2
	st := c.State()
	assert.Equal(t, 5000.0, st.Time)
	assert.Equal(t, 10.0, st.Rate)
	assert.False(t, st.Paused)
	assert.True(t, c.PlaybackFinished())

	c.Advance(1)
	assert.Equal(t, 5010.0, c.SimulationTime())
}

func TestClock_JumpFlag(t *testing.T) {
	c := NewClock(0)
	c.SetTime(42)
	assert.True(t, c.State().RequiresJump)
	assert.False(t, c.State().RequiresJump, "признак сбрасывается после чтения")

	c.AddKeyframe(1, keyframe.Clock{Time: 7, Rate: 1})
	c.ClearKeyframes()
	assert.True(t, c.PlaybackFinished())
}

func TestNavigator_Interpolates(t *testing.T) {
	n := NewNavigator(keyframe.CameraPose{Rotation: vec.IdentityQuat()})
	n.AddKeyframe(1, keyframe.CameraPose{Position: vec.Vec3Float{X: 0}, Rotation: vec.IdentityQuat(), FocusNode: "Earth"})
	n.AddKeyframe(3, keyframe.CameraPose{Position: vec.Vec3Float{X: 10}, Rotation: vec.IdentityQuat(), FocusNode: "Moon"})

	n.Update(1)
	assert.Equal(t, "Earth", n.Pose().FocusNode)
	assert.Equal(t, 0.0, n.Pose().Position.X)

	n.Update(2)
	assert.InDelta(t, 5.0, n.Pose().Position.X, 1e-9)
	assert.False(t, n.PlaybackFinished())

	n.Update(3.5)
	assert.Equal(t, 10.0, n.Pose().Position.X)
	assert.Equal(t, "Moon", n.Pose().FocusNode)
	assert.True(t, n.PlaybackFinished())
}

func TestNavigator_ClearKeepsPose(t *testing.T) {
	start := keyframe.CameraPose{Position: vec.Vec3Float{Y: 3}, Rotation: vec.IdentityQuat()}
	n := NewNavigator(start)
	n.AddKeyframe(10, keyframe.CameraPose{Position: vec.Vec3Float{Y: 100}})
	n.ClearKeyframes()
	n.Update(20)
	assert.Equal(t, start, n.Pose())
	assert.True(t, n.PlaybackFinished())
}

type countingScheduler struct{ calls []float64 }

func (s *countingScheduler) Tick(app, sim float64) int {
	s.calls = append(s.calls, app)
	return 0
}

type countingSession struct{ ticks int }

func (s *countingSession) Tick(ctx context.Context) { s.ticks++ }

func TestLoop_StepOrder(t *testing.T) {
	sched := &countingScheduler{}
	sess := &countingSession{}
	l := NewLoop(NewClock(0), NewNavigator(keyframe.CameraPose{}), sched, sess, 30)

	l.Step(context.Background(), 0.25)
	l.Step(context.Background(), 0.25)
	assert.Equal(t, []float64{0.25, 0.5}, sched.calls)
	assert.Equal(t, 2, sess.ticks)
	assert.Equal(t, uint64(2), l.Ticks())
}

func TestLoop_RunAndSubmit(t *testing.T) {
	sess := &countingSession{}
	l := NewLoop(NewClock(0), NewNavigator(keyframe.CameraPose{}), nil, sess, 200)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()

	var ran bool
	require.NoError(t, l.Submit(ctx, func() { ran = true }))
	assert.True(t, ran)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("цикл не остановился")
	}

	assert.ErrorIs(t, l.Submit(ctx, func() {}), context.Canceled)
}
