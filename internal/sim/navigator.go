package sim

import (
	"sync"

	"github.com/annel0/session-replay/internal/keyframe"
)

type poseKeyframe struct {
	at   float64
	pose keyframe.CameraPose
}

// Navigator хранит положение камеры и очередь ключевых кадров.
// Между соседними кадрами положение интерполируется линейно,
// поворот - сферически.
type Navigator struct {
	mu        sync.Mutex
	pose      keyframe.CameraPose
	keyframes []poseKeyframe
	prev      poseKeyframe
	hasPrev   bool
}

// NewNavigator создаёт навигатор в положении pose
func NewNavigator(pose keyframe.CameraPose) *Navigator {
	return &Navigator{pose: pose}
}

// Pose возвращает текущее положение камеры
func (n *Navigator) Pose() keyframe.CameraPose {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pose
}

// SetPose задаёт положение камеры напрямую
func (n *Navigator) SetPose(pose keyframe.CameraPose) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pose = pose
}

// AddKeyframe ставит положение pose на момент at по времени приложения
func (n *Navigator) AddKeyframe(at float64, pose keyframe.CameraPose) {
	n.mu.Lock()
	defer n.mu.Unlock()

	i := len(n.keyframes)
	for i > 0 && n.keyframes[i-1].at > at {
		i--
	}
	n.keyframes = append(n.keyframes, poseKeyframe{})
	copy(n.keyframes[i+1:], n.keyframes[i:])
	n.keyframes[i] = poseKeyframe{at: at, pose: pose}
}

// ClearKeyframes удаляет очередь; камера остаётся на месте
func (n *Navigator) ClearKeyframes() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.keyframes = nil
	n.hasPrev = false
}

// PlaybackFinished сообщает, что очередь кадров исчерпана
func (n *Navigator) PlaybackFinished() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.keyframes) == 0
}

// Update продвигает камеру к моменту appTime
func (n *Navigator) Update(appTime float64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.keyframes) == 0 {
		return
	}
	if !n.hasPrev {
		// Интерполяция к первому кадру начинается с текущего положения
		n.prev = poseKeyframe{at: appTime, pose: n.pose}
		n.hasPrev = true
	}

	passed := 0
	for passed < len(n.keyframes) && n.keyframes[passed].at <= appTime {
		passed++
	}
	if passed > 0 {
		n.prev = n.keyframes[passed-1]
		n.keyframes = n.keyframes[passed:]
	}
	if len(n.keyframes) == 0 {
		n.pose = n.prev.pose
		n.hasPrev = false
		return
	}

	next := n.keyframes[0]
	span := next.at - n.prev.at
	t := 1.0
	if span > 0 {
		t = (appTime - n.prev.at) / span
	}
	n.pose = keyframe.CameraPose{
		Position:            n.prev.pose.Position.Lerp(next.pose.Position, t),
		Rotation:            n.prev.pose.Rotation.Slerp(next.pose.Rotation, t),
		FollowFocusRotation: n.prev.pose.FollowFocusRotation,
		FocusNode:           n.prev.pose.FocusNode,
	}
}
