package session

// joinPhase - фаза объединения трёх дорожек
type joinPhase int

const (
	joinAllActive joinPhase = iota
	joinPartiallyDone
	joinFinished
	joinAborted
)

func (p joinPhase) String() string {
	switch p {
	case joinAllActive:
		return "all-active"
	case joinPartiallyDone:
		return "partially-done"
	case joinFinished:
		return "finished"
	case joinAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// joinEffect - что должен сделать владелец после перехода
type joinEffect int

const (
	effectNone      joinEffect = iota // Повтор или событие после завершения
	effectTrackDone                   // Дорожка завершилась, остальные ещё активны
	effectFinished                    // Завершилась последняя дорожка
	effectAborted                     // Воспроизведение прервано
)

const allTracks = 1<<TrackCamera | 1<<TrackClock | 1<<TrackScript

func trackBit(t Track) uint8 { return 1 << uint(t) }

// trackJoin ждёт завершения всех трёх дорожек в любом порядке.
// Finished и Aborted - конечные фазы: после них переходов нет, поэтому
// effectFinished выдаётся ровно один раз.
type trackJoin struct {
	phase     joinPhase
	remaining uint8
}

func newTrackJoin() trackJoin {
	return trackJoin{phase: joinAllActive, remaining: allTracks}
}

// joinEvent - вход автомата: завершение дорожки или отмена
type joinEvent struct {
	abort bool
	track Track
}

func trackDone(t Track) joinEvent { return joinEvent{track: t} }

var abortJoin = joinEvent{abort: true}

// next - единственная функция переходов автомата
func (j trackJoin) next(ev joinEvent) (trackJoin, joinEffect) {
	if j.phase == joinFinished || j.phase == joinAborted {
		return j, effectNone
	}
	if ev.abort {
		return trackJoin{phase: joinAborted, remaining: j.remaining}, effectAborted
	}

	bit := trackBit(ev.track)
	if j.remaining&bit == 0 {
		return j, effectNone
	}
	j.remaining &^= bit
	if j.remaining == 0 {
		j.phase = joinFinished
		return j, effectFinished
	}
	j.phase = joinPartiallyDone
	return j, effectTrackDone
}

// active сообщает, что дорожка ещё не завершилась
func (j trackJoin) active(t Track) bool {
	return j.remaining&trackBit(t) != 0
}

func (j trackJoin) done() bool {
	return j.phase == joinFinished || j.phase == joinAborted
}
