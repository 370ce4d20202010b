// Package schedule хранит упорядоченные по времени скрипты и выбирает,
// какие из них нужно выполнить при перемотке времени вперёд или назад.
package schedule

import (
	"math"
	"sort"
)

// ScheduledScript - скрипт, привязанный к моменту времени
type ScheduledScript struct {
	Time            float64 // Момент срабатывания (ключ сортировки)
	ForwardScript   string  // Выполняется при проходе Time вперёд
	BackwardScript  string  // Выполняется при проходе Time назад
	UniversalScript string  // Выполняется в обоих направлениях, перед направленным
	Group           int     // Группа для массового удаления; 0 - группа по умолчанию
}

// Empty сообщает, что у записи нет ни одного скрипта. Такие записи
// допустимы, но при проходе ничего не выполняют.
func (s ScheduledScript) Empty() bool {
	return s.ForwardScript == "" && s.BackwardScript == "" && s.UniversalScript == ""
}

// Разделитель между универсальным и направленным скриптом
const statementSeparator = "; "

func (s ScheduledScript) forward() string  { return join(s.UniversalScript, s.ForwardScript) }
func (s ScheduledScript) backward() string { return join(s.UniversalScript, s.BackwardScript) }

func join(universal, directional string) string {
	switch {
	case universal == "":
		return directional
	case directional == "":
		return universal
	default:
		return universal + statementSeparator + directional
	}
}

// Timeline - отсортированный список скриптов с курсором.
//
// Запись считается пройденной, если её Time <= CurrentTime, в обоих
// направлениях. Инвариант: CurrentIndex равен числу пройденных записей.
// После любой вставки или удаления курсор пересчитывается заново.
//
// Timeline не потокобезопасен; Scheduler добавляет блокировку.
type Timeline struct {
	scripts      []ScheduledScript
	currentIndex int
	currentTime  float64
	disabled     bool
}

// NewTimeline создаёт пустую временную шкалу, курсор в начале времён
func NewTimeline() *Timeline {
	return &Timeline{currentTime: math.Inf(-1)}
}

// Len возвращает количество записей
func (t *Timeline) Len() int { return len(t.scripts) }

// CurrentTime возвращает время последней перемотки
func (t *Timeline) CurrentTime() float64 { return t.currentTime }

// CurrentIndex возвращает число пройденных записей
func (t *Timeline) CurrentIndex() int { return t.currentIndex }

// Enabled сообщает, выдаёт ли шкала скрипты при перемотке
func (t *Timeline) Enabled() bool { return !t.disabled }

// SetEnabled включает или выключает выдачу скриптов. Выключенная шкала
// продолжает двигать курсор, поэтому после включения она согласована.
func (t *Timeline) SetEnabled(enabled bool) { t.disabled = !enabled }

// Load добавляет записи, сохраняя порядок вставки для одинакового времени,
// и пересчитывает курсор для текущего времени.
func (t *Timeline) Load(entries ...ScheduledScript) {
	if len(entries) == 0 {
		return
	}
	batch := make([]ScheduledScript, len(entries))
	copy(batch, entries)
	sortByTime(batch)

	t.scripts = append(t.scripts, batch...)
	sortByTime(t.scripts)
	t.rederive()
}

// Clear удаляет все записи и перематывает шкалу в начало
func (t *Timeline) Clear() {
	t.scripts = nil
	t.Rewind()
}

// ClearGroup удаляет записи группы group; остальные сохраняют порядок.
// Возвращает число удалённых записей.
func (t *Timeline) ClearGroup(group int) int {
	kept := t.scripts[:0]
	for _, s := range t.scripts {
		if s.Group != group {
			kept = append(kept, s)
		}
	}
	removed := len(t.scripts) - len(kept)
	// Хвост обнуляем, чтобы не держать строки
	for i := len(kept); i < len(t.scripts); i++ {
		t.scripts[i] = ScheduledScript{}
	}
	t.scripts = kept
	t.rederive()
	return removed
}

// Rewind ставит курсор в начало времён
func (t *Timeline) Rewind() {
	t.currentIndex = 0
	t.currentTime = math.Inf(-1)
}

// Seek молча ставит курсор во время t: записи не выдаются.
// Используется при смене шкалы времени.
func (t *Timeline) Seek(at float64) {
	t.Rewind()
	t.scrub(at)
}

// rederive заново вычисляет курсор для сохранённого времени.
// Скрипты, выданные перемоткой, отбрасываются.
func (t *Timeline) rederive() {
	t.Seek(t.currentTime)
}

// ScrubTo перемещает шкалу во время newTime и возвращает скрипты для
// выполнения по порядку. Вперёд - пройденные записи по возрастанию времени
// (универсальный + прямой скрипт), назад - по убыванию (универсальный +
// обратный скрипт). Повторный вызов с тем же временем возвращает nil.
func (t *Timeline) ScrubTo(newTime float64) []string {
	passed, forward := t.scrub(newTime)
	if t.disabled || len(passed) == 0 {
		return nil
	}

	result := make([]string, 0, len(passed))
	if forward {
		for _, s := range passed {
			if script := s.forward(); script != "" {
				result = append(result, script)
			}
		}
		return result
	}
	for i := len(passed) - 1; i >= 0; i-- {
		if script := passed[i].backward(); script != "" {
			result = append(result, script)
		}
	}
	return result
}

// scrub двигает курсор и возвращает срез пройденных записей в порядке
// возрастания времени и направление движения. Поиск идёт только по
// непройденной части при движении вперёд и только по пройденной - назад.
func (t *Timeline) scrub(newTime float64) ([]ScheduledScript, bool) {
	if newTime == t.currentTime || math.IsNaN(newTime) {
		return nil, false
	}

	prev := t.currentIndex
	if newTime > t.currentTime {
		// Первая запись в [prev, n) с Time > newTime
		tail := t.scripts[prev:]
		next := prev + sort.Search(len(tail), func(i int) bool {
			return tail[i].Time > newTime
		})
		t.currentIndex = next
		t.currentTime = newTime
		return t.scripts[prev:next], true
	}

	// Первая запись в [0, prev) с Time > newTime
	head := t.scripts[:prev]
	next := sort.Search(len(head), func(i int) bool {
		return head[i].Time > newTime
	})
	t.currentIndex = next
	t.currentTime = newTime
	return t.scripts[next:prev], false
}

// Scripts возвращает копию всех записей по порядку
func (t *Timeline) Scripts() []ScheduledScript {
	out := make([]ScheduledScript, len(t.scripts))
	copy(out, t.scripts)
	return out
}

// ScriptsInGroup возвращает копию записей группы group по порядку
func (t *Timeline) ScriptsInGroup(group int) []ScheduledScript {
	var out []ScheduledScript
	for _, s := range t.scripts {
		if s.Group == group {
			out = append(out, s)
		}
	}
	return out
}

// LastTimeInGroup возвращает наибольшее время записей группы
func (t *Timeline) LastTimeInGroup(group int) (float64, bool) {
	for i := len(t.scripts) - 1; i >= 0; i-- {
		if t.scripts[i].Group == group {
			return t.scripts[i].Time, true
		}
	}
	return 0, false
}

func sortByTime(s []ScheduledScript) {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Time < s[j].Time })
}
