package keyframe

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/annel0/session-replay/internal/timeref"
	"github.com/annel0/session-replay/internal/vec"
)

// Пустой узел фокуса пишется этим токеном
const noFocusNode = "-"

// Флаги в строках журнала
const (
	flagFollow   = "F"
	flagPaused   = "P"
	flagRunning  = "R"
	flagJump     = "J"
	flagNoOption = "-"
)

// Количество токенов в строках фиксированной длины
const (
	cameraTokens = 13
	clockTokens  = 7
	headerTokens = 4 // тип и три метки времени
)

// MaxLineLength - предел длины строки журнала без перевода строки.
// Reader не читает строки длиннее.
const MaxLineLength = 1 << 20

// MaxScriptLength - предел длины скрипта с запасом на заголовок строки
const MaxScriptLength = MaxLineLength - 128

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Encode форматирует запись в строку журнала без перевода строки
func Encode(e Entry) (string, error) {
	var b strings.Builder
	header := func(t Type, simulation string) {
		b.WriteString(string(t))
		b.WriteByte(' ')
		b.WriteString(formatFloat(e.Stamp.Application))
		b.WriteByte(' ')
		b.WriteString(formatFloat(e.Stamp.Relative))
		b.WriteByte(' ')
		b.WriteString(simulation)
	}

	switch e.Type() {
	case TypeCamera:
		c := e.Camera
		node := c.FocusNode
		if node == "" {
			node = noFocusNode
		}
		if strings.ContainsAny(node, " \t\r\n") {
			return "", fmt.Errorf("focus node %q contains whitespace", node)
		}
		header(TypeCamera, formatFloat(e.Stamp.Simulation))
		for _, v := range []float64{
			c.Position.X, c.Position.Y, c.Position.Z,
			c.Rotation.X, c.Rotation.Y, c.Rotation.Z, c.Rotation.W,
		} {
			b.WriteByte(' ')
			b.WriteString(formatFloat(v))
		}
		b.WriteByte(' ')
		b.WriteString(flag(c.FollowFocusRotation, flagFollow, flagNoOption))
		b.WriteByte(' ')
		b.WriteString(node)

	case TypeClock:
		c := e.Clock
		header(TypeClock, strconv.FormatFloat(c.Time, 'f', 3, 64))
		b.WriteByte(' ')
		b.WriteString(formatFloat(c.Rate))
		b.WriteByte(' ')
		b.WriteString(flag(c.Paused, flagPaused, flagRunning))
		b.WriteByte(' ')
		b.WriteString(flag(c.RequiresJump, flagJump, flagNoOption))

	case TypeScript:
		if strings.ContainsAny(e.Script.Text, "\r\n") {
			return "", fmt.Errorf("script text must be a single line")
		}
		if strings.TrimSpace(e.Script.Text) == "" {
			return "", fmt.Errorf("script text is empty")
		}
		header(TypeScript, formatFloat(e.Stamp.Simulation))
		b.WriteByte(' ')
		b.WriteString(e.Script.Text)

	default:
		return "", fmt.Errorf("entry has no payload")
	}
	if b.Len() > MaxLineLength {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrLineTooLong, b.Len(), MaxLineLength)
	}
	return b.String(), nil
}

func flag(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}

// Decode разбирает одну строку журнала. lineNum используется только в ошибке.
func Decode(line string, lineNum int) (Entry, error) {
	line = strings.TrimRight(line, "\r")
	fail := func(format string, args ...interface{}) (Entry, error) {
		return Entry{}, &ParseError{Line: lineNum, Text: line, Reason: fmt.Sprintf(format, args...)}
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fail("empty line")
	}

	t := Type(fields[0])
	switch t {
	case TypeCamera, TypeClock, TypeScript:
	default:
		return fail("unknown entry type %q", fields[0])
	}
	if len(fields) < headerTokens {
		return fail("missing timestamps")
	}

	var times [3]float64
	for i := range times {
		v, err := strconv.ParseFloat(fields[1+i], 64)
		if err != nil {
			return fail("bad timestamp %q", fields[1+i])
		}
		times[i] = v
	}
	stamp := timeref.Stamp{Application: times[0], Relative: times[1], Simulation: times[2]}

	switch t {
	case TypeCamera:
		if len(fields) != cameraTokens {
			return fail("camera entry needs %d fields, got %d", cameraTokens, len(fields))
		}
		var nums [7]float64
		for i := range nums {
			v, err := strconv.ParseFloat(fields[headerTokens+i], 64)
			if err != nil {
				return fail("bad camera value %q", fields[headerTokens+i])
			}
			nums[i] = v
		}
		follow, ok := parseFlag(fields[11], flagFollow, flagNoOption)
		if !ok {
			return fail("bad follow flag %q", fields[11])
		}
		node := fields[12]
		if node == noFocusNode {
			node = ""
		}
		return NewCameraEntry(stamp, CameraPose{
			Position:            vec.Vec3Float{X: nums[0], Y: nums[1], Z: nums[2]},
			Rotation:            vec.Quat{X: nums[3], Y: nums[4], Z: nums[5], W: nums[6]},
			FollowFocusRotation: follow,
			FocusNode:           node,
		}), nil

	case TypeClock:
		if len(fields) != clockTokens {
			return fail("time entry needs %d fields, got %d", clockTokens, len(fields))
		}
		rate, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return fail("bad rate %q", fields[4])
		}
		paused, ok := parseFlag(fields[5], flagPaused, flagRunning)
		if !ok {
			return fail("bad pause flag %q", fields[5])
		}
		jump, ok := parseFlag(fields[6], flagJump, flagNoOption)
		if !ok {
			return fail("bad jump flag %q", fields[6])
		}
		return Entry{Stamp: stamp, Clock: &Clock{
			Time:         stamp.Simulation,
			Rate:         rate,
			Paused:       paused,
			RequiresJump: jump,
		}}, nil

	default:
		text, ok := scriptText(line)
		if !ok {
			return fail("script entry has no text")
		}
		return NewScriptEntry(stamp, text), nil
	}
}

func parseFlag(tok, yes, no string) (bool, bool) {
	switch tok {
	case yes:
		return true, true
	case no:
		return false, true
	}
	return false, false
}

// scriptText возвращает остаток строки после четвёртого токена без
// единственного разделителя; внутренние пробелы сохраняются.
func scriptText(line string) (string, bool) {
	rest := strings.TrimLeft(line, " \t")
	for i := 0; i < headerTokens; i++ {
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			return "", false
		}
		rest = rest[end:]
		if i < headerTokens-1 {
			rest = strings.TrimLeft(rest, " \t")
		}
	}
	// rest начинается с разделителя после tsSim
	rest = rest[1:]
	if strings.TrimSpace(rest) == "" {
		return "", false
	}
	return rest, true
}
