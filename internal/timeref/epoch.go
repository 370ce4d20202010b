package timeref

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// EpochConverter переводит абсолютное время симуляции в строку эпохи и обратно
type EpochConverter interface {
	EpochToString(t float64) string
	StringToEpoch(s string) (float64, error)
}

// EpochLayout - формат строк эпохи ("2018 JUL 26 21:15:15.345")
const EpochLayout = "2006 Jan 02 15:04:05.000"

// j2000 - эпоха J2000 (2000-01-01 12:00:00 TT) в UTC
var j2000 = time.Date(2000, time.January, 1, 11, 58, 55, 816000000, time.UTC)

// J2000 - простой конвертер секунд от J2000 в UTC без учёта високосных секунд
type J2000 struct{}

// EpochToString форматирует время как "YYYY MON DD HR:MN:SC.###"
func (J2000) EpochToString(t float64) string {
	return strings.ToUpper(J2000Time(t).Round(time.Millisecond).Format(EpochLayout))
}

// StringToEpoch принимает формат EpochLayout, RFC 3339 или число секунд
func (J2000) StringToEpoch(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	for _, layout := range []string{EpochLayout, "2006 Jan 02 15:04:05", time.RFC3339Nano} {
		// Имена месяцев time.Parse сравнивает без учёта регистра
		if ts, err := time.Parse(layout, s); err == nil {
			return Seconds(ts), nil
		}
	}
	return 0, fmt.Errorf("unrecognized epoch %q", s)
}

// J2000Time переводит секунды от J2000 во время UTC
func J2000Time(t float64) time.Time {
	return j2000.Add(time.Duration(math.Round(t * float64(time.Second))))
}

// Seconds переводит время UTC в секунды от J2000
func Seconds(ts time.Time) float64 {
	return ts.Sub(j2000).Seconds()
}
