package timeref

// Stamp - тройка меток времени одной записи журнала
type Stamp struct {
	Application float64 // Время приложения в момент записи
	Relative    float64 // Application минус время начала записи
	Simulation  float64 // Абсолютное время симуляции (секунды J2000)
}

// Converter переводит Stamp в момент, когда запись должна быть применена.
// Не имеет побочных эффектов; один и тот же Converter используется
// камерой, часами и скриптами.
type Converter struct {
	Mode Mode

	// ApplicationStart - время приложения при старте воспроизведения
	ApplicationStart float64
	// SimulationStart - время симуляции при старте воспроизведения
	SimulationStart float64
	// RecordingSimulationStart - время симуляции первой записи файла
	RecordingSimulationStart float64
}

// NewConverter создаёт конвертер для воспроизведения, начатого в момент
// (appNow, simNow) по часам приложения и симуляции.
func NewConverter(mode Mode, appNow, simNow float64) Converter {
	return Converter{
		Mode:             mode,
		ApplicationStart: appNow,
		SimulationStart:  simNow,
	}
}

// Offset - разница между временем симуляции и временем приложения при старте
func (c Converter) Offset() float64 {
	return c.SimulationStart - c.ApplicationStart
}

// Timestamp возвращает метку, по которой действует запись, в системе отсчёта режима
func (c Converter) Timestamp(s Stamp) float64 {
	switch c.Mode {
	case ModeRecordedTime:
		return c.ApplicationStart + s.Relative
	case ModeSimulationTime:
		return c.SimulationStart + (s.Simulation - c.RecordingSimulationStart)
	default:
		return s.Application
	}
}

// ApplicationTime возвращает момент по часам приложения
func (c Converter) ApplicationTime(s Stamp) float64 {
	if c.Mode == ModeSimulationTime {
		return c.Timestamp(s) - c.Offset()
	}
	return c.Timestamp(s)
}

// SimulationTime возвращает момент по часам симуляции
func (c Converter) SimulationTime(s Stamp) float64 {
	if c.Mode == ModeSimulationTime {
		return c.Timestamp(s)
	}
	return c.ApplicationTime(s) + c.Offset()
}

// ScheduleTime возвращает время в той шкале, по которой идёт планировщик
// скриптов в этом режиме: время приложения, время от начала записи
// или время симуляции.
func (c Converter) ScheduleTime(s Stamp) float64 {
	switch c.Mode {
	case ModeRecordedTime:
		return s.Relative
	case ModeSimulationTime:
		return c.Timestamp(s)
	default:
		return s.Application
	}
}
