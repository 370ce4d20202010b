// Package keyframe описывает записи журнала сессии и их строковый формат
package keyframe

import (
	"github.com/annel0/session-replay/internal/timeref"
	"github.com/annel0/session-replay/internal/vec"
)

// Type - тип записи журнала (первый токен строки)
type Type string

const (
	TypeCamera Type = "camera"
	TypeClock  Type = "time"
	TypeScript Type = "script"
)

// CameraPose - положение камеры
type CameraPose struct {
	Position            vec.Vec3Float
	Rotation            vec.Quat
	FollowFocusRotation bool   // Следовать за поворотом узла фокуса
	FocusNode           string // Идентификатор узла фокуса
}

// Clock - состояние часов симуляции
type Clock struct {
	Time         float64 // Время симуляции, секунды J2000
	Rate         float64 // Скорость течения времени
	Paused       bool
	RequiresJump bool // Переход к Time требует разрыва времени
}

// Script - скрипт, выполненный во время записи
type Script struct {
	Text string
}

// Entry - одна запись журнала: метки времени и ровно одна полезная нагрузка
type Entry struct {
	Stamp timeref.Stamp

	Camera *CameraPose
	Clock  *Clock
	Script *Script
}

// Type возвращает тип записи по заполненной нагрузке
func (e Entry) Type() Type {
	switch {
	case e.Camera != nil:
		return TypeCamera
	case e.Clock != nil:
		return TypeClock
	case e.Script != nil:
		return TypeScript
	default:
		return ""
	}
}

// NewCameraEntry создаёт запись камеры
func NewCameraEntry(stamp timeref.Stamp, pose CameraPose) Entry {
	return Entry{Stamp: stamp, Camera: &pose}
}

// NewClockEntry создаёт запись часов. Метка симуляции записи совпадает со временем часов.
func NewClockEntry(stamp timeref.Stamp, clock Clock) Entry {
	stamp.Simulation = clock.Time
	return Entry{Stamp: stamp, Clock: &clock}
}

// NewScriptEntry создаёт запись скрипта
func NewScriptEntry(stamp timeref.Stamp, text string) Entry {
	return Entry{Stamp: stamp, Script: &Script{Text: text}}
}
