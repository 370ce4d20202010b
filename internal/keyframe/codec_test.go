package keyframe

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/annel0/session-replay/internal/timeref"
	"github.com/annel0/session-replay/internal/vec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_Formats(t *testing.T) {
	stamp := timeref.Stamp{Application: 12.5, Relative: 2.5, Simulation: 585908115.3456}

	cam, err := Encode(NewCameraEntry(stamp, CameraPose{
		Position:            vec.Vec3Float{X: 1, Y: -2.25, Z: 3e10},
		Rotation:            vec.Quat{X: 0, Y: 0, Z: 0.7071067811865476, W: 0.7071067811865476},
		FollowFocusRotation: true,
		FocusNode:           "Earth",
	}))
	require.NoError(t, err)
	assert.Equal(t, "camera 12.5 2.5 5.859081153456e+08 1 -2.25 3e+10 0 0 0.7071067811865476 0.7071067811865476 F Earth", cam)

	clk, err := Encode(NewClockEntry(stamp, Clock{Time: 585908115.3456, Rate: 3600, Paused: true}))
	require.NoError(t, err)
	assert.Equal(t, "time 12.5 2.5 585908115.346 3600 P -", clk, "tsSim часов печатается с тремя знаками")

	scr, err := Encode(NewScriptEntry(stamp, `openspace.setPropertyValue("Scene.Earth.Enabled", true)`))
	require.NoError(t, err)
	assert.Equal(t, `script 12.5 2.5 5.859081153456e+08 openspace.setPropertyValue("Scene.Earth.Enabled", true)`, scr)
}

func TestEncode_Rejects(t *testing.T) {
	stamp := timeref.Stamp{}

	_, err := Encode(Entry{Stamp: stamp})
	assert.Error(t, err, "запись без нагрузки")

	_, err = Encode(NewScriptEntry(stamp, "a\nb"))
	assert.Error(t, err, "многострочный скрипт")

	_, err = Encode(NewScriptEntry(stamp, "   "))
	assert.Error(t, err, "пустой скрипт")

	_, err = Encode(NewCameraEntry(stamp, CameraPose{FocusNode: "Solar System"}))
	assert.Error(t, err, "пробел в имени узла")

	_, err = Encode(NewScriptEntry(stamp, strings.Repeat("x", MaxLineLength)))
	assert.ErrorIs(t, err, ErrLineTooLong)

	line, err := Encode(NewScriptEntry(stamp, strings.Repeat("x", MaxScriptLength)))
	require.NoError(t, err, "скрипт предельной длины помещается в строку")
	assert.LessOrEqual(t, len(line), MaxLineLength)
}

func TestCodec_RoundTripExact(t *testing.T) {
	stamp := timeref.Stamp{Application: 1.0 / 3.0, Relative: math.Pi, Simulation: 6.02214076e23}
	in := []Entry{
		NewCameraEntry(stamp, CameraPose{
			Position: vec.Vec3Float{X: 0.1, Y: 0.2, Z: 1.4959787e11},
			Rotation: vec.Quat{X: -0.5, Y: 0.5, Z: -0.5, W: 0.5},
		}),
		NewScriptEntry(stamp, "  two  leading spaces and\ttab "),
	}

	for _, e := range in {
		line, err := Encode(e)
		require.NoError(t, err)

		out, err := Decode(line, 1)
		require.NoError(t, err)
		assert.Equal(t, e, out, "строка: %s", line)
	}
}

func TestDecode_EmptyFocusNode(t *testing.T) {
	line, err := Encode(NewCameraEntry(timeref.Stamp{}, CameraPose{Rotation: vec.IdentityQuat()}))
	require.NoError(t, err)
	assert.Equal(t, "camera 0 0 0 0 0 0 0 0 0 1 - -", line)

	e, err := Decode(line, 1)
	require.NoError(t, err)
	assert.Equal(t, "", e.Camera.FocusNode)
	assert.False(t, e.Camera.FollowFocusRotation)
}

func TestDecode_Clock(t *testing.T) {
	e, err := Decode("time 10 0.5 1000.125 -2 R J\r", 4)
	require.NoError(t, err)
	require.NotNil(t, e.Clock)
	assert.Equal(t, TypeClock, e.Type())
	assert.Equal(t, Clock{Time: 1000.125, Rate: -2, Paused: false, RequiresJump: true}, *e.Clock)
	assert.Equal(t, timeref.Stamp{Application: 10, Relative: 0.5, Simulation: 1000.125}, e.Stamp)
}

func TestDecode_Malformed(t *testing.T) {
	cases := []string{
		"",
		"   ",
		"teleport 1 2 3",
		"camera 1 2",
		"camera 1 2 3 0 0 0 0 0 0 1 F",
		"camera 1 2 3 0 0 0 0 0 0 1 X Earth",
		"camera 1 2 3 0 0 zero 0 0 0 1 F Earth",
		"camera 1 2 3 0 0 0 0 0 0 1 F Earth extra",
		"time 1 2 3 1 P",
		"time 1 2 3 1 paused -",
		"time 1 2 3 1 P -- ",
		"time x 2 3 1 P -",
		"script 1 2 3",
		"script 1 2 3 ",
	}
	for _, line := range cases {
		_, err := Decode(line, 7)
		require.Error(t, err, "строка %q должна быть отклонена", line)

		var pe *ParseError
		require.True(t, errors.As(err, &pe), line)
		assert.Equal(t, 7, pe.Line)
		assert.True(t, errors.Is(err, ErrParse))
	}
}
