package vec

import "math"

// Quat - кватернион поворота (x, y, z - векторная часть, w - скалярная)
type Quat struct {
	X float64
	Y float64
	Z float64
	W float64
}

// IdentityQuat возвращает единичный поворот
func IdentityQuat() Quat {
	return Quat{W: 1}
}

// Dot возвращает скалярное произведение кватернионов
func (q Quat) Dot(o Quat) float64 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

// Normalize приводит кватернион к единичной длине.
// Нулевой кватернион превращается в единичный поворот.
func (q Quat) Normalize() Quat {
	l := math.Sqrt(q.Dot(q))
	if l == 0 {
		return IdentityQuat()
	}
	return Quat{X: q.X / l, Y: q.Y / l, Z: q.Z / l, W: q.W / l}
}

// Slerp сферически интерполирует между q и o, t в [0, 1]
func (q Quat) Slerp(o Quat, t float64) Quat {
	q = q.Normalize()
	o = o.Normalize()

	cos := q.Dot(o)
	// Идём по короткой дуге
	if cos < 0 {
		o = Quat{X: -o.X, Y: -o.Y, Z: -o.Z, W: -o.W}
		cos = -cos
	}

	// Почти совпадающие повороты: линейная интерполяция устойчивее
	if cos > 0.9995 {
		return Quat{
			X: q.X + (o.X-q.X)*t,
			Y: q.Y + (o.Y-q.Y)*t,
			Z: q.Z + (o.Z-q.Z)*t,
			W: q.W + (o.W-q.W)*t,
		}.Normalize()
	}

	theta := math.Acos(cos)
	sin := math.Sin(theta)
	a := math.Sin((1-t)*theta) / sin
	b := math.Sin(t*theta) / sin
	return Quat{
		X: a*q.X + b*o.X,
		Y: a*q.Y + b*o.Y,
		Z: a*q.Z + b*o.Z,
		W: a*q.W + b*o.W,
	}
}
