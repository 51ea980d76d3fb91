package math

import (
	"fmt"
	gomath "math"

	"github.com/go-gl/mathgl/mgl64"
	"gonum.org/v1/gonum/num/quat"
)

// Quat is a quaternion stored as [w, x, y, z]:
// Real is the scalar part, Imag/Jmag/Kmag the vector part.
type Quat = quat.Number

// Gimbal-lock threshold on x*y + z*w for a unit quaternion.
const poleThreshold = 0.499

// Smallest sine factor used when extracting an angle-axis.
const sinEpsilon = 1e-4

// Pole identifies the gimbal-lock branch a quaternion falls in.
type Pole int8

const (
	PoleSouth Pole = -1
	PoleNone  Pole = 0
	PoleNorth Pole = 1
)

// String returns a human-readable pole name.
func (p Pole) String() string {
	switch p {
	case PoleNorth:
		return "North"
	case PoleSouth:
		return "South"
	default:
		return "None"
	}
}

// QuatIdentity returns an identity quaternion (no rotation).
func QuatIdentity() Quat {
	return Quat{Real: 1}
}

// QuatFromAxisAngle creates a quaternion from axis-angle rotation.
// axis should be normalized, angle is in radians.
func QuatFromAxisAngle(axis mgl64.Vec3, angle float64) Quat {
	s, c := gomath.Sincos(angle / 2)
	return Quat{Real: c, Imag: axis[0] * s, Jmag: axis[1] * s, Kmag: axis[2] * s}
}

var unitAxes = [...]mgl64.Vec3{
	AxisX: {1, 0, 0},
	AxisY: {0, 1, 0},
	AxisZ: {0, 0, 1},
}

func axisQuat(axis Axis, angle float64) Quat {
	return QuatFromAxisAngle(unitAxes[axis], angle)
}

// EulerToQuat converts three axis angles (radians) composed in order to a
// unit quaternion. The result maps to the same matrix as EulerToMat3.
func EulerToQuat(angles [3]float64, order RotationOrder) Quat {
	axes, ok := order.Axes()
	if !ok {
		return QuatIdentity()
	}
	q := quat.Mul(axisQuat(axes[0], angles[0]), axisQuat(axes[1], angles[1]))
	return quat.Mul(q, axisQuat(axes[2], angles[2]))
}

// EulerToQuatBatch converts a run of angle triples sharing one order.
func EulerToQuatBatch(angles [][3]float64, order RotationOrder) []Quat {
	out := make([]Quat, len(angles))
	for i, a := range angles {
		out[i] = EulerToQuat(a, order)
	}
	return out
}

// Normalize returns a unit quaternion.
// Near-zero quaternions collapse to identity.
func Normalize(q Quat) Quat {
	length := quat.Abs(q)
	if length < 0.0001 {
		return QuatIdentity()
	}
	return quat.Scale(1/length, q)
}

// Dot returns the 4D dot product of two quaternions.
func Dot(a, b Quat) float64 {
	return a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
}

// Slerp performs spherical linear interpolation between two quaternions.
// t should be in range [0, 1].
func Slerp(a, b Quat, t float64) Quat {
	dot := Dot(a, b)

	// Take the shorter arc
	if dot < 0 {
		b = quat.Scale(-1, b)
		dot = -dot
	}

	// Nearly parallel: lerp avoids dividing by sin(theta0) ~ 0
	if dot > 0.9995 {
		return Normalize(quat.Add(a, quat.Scale(t, quat.Sub(b, a))))
	}

	theta0 := gomath.Acos(Clamp(dot, -1, 1))
	theta := theta0 * t
	sinTheta := gomath.Sin(theta)
	sinTheta0 := gomath.Sin(theta0)

	s0 := gomath.Cos(theta) - dot*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0
	return quat.Add(quat.Scale(s0, a), quat.Scale(s1, b))
}

// GimbalPole reports whether q sits at a heading/attitude/bank singularity.
func GimbalPole(q Quat) Pole {
	q = Normalize(q)
	test := q.Imag*q.Jmag + q.Kmag*q.Real
	switch {
	case test > poleThreshold:
		return PoleNorth
	case test < -poleThreshold:
		return PoleSouth
	default:
		return PoleNone
	}
}

// QuatToEuler recovers Euler angles in degrees as {bank (X), heading (Y),
// attitude (Z)}. At either pole bank is fixed at 0, attitude at ±90 and
// heading carries the whole rotation.
func QuatToEuler(q Quat) mgl64.Vec3 {
	q = Normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	switch GimbalPole(q) {
	case PoleNorth:
		heading := 2 * gomath.Atan2(x, w)
		return mgl64.Vec3{0, Rad2Deg(heading), 90}
	case PoleSouth:
		heading := -2 * gomath.Atan2(x, w)
		return mgl64.Vec3{0, Rad2Deg(heading), -90}
	}

	test := x*y + z*w
	sqx, sqy, sqz := x*x, y*y, z*z
	heading := gomath.Atan2(2*y*w-2*x*z, 1-2*sqy-2*sqz)
	attitude := gomath.Asin(Clamp(2*test, -1, 1))
	bank := gomath.Atan2(2*x*w-2*y*z, 1-2*sqx-2*sqz)
	return mgl64.Vec3{Rad2Deg(bank), Rad2Deg(heading), Rad2Deg(attitude)}
}

// QuatToMat3 converts a quaternion to a 3x3 rotation matrix.
// q is expected to be of unit length.
func QuatToMat3(q Quat) mgl64.Mat3 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	xx, yy, zz := x*x, y*y, z*z

	return mgl64.Mat3FromRows(
		mgl64.Vec3{1 - 2*(yy+zz), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		mgl64.Vec3{2 * (x*y + z*w), 1 - 2*(xx+zz), 2 * (y*z - x*w)},
		mgl64.Vec3{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(xx+yy)},
	)
}

// QuatToMat3Batch converts every quaternion in qs.
func QuatToMat3Batch(qs []Quat) []mgl64.Mat3 {
	out := make([]mgl64.Mat3, len(qs))
	for i, q := range qs {
		out[i] = QuatToMat3(q)
	}
	return out
}

// Mat3ToQuat converts a rotation matrix to a unit quaternion.
func Mat3ToQuat(m mgl64.Mat3) Quat {
	r00, r01, r02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	r10, r11, r12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	r20, r21, r22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	trace := r00 + r11 + r22

	var q Quat
	switch {
	case trace > 0:
		s := gomath.Sqrt(trace+1) * 2
		q = Quat{Real: 0.25 * s, Imag: (r21 - r12) / s, Jmag: (r02 - r20) / s, Kmag: (r10 - r01) / s}
	case r00 > r11 && r00 > r22:
		s := gomath.Sqrt(1+r00-r11-r22) * 2
		q = Quat{Real: (r21 - r12) / s, Imag: 0.25 * s, Jmag: (r01 + r10) / s, Kmag: (r02 + r20) / s}
	case r11 > r22:
		s := gomath.Sqrt(1+r11-r00-r22) * 2
		q = Quat{Real: (r02 - r20) / s, Imag: (r01 + r10) / s, Jmag: 0.25 * s, Kmag: (r12 + r21) / s}
	default:
		s := gomath.Sqrt(1+r22-r00-r11) * 2
		q = Quat{Real: (r10 - r01) / s, Imag: (r02 + r20) / s, Jmag: (r12 + r21) / s, Kmag: 0.25 * s}
	}
	return Normalize(q)
}

// QuatToAngleAxis returns the rotation angle (radians) and axis of q.
// Near-identity rotations yield a zero axis instead of dividing by zero.
func QuatToAngleAxis(q Quat) (float64, mgl64.Vec3, error) {
	if quat.IsNaN(q) || quat.IsInf(q) {
		return 0, mgl64.Vec3{}, fmt.Errorf("%w: non-finite quaternion %v", ErrNumericDomain, q)
	}
	norm := quat.Abs(q)
	if norm == 0 {
		return 0, mgl64.Vec3{}, fmt.Errorf("%w: zero quaternion", ErrNumericDomain)
	}

	w := Clamp(q.Real/norm, -1, 1)
	angle := 2 * gomath.Acos(w)

	sinFactor := gomath.Sqrt(1 - w*w)
	if sinFactor < sinEpsilon {
		sinFactor = sinEpsilon
	}
	scale := 1 / (norm * sinFactor)
	return angle, mgl64.Vec3{q.Imag * scale, q.Jmag * scale, q.Kmag * scale}, nil
}
