// Package math provides rotation and quaternion helpers for skeletal animation.
package math

import (
	"fmt"
	gomath "math"

	"github.com/go-gl/mathgl/mgl64"
)

// Axis identifies one of the three principal axes.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

// String returns the axis letter.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return fmt.Sprintf("Axis(%d)", uint8(a))
	}
}

// RotationOrder is the sequence in which per-axis rotations are composed.
// The first axis is applied outermost: XYZ yields Rx * Ry * Rz.
type RotationOrder uint8

const (
	OrderNone RotationOrder = iota // joint carries no rotation channels
	OrderXYZ
	OrderXZY
	OrderYXZ
	OrderYZX
	OrderZXY
	OrderZYX
)

var orderAxes = [...][3]Axis{
	OrderXYZ: {AxisX, AxisY, AxisZ},
	OrderXZY: {AxisX, AxisZ, AxisY},
	OrderYXZ: {AxisY, AxisX, AxisZ},
	OrderYZX: {AxisY, AxisZ, AxisX},
	OrderZXY: {AxisZ, AxisX, AxisY},
	OrderZYX: {AxisZ, AxisY, AxisX},
}

// Orders lists every supported permutation.
var Orders = []RotationOrder{OrderXYZ, OrderXZY, OrderYXZ, OrderYZX, OrderZXY, OrderZYX}

// Axes returns the three axes in composition order.
// OrderNone and unknown values return ok=false.
func (o RotationOrder) Axes() (axes [3]Axis, ok bool) {
	if o == OrderNone || int(o) >= len(orderAxes) {
		return axes, false
	}
	return orderAxes[o], true
}

// String returns the order as a three letter string such as "ZXY".
func (o RotationOrder) String() string {
	axes, ok := o.Axes()
	if !ok {
		if o == OrderNone {
			return "None"
		}
		return fmt.Sprintf("RotationOrder(%d)", uint8(o))
	}
	return axes[0].String() + axes[1].String() + axes[2].String()
}

// OrderFromAxes maps an axis sequence to its RotationOrder.
// Repeated axes are rejected.
func OrderFromAxes(a0, a1, a2 Axis) (RotationOrder, error) {
	want := [3]Axis{a0, a1, a2}
	for _, o := range Orders {
		if orderAxes[o] == want {
			return o, nil
		}
	}
	return OrderNone, fmt.Errorf("%w: %s%s%s", ErrUnsupportedOrder, a0, a1, a2)
}

// ParseRotationOrder parses strings such as "ZYX" (case-insensitive).
func ParseRotationOrder(s string) (RotationOrder, error) {
	if len(s) != 3 {
		return OrderNone, fmt.Errorf("%w: %q", ErrUnsupportedOrder, s)
	}
	var axes [3]Axis
	for i := 0; i < 3; i++ {
		switch s[i] {
		case 'X', 'x':
			axes[i] = AxisX
		case 'Y', 'y':
			axes[i] = AxisY
		case 'Z', 'z':
			axes[i] = AxisZ
		default:
			return OrderNone, fmt.Errorf("%w: %q", ErrUnsupportedOrder, s)
		}
	}
	return OrderFromAxes(axes[0], axes[1], axes[2])
}

// RotX returns a rotation matrix around the X axis.
// angle is in radians.
func RotX(angle float64) mgl64.Mat3 {
	return mgl64.Rotate3DX(angle)
}

// RotY returns a rotation matrix around the Y axis.
// angle is in radians.
func RotY(angle float64) mgl64.Mat3 {
	return mgl64.Rotate3DY(angle)
}

// RotZ returns a rotation matrix around the Z axis.
// angle is in radians.
func RotZ(angle float64) mgl64.Mat3 {
	return mgl64.Rotate3DZ(angle)
}

// AxisRotation returns the elementary rotation matrix for axis.
func AxisRotation(axis Axis, angle float64) mgl64.Mat3 {
	switch axis {
	case AxisX:
		return RotX(angle)
	case AxisY:
		return RotY(angle)
	default:
		return RotZ(angle)
	}
}

// EulerToMat3 composes elementary rotations left to right following order.
// angles[i] is the angle in radians around the i-th axis of order.
// OrderNone yields the identity.
func EulerToMat3(angles [3]float64, order RotationOrder) mgl64.Mat3 {
	axes, ok := order.Axes()
	if !ok {
		return mgl64.Ident3()
	}
	r := AxisRotation(axes[0], angles[0])
	r = r.Mul3(AxisRotation(axes[1], angles[1]))
	return r.Mul3(AxisRotation(axes[2], angles[2]))
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 {
	return d * gomath.Pi / 180
}

// Rad2Deg converts radians to degrees.
func Rad2Deg(r float64) float64 {
	return r * 180 / gomath.Pi
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
