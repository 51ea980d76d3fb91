package math

import "github.com/go-gl/mathgl/mgl64"

// Mat4 is a 4x4 matrix in column-major order (OpenGL compatible).
// Layout: [m0 m4 m8  m12]
//
//	[m1 m5 m9  m13]
//	[m2 m6 m10 m14]
//	[m3 m7 m11 m15]
type Mat4 = mgl64.Mat4

// Compose builds the homogeneous transform Translate(t) * Rotate(rot):
// upper-left 3x3 is rot, column 3 is t, bottom row is [0 0 0 1].
func Compose(rot mgl64.Mat3, t mgl64.Vec3) Mat4 {
	return Mat4{
		rot[0], rot[1], rot[2], 0,
		rot[3], rot[4], rot[5], 0,
		rot[6], rot[7], rot[8], 0,
		t[0], t[1], t[2], 1,
	}
}

// Translation returns the translation column of m.
func Translation(m Mat4) mgl64.Vec3 {
	return mgl64.Vec3{m[12], m[13], m[14]}
}

// Rotation returns the upper-left 3x3 portion of m.
func Rotation(m Mat4) mgl64.Mat3 {
	return m.Mat3()
}

// MulInto stores a * b in dst without allocating.
func MulInto(dst *Mat4, a, b *Mat4) {
	for col := 0; col < 4; col++ {
		b0, b1, b2, b3 := b[col*4+0], b[col*4+1], b[col*4+2], b[col*4+3]
		for row := 0; row < 4; row++ {
			dst[col*4+row] = a[0*4+row]*b0 + a[1*4+row]*b1 + a[2*4+row]*b2 + a[3*4+row]*b3
		}
	}
}

// TransformPoint transforms a 3D point by m (assumes w=1).
func TransformPoint(m Mat4, p mgl64.Vec3) mgl64.Vec3 {
	x := m[0]*p[0] + m[4]*p[1] + m[8]*p[2] + m[12]
	y := m[1]*p[0] + m[5]*p[1] + m[9]*p[2] + m[13]
	z := m[2]*p[0] + m[6]*p[1] + m[10]*p[2] + m[14]
	w := m[3]*p[0] + m[7]*p[1] + m[11]*p[2] + m[15]
	if w != 0 && w != 1 {
		return mgl64.Vec3{x / w, y / w, z / w}
	}
	return mgl64.Vec3{x, y, z}
}

// ApproxEqualMat3 reports whether every element of a and b differs by at most eps.
func ApproxEqualMat3(a, b mgl64.Mat3, eps float64) bool {
	for i := range a {
		if d := a[i] - b[i]; d > eps || d < -eps {
			return false
		}
	}
	return true
}

// ApproxEqualMat4 reports whether every element of a and b differs by at most eps.
func ApproxEqualMat4(a, b Mat4, eps float64) bool {
	for i := range a {
		if d := a[i] - b[i]; d > eps || d < -eps {
			return false
		}
	}
	return true
}
