package kinematics

import (
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/mocap/pkg/formats"
	"github.com/Faultbox/mocap/pkg/math"
)

// Animation holds the computed transforms of one (skeleton, motion) pair.
// Matrices are stored joint-major: the transforms of one joint are
// contiguous across frames. An Animation is immutable once returned by
// Compute and safe for concurrent reads.
type Animation struct {
	skeleton  *formats.Skeleton
	frames    int
	frameTime float64
	local     []math.Mat4
	global    []math.Mat4
}

// Frames returns the number of frames.
func (a *Animation) Frames() int {
	return a.frames
}

// Joints returns the number of joints.
func (a *Animation) Joints() int {
	return a.skeleton.Len()
}

// FrameTime returns seconds per frame.
func (a *Animation) FrameTime() float64 {
	return a.frameTime
}

// Skeleton returns the skeleton the animation was computed for.
func (a *Animation) Skeleton() *formats.Skeleton {
	return a.skeleton
}

// Local returns the transform of joint relative to its parent at frame.
func (a *Animation) Local(frame, joint int) math.Mat4 {
	return a.local[joint*a.frames+frame]
}

// Global returns the world-space transform of joint at frame.
func (a *Animation) Global(frame, joint int) math.Mat4 {
	return a.global[joint*a.frames+frame]
}

// GlobalTrack returns a copy of the world transforms of joint over all frames.
func (a *Animation) GlobalTrack(joint int) []math.Mat4 {
	base := joint * a.frames
	return slices.Clone(a.global[base : base+a.frames])
}

// Position returns the world-space position of joint at frame: the joint's
// local origin carried through its global transform.
func (a *Animation) Position(frame, joint int) mgl64.Vec3 {
	return math.TransformPoint(a.Global(frame, joint), mgl64.Vec3{})
}

// Positions returns the world-space position of every joint at frame.
func (a *Animation) Positions(frame int) []mgl64.Vec3 {
	out := make([]mgl64.Vec3, a.Joints())
	for j := range out {
		out[j] = a.Position(frame, j)
	}
	return out
}

// LocalRotation returns the parent-relative rotation of joint at frame.
func (a *Animation) LocalRotation(frame, joint int) math.Quat {
	return math.Mat3ToQuat(math.Rotation(a.Local(frame, joint)))
}

// GlobalRotation returns the world-space rotation of joint at frame.
func (a *Animation) GlobalRotation(frame, joint int) math.Quat {
	return math.Mat3ToQuat(math.Rotation(a.Global(frame, joint)))
}

// frameAt maps a time in seconds to the bracketing frames and blend factor.
// Times outside the clip clamp to the first or last frame.
func (a *Animation) frameAt(t float64) (int, int, float64) {
	if a.frames <= 1 || a.frameTime <= 0 || t <= 0 {
		return 0, 0, 0
	}
	pos := t / a.frameTime
	last := a.frames - 1
	if pos >= float64(last) {
		return last, last, 0
	}
	f0 := int(pos)
	return f0, f0 + 1, pos - float64(f0)
}

// SampleRotation interpolates the local rotation of joint at time t seconds.
func (a *Animation) SampleRotation(t float64, joint int) math.Quat {
	f0, f1, blend := a.frameAt(t)
	q0 := a.LocalRotation(f0, joint)
	if f0 == f1 {
		return q0
	}
	return math.Slerp(q0, a.LocalRotation(f1, joint), blend)
}

// SamplePosition interpolates the world position of joint at time t seconds.
func (a *Animation) SamplePosition(t float64, joint int) mgl64.Vec3 {
	f0, f1, blend := a.frameAt(t)
	p0 := a.Position(f0, joint)
	if f0 == f1 {
		return p0
	}
	p1 := a.Position(f1, joint)
	return p0.Add(p1.Sub(p0).Mul(blend))
}
