package kinematics

import (
	"encoding/binary"
	gomath "math"

	"github.com/go-gl/mathgl/mgl64"
)

// Bytes per segment in a SegmentBuffer: two xyz float32 vertices.
const SegmentStride = 2 * 3 * 4

// Segment is one bone drawn from a joint to its parent.
type Segment struct {
	Child, Parent int
	From, To      mgl64.Vec3 // child position, parent position
}

// Segments returns one segment per non-root joint at frame, in joint order.
func (a *Animation) Segments(frame int) []Segment {
	skel := a.skeleton
	out := make([]Segment, 0, skel.Len())
	for j := range skel.Joints {
		p := skel.Joints[j].Parent
		if p < 0 {
			continue
		}
		out = append(out, Segment{
			Child:  j,
			Parent: p,
			From:   a.Position(frame, j),
			To:     a.Position(frame, p),
		})
	}
	return out
}

// SegmentBuffer encodes the segments of frame as little-endian float32
// vertex pairs (child xyz, then parent xyz), each coordinate multiplied by
// scale. The layout matches a line-list vertex buffer.
func (a *Animation) SegmentBuffer(frame int, scale float64) []byte {
	segs := a.Segments(frame)
	buf := make([]byte, len(segs)*SegmentStride)
	off := 0
	put := func(v mgl64.Vec3) {
		for i := 0; i < 3; i++ {
			binary.LittleEndian.PutUint32(buf[off:], gomath.Float32bits(float32(v[i]*scale)))
			off += 4
		}
	}
	for _, s := range segs {
		put(s.From)
		put(s.To)
	}
	return buf
}
