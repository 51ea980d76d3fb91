// Package kinematics turns a parsed skeleton and motion clip into per-frame
// local and global joint transforms.
package kinematics

import (
	"context"
	"fmt"
	gomath "math"
	"runtime"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/mocap/pkg/formats"
	"github.com/Faultbox/mocap/pkg/math"
)

// Options controls Compute.
type Options struct {
	// Workers is the number of goroutines sharing the frame dimension.
	// Zero or negative means runtime.GOMAXPROCS(0); 1 runs sequentially.
	Workers int
	// Logger receives timing diagnostics. Nil disables logging.
	Logger *zap.Logger
}

// NumericDomainError reports a channel sample that is NaN or infinite.
type NumericDomainError struct {
	Frame int
	Joint string
	Value float64
}

func (e *NumericDomainError) Error() string {
	return fmt.Sprintf("kinematics: frame %d joint %q: non-finite channel value %v", e.Frame, e.Joint, e.Value)
}

func (e *NumericDomainError) Unwrap() error {
	return math.ErrNumericDomain
}

// posChannel is a translation channel at a frame-vector index.
type posChannel struct {
	index int
	axis  math.Axis
}

// jointPlan is the per-joint decoding recipe, built once before the batch.
type jointPlan struct {
	name   string
	parent int
	offset mgl64.Vec3
	order  math.RotationOrder
	rot    [3]int // frame-vector indices of the rotation channels, in order
	pos    []posChannel
	first  int // first frame-vector index owned by the joint
	count  int
}

func buildPlans(skel *formats.Skeleton) ([]jointPlan, error) {
	plans := make([]jointPlan, skel.Len())
	offsets := skel.ChannelOffsets()

	for i := range skel.Joints {
		j := &skel.Joints[i]
		p := jointPlan{
			name:   j.Name,
			parent: j.Parent,
			offset: j.Offset,
			order:  j.Order,
			first:  offsets[i],
			count:  j.ChannelCount(),
		}

		axes, hasOrder := j.Order.Axes()
		nrot := 0
		for k, ch := range j.Channels {
			idx := offsets[i] + k
			switch {
			case ch.IsPosition():
				p.pos = append(p.pos, posChannel{index: idx, axis: ch.Axis()})
			case ch.IsRotation():
				if !hasOrder || nrot >= 3 || axes[nrot] != ch.Axis() {
					return nil, &formats.DecodeError{
						Joint: j.Name,
						Token: ch.String(),
						Err:   fmt.Errorf("%w: channels disagree with order %s", math.ErrUnsupportedOrder, j.Order),
					}
				}
				p.rot[nrot] = idx
				nrot++
			default:
				return nil, &formats.DecodeError{
					Joint: j.Name,
					Token: ch.String(),
					Err:   formats.ErrUnknownChannel,
				}
			}
		}
		if hasOrder && nrot != 3 {
			return nil, &formats.DecodeError{
				Joint: j.Name,
				Token: j.Order.String(),
				Err:   fmt.Errorf("%w: order %s with %d rotation channels", math.ErrUnsupportedOrder, j.Order, nrot),
			}
		}
		plans[i] = p
	}
	return plans, nil
}

// Compute evaluates every joint of skel over every frame of motion.
// Either the whole clip computes or an error describing the first
// offending frame or joint is returned.
func Compute(ctx context.Context, skel *formats.Skeleton, motion *formats.Motion, opts Options) (*Animation, error) {
	if err := skel.Validate(); err != nil {
		return nil, err
	}

	want := skel.ChannelCount()
	for f, values := range motion.Frames {
		if len(values) != want {
			return nil, &formats.DimensionError{Frame: f, Got: len(values), Want: want}
		}
	}

	plans, err := buildPlans(skel)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	frames := motion.FrameCount()
	joints := skel.Len()
	anim := &Animation{
		skeleton:  skel.Clone(),
		frames:    frames,
		frameTime: motion.FrameTime,
		local:     make([]math.Mat4, frames*joints),
		global:    make([]math.Mat4, frames*joints),
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > frames {
		workers = frames
	}

	if workers > 0 {
		g, gctx := errgroup.WithContext(ctx)
		chunk := (frames + workers - 1) / workers
		for lo := 0; lo < frames; lo += chunk {
			hi := min(lo+chunk, frames)
			g.Go(func() error {
				return computeRange(gctx, plans, motion.Frames, anim, lo, hi)
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	if opts.Logger != nil {
		opts.Logger.Debug("animation computed",
			zap.Int("frames", frames),
			zap.Int("joints", joints),
			zap.Int("workers", workers),
			zap.Duration("elapsed", time.Since(start)))
	}
	return anim, nil
}

// computeRange fills frames [lo, hi) for every joint. Joints run outermost
// in topological order so each parent's globals for the range already exist
// when its children are evaluated; the range is owned by this worker alone.
func computeRange(ctx context.Context, plans []jointPlan, frames [][]float64, anim *Animation, lo, hi int) error {
	n := anim.frames
	for j := range plans {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := &plans[j]
		base := j * n
		parentBase := p.parent * n

		for f := lo; f < hi; f++ {
			values := frames[f]
			for k := p.first; k < p.first+p.count; k++ {
				if v := values[k]; gomath.IsNaN(v) || gomath.IsInf(v, 0) {
					return &NumericDomainError{Frame: f, Joint: p.name, Value: v}
				}
			}

			rot := mgl64.Ident3()
			if p.order != math.OrderNone {
				angles := [3]float64{
					math.Deg2Rad(values[p.rot[0]]),
					math.Deg2Rad(values[p.rot[1]]),
					math.Deg2Rad(values[p.rot[2]]),
				}
				rot = math.EulerToMat3(angles, p.order)
			}

			t := p.offset
			for _, pc := range p.pos {
				t[pc.axis] += values[pc.index]
			}

			local := &anim.local[base+f]
			*local = math.Compose(rot, t)
			if p.parent < 0 {
				anim.global[base+f] = *local
			} else {
				math.MulInto(&anim.global[base+f], &anim.global[parentBase+f], local)
			}
		}
	}
	return nil
}

// ComputeBVH is Compute over a parsed file.
func ComputeBVH(ctx context.Context, bvh *formats.BVH, opts Options) (*Animation, error) {
	return Compute(ctx, &bvh.Skeleton, &bvh.Motion, opts)
}
