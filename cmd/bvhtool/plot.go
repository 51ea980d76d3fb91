package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/Faultbox/mocap/pkg/kinematics"
)

// trajectory returns the world x, y and z of joint against time.
func trajectory(anim *kinematics.Animation, joint int) [3]plotter.XYs {
	var out [3]plotter.XYs
	for axis := range out {
		out[axis] = make(plotter.XYs, anim.Frames())
	}
	for f := 0; f < anim.Frames(); f++ {
		t := float64(f) * anim.FrameTime()
		p := anim.Position(f, joint)
		for axis := range out {
			out[axis][f] = plotter.XY{X: t, Y: p[axis]}
		}
	}
	return out
}

func cmdPlot(ctx context.Context, stdout io.Writer, args []string) error {
	fs, shared := newFlagSet("plot")
	name := fs.String("joint", "", "Joint name")
	out := fs.String("o", "trajectory.png", "Output image (.png, .svg or .pdf)")
	size := fs.Float64("size", 6, "Image width and height in inches")
	s, err := start(fs, shared, args, "plot [flags] -joint NAME [-o out.png] <file.bvh>", 1)
	if err != nil {
		return err
	}
	if *name == "" {
		fs.Usage()
		return errUsage
	}

	anim, err := s.animate(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	j := anim.Skeleton().Index(*name)
	if j < 0 {
		return fmt.Errorf("joint %q not found", *name)
	}

	xyz := trajectory(anim, j)
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s world position", *name)
	p.X.Label.Text = "time (s)"
	p.Y.Label.Text = "position"
	if err := plotutil.AddLines(p, "x", xyz[0], "y", xyz[1], "z", xyz[2]); err != nil {
		return err
	}

	if err := p.Save(vg.Length(*size)*vg.Inch, vg.Length(*size)*vg.Inch, *out); err != nil {
		return fmt.Errorf("saving plot: %w", err)
	}

	s.log.Info("trajectory plotted", zap.String("joint", *name), zap.String("file", *out), zap.Int("frames", anim.Frames()))
	fmt.Fprintf(stdout, "Wrote %s\n", *out)
	return nil
}
