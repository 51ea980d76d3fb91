package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/mocap/internal/config"
	"github.com/Faultbox/mocap/internal/logger"
	"github.com/Faultbox/mocap/pkg/formats"
	"github.com/Faultbox/mocap/pkg/kinematics"
	"github.com/Faultbox/mocap/pkg/math"
)

// session is the state shared by a subcommand once its flags are parsed.
type session struct {
	cfg *config.Config
	log *zap.Logger
}

func newFlagSet(name string) (*flag.FlagSet, *config.Flags) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return fs, config.RegisterFlags(fs)
}

// start parses args, loads the config and initializes logging.
func start(fs *flag.FlagSet, shared *config.Flags, args []string, usage string, minArgs int) (*session, error) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: bvhtool %s\n", usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, errUsage
		}
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() < minArgs {
		fs.Usage()
		return nil, errUsage
	}

	cfg, err := config.Load(shared)
	if err != nil {
		return nil, err
	}
	log := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile)
	return &session{cfg: cfg, log: log}, nil
}

func (s *session) parseOptions() formats.ParseOptions {
	return formats.ParseOptions{KeepEndSites: s.cfg.Parse.KeepEndSites, Logger: s.log}
}

func (s *session) load(path string) (*formats.BVH, error) {
	return formats.LoadBVH(path, s.parseOptions())
}

func (s *session) animate(ctx context.Context, path string) (*kinematics.Animation, error) {
	bvh, err := s.load(path)
	if err != nil {
		return nil, err
	}
	anim, err := kinematics.ComputeBVH(ctx, bvh, kinematics.Options{
		Workers: s.cfg.Kinematics.Workers,
		Logger:  s.log,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return anim, nil
}

func frameInRange(frame, frames int) error {
	if frame < 0 || frame >= frames {
		return fmt.Errorf("frame %d out of range [0, %d)", frame, frames)
	}
	return nil
}

func cmdInfo(_ context.Context, stdout io.Writer, args []string) error {
	fs, shared := newFlagSet("info")
	s, err := start(fs, shared, args, "info [flags] <file.bvh>", 1)
	if err != nil {
		return err
	}

	path := fs.Arg(0)
	bvh, err := s.load(path)
	if err != nil {
		return err
	}

	skel, motion := &bvh.Skeleton, &bvh.Motion
	endSites := 0
	for i := range skel.Joints {
		if skel.Joints[i].EndSite {
			endSites++
		}
	}

	fmt.Fprintf(stdout, "File:       %s\n", path)
	fmt.Fprintf(stdout, "Root:       %s\n", skel.Joints[0].Name)
	fmt.Fprintf(stdout, "Joints:     %d (%d end sites)\n", skel.Len(), endSites)
	fmt.Fprintf(stdout, "Channels:   %d\n", skel.ChannelCount())
	fmt.Fprintf(stdout, "Frames:     %d (header %d)\n", motion.FrameCount(), motion.DeclaredFrames)
	fmt.Fprintf(stdout, "Frame time: %gs (%.2f fps)\n", motion.FrameTime, 1/motion.FrameTime)
	fmt.Fprintf(stdout, "Duration:   %.3fs\n", motion.Duration())
	return nil
}

func cmdTree(_ context.Context, stdout io.Writer, args []string) error {
	fs, shared := newFlagSet("tree")
	s, err := start(fs, shared, args, "tree [flags] <file.bvh>", 1)
	if err != nil {
		return err
	}

	bvh, err := s.load(fs.Arg(0))
	if err != nil {
		return err
	}

	skel := &bvh.Skeleton
	depths := skel.Depths()
	for i := range skel.Joints {
		j := &skel.Joints[i]
		line := strings.Repeat("  ", depths[i]) + j.Name
		if len(j.Channels) > 0 {
			names := make([]string, len(j.Channels))
			for k, ch := range j.Channels {
				names[k] = ch.String()
			}
			line += fmt.Sprintf(" [%s]", strings.Join(names, " "))
		}
		fmt.Fprintf(stdout, "%s  offset(%g, %g, %g)\n", line, j.Offset[0], j.Offset[1], j.Offset[2])
	}
	return nil
}

func cmdPositions(ctx context.Context, stdout io.Writer, args []string) error {
	fs, shared := newFlagSet("positions")
	frame := fs.Int("frame", -1, "Only this frame (-1 = all frames)")
	out := fs.String("o", "", "Output CSV file (default stdout)")
	s, err := start(fs, shared, args, "positions [flags] [-frame N] [-o out.csv] <file.bvh>", 1)
	if err != nil {
		return err
	}

	anim, err := s.animate(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	lo, hi := 0, anim.Frames()
	if *frame >= 0 {
		if err := frameInRange(*frame, anim.Frames()); err != nil {
			return err
		}
		lo, hi = *frame, *frame+1
	}

	w := stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	skel := anim.Skeleton()
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"frame", "joint", "x", "y", "z"}); err != nil {
		return err
	}
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for f := lo; f < hi; f++ {
		for j, p := range anim.Positions(f) {
			rec := []string{strconv.Itoa(f), skel.Joints[j].Name, format(p[0]), format(p[1]), format(p[2])}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func cmdExport(ctx context.Context, stdout io.Writer, args []string) error {
	fs, shared := newFlagSet("export")
	frame := fs.Int("frame", -1, "Frame to export (default from config)")
	out := fs.String("o", "", "Output file")
	s, err := start(fs, shared, args, "export [flags] [-frame N] -o out.bin <file.bvh>", 1)
	if err != nil {
		return err
	}
	if *out == "" {
		fs.Usage()
		return errUsage
	}

	anim, err := s.animate(ctx, fs.Arg(0))
	if err != nil {
		return err
	}

	f := s.cfg.Export.Frame
	if *frame >= 0 {
		f = *frame
	}
	if err := frameInRange(f, anim.Frames()); err != nil {
		return err
	}

	buf := anim.SegmentBuffer(f, s.cfg.Export.Scale)
	if err := os.WriteFile(*out, buf, 0644); err != nil {
		return err
	}

	s.log.Info("segments exported",
		zap.String("file", *out),
		zap.Int("frame", f),
		zap.Int("segments", len(buf)/kinematics.SegmentStride),
		zap.Float64("scale", s.cfg.Export.Scale))
	fmt.Fprintf(stdout, "Wrote %d segments (%d bytes) to %s\n", len(buf)/kinematics.SegmentStride, len(buf), *out)
	return nil
}

func cmdEuler(ctx context.Context, stdout io.Writer, args []string) error {
	fs, shared := newFlagSet("euler")
	name := fs.String("joint", "", "Joint name")
	s, err := start(fs, shared, args, "euler [flags] -joint NAME <file.bvh>", 1)
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

	fmt.Fprintln(stdout, "frame\tbank(x)\theading(y)\tattitude(z)\tpole")
	for f := 0; f < anim.Frames(); f++ {
		q := anim.GlobalRotation(f, j)
		e := math.QuatToEuler(q)
		fmt.Fprintf(stdout, "%d\t%.4f\t%.4f\t%.4f\t%s\n", f, e[0], e[1], e[2], math.GimbalPole(q))
	}
	return nil
}

func cmdCheck(ctx context.Context, stdout io.Writer, args []string) error {
	fs, shared := newFlagSet("check")
	s, err := start(fs, shared, args, "check [flags] <file.bvh>...", 1)
	if err != nil {
		return err
	}

	var errs error
	for _, path := range fs.Args() {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		anim, err := s.animate(ctx, path)
		if err != nil {
			s.log.Warn("check failed", zap.String("file", path), zap.Error(err))
			fmt.Fprintf(stdout, "FAIL %s: %v\n", path, err)
			errs = multierr.Append(errs, err)
			continue
		}
		fmt.Fprintf(stdout, "ok   %s (%d joints, %d frames)\n", path, anim.Joints(), anim.Frames())
	}

	if n := len(multierr.Errors(errs)); n > 0 {
		return fmt.Errorf("%d of %d files failed: %w", n, fs.NArg(), errs)
	}
	return nil
}

func cmdPlay(ctx context.Context, stdout io.Writer, args []string) error {
	fs, shared := newFlagSet("play")
	seconds := fs.Float64("seconds", 0, "Loop for this many seconds (0 = play once)")
	name := fs.String("joint", "", "Joint to report (default root)")
	s, err := start(fs, shared, args, "play [flags] [-seconds S] [-joint NAME] <file.bvh>", 1)
	if err != nil {
		return err
	}

	anim, err := s.animate(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	j := 0
	if *name != "" {
		if j = anim.Skeleton().Index(*name); j < 0 {
			return fmt.Errorf("joint %q not found", *name)
		}
	}

	if anim.Frames() == 0 {
		return fmt.Errorf("%s has no frames to play", fs.Arg(0))
	}

	p := kinematics.NewPlayer(anim)
	if p.Interval() <= 0 {
		return fmt.Errorf("frame time %gs is too small to play", anim.FrameTime())
	}
	p.Loop = *seconds > 0
	report := func() {
		pos := anim.Position(p.Frame(), j)
		fmt.Fprintf(stdout, "%8.3fs frame %-5d %s (%.3f, %.3f, %.3f)\n",
			p.Time(), p.Frame(), anim.Skeleton().Joints[j].Name, pos[0], pos[1], pos[2])
	}

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	begin := time.Now()
	end := begin.Add(time.Duration(*seconds * float64(time.Second)))
	last := begin
	report()
	for !p.Done() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if p.Advance(now.Sub(last)) > 0 {
				report()
			}
			last = now
			if p.Loop && now.After(end) {
				return nil
			}
		}
	}
	return nil
}
