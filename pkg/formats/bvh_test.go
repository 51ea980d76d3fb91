package formats

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/mocap/pkg/math"
)

const sampleBVH = `HIERARCHY
ROOT Hips
{
	OFFSET 0.00 0.00 0.00
	CHANNELS 6 Xposition Yposition Zposition Zrotation Xrotation Yrotation
	JOINT Chest
	{
		OFFSET 0.00 5.21 0.00
		CHANNELS 3 Zrotation Xrotation Yrotation
		JOINT Head
		{
			OFFSET 0.00 8.00 0.00
			CHANNELS 3 Zrotation Yrotation Xrotation
			End Site
			{
				OFFSET 0.00 3.00 0.00
			}
		}
	}
	JOINT LeftHip
	{
		OFFSET 3.91 0.00 0.00
		CHANNELS 3 Xrotation Yrotation Zrotation
		End Site
		{
			OFFSET 0.00 -8.00 0.00
		}
	}
}
MOTION
Frames: 2
Frame Time: 0.033333
1 2 3 10 20 30 0 0 0 0 0 0 0 0 0
4 5 6 -10 -20 -30 1 2 3 4 5 6 7 8 9
`

// minimalHierarchy occupies lines 1-6; MOTION starts on line 7.
const minimalHierarchy = "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 3 Zrotation Xrotation Yrotation\n}\n"

func TestParseBVH_Sample(t *testing.T) {
	bvh, err := ParseBVH([]byte(sampleBVH), ParseOptions{})
	if err != nil {
		t.Fatalf("ParseBVH failed: %v", err)
	}

	skel := &bvh.Skeleton
	wantNames := []string{"Hips", "Chest", "Head", "LeftHip"}
	wantParents := []int{-1, 0, 1, 0}
	wantOrders := []math.RotationOrder{math.OrderZXY, math.OrderZXY, math.OrderZYX, math.OrderXYZ}

	if skel.Len() != len(wantNames) {
		t.Fatalf("expected %d joints, got %d", len(wantNames), skel.Len())
	}
	for i, j := range skel.Joints {
		if j.Name != wantNames[i] {
			t.Errorf("joint %d: name %q, want %q", i, j.Name, wantNames[i])
		}
		if j.Parent != wantParents[i] {
			t.Errorf("joint %d: parent %d, want %d", i, j.Parent, wantParents[i])
		}
		if j.Order != wantOrders[i] {
			t.Errorf("joint %d: order %v, want %v", i, j.Order, wantOrders[i])
		}
	}

	if !skel.Joints[0].IsRoot() {
		t.Error("joint 0 should be root")
	}
	if got := skel.Joints[1].Offset; got != (mgl64.Vec3{0, 5.21, 0}) {
		t.Errorf("Chest offset = %v", got)
	}
	if skel.ChannelCount() != 15 {
		t.Errorf("expected 15 channels, got %d", skel.ChannelCount())
	}
	if got := skel.ChannelOffsets(); !equalInts(got, []int{0, 6, 9, 12}) {
		t.Errorf("ChannelOffsets = %v", got)
	}

	motion := &bvh.Motion
	if motion.FrameCount() != 2 || motion.DeclaredFrames != 2 {
		t.Errorf("frames: parsed %d, declared %d", motion.FrameCount(), motion.DeclaredFrames)
	}
	if motion.FrameTime != 0.033333 {
		t.Errorf("frame time = %v", motion.FrameTime)
	}
	if motion.Frames[1][3] != -10 || motion.Frames[1][14] != 9 {
		t.Errorf("unexpected frame values: %v", motion.Frames[1])
	}
	if len(motion.Frames[0]) != 15 || cap(motion.Frames[0]) != 15 {
		t.Errorf("frame 0 should be a 15-value window, len %d cap %d", len(motion.Frames[0]), cap(motion.Frames[0]))
	}
}

func TestParseBVH_KeepEndSites(t *testing.T) {
	bvh, err := ParseBVH([]byte(sampleBVH), ParseOptions{KeepEndSites: true})
	if err != nil {
		t.Fatalf("ParseBVH failed: %v", err)
	}

	skel := &bvh.Skeleton
	wantNames := []string{"Hips", "Chest", "Head", "Head_End", "LeftHip", "LeftHip_End"}
	wantParents := []int{-1, 0, 1, 2, 0, 4}
	if skel.Len() != len(wantNames) {
		t.Fatalf("expected %d joints, got %d", len(wantNames), skel.Len())
	}
	for i, j := range skel.Joints {
		if j.Name != wantNames[i] || j.Parent != wantParents[i] {
			t.Errorf("joint %d: got (%q, %d), want (%q, %d)", i, j.Name, j.Parent, wantNames[i], wantParents[i])
		}
	}

	site := skel.Joints[5]
	if !site.EndSite || site.ChannelCount() != 0 || site.Order != math.OrderNone {
		t.Errorf("end site should be channel-less: %+v", site)
	}
	if site.Offset != (mgl64.Vec3{0, -8, 0}) {
		t.Errorf("end site offset = %v", site.Offset)
	}

	// End sites do not change the frame layout
	if skel.ChannelCount() != 15 {
		t.Errorf("expected 15 channels, got %d", skel.ChannelCount())
	}
	if err := skel.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParseBVH_ParentPrecedesChild(t *testing.T) {
	for _, keep := range []bool{false, true} {
		bvh, err := ParseBVH([]byte(sampleBVH), ParseOptions{KeepEndSites: keep})
		if err != nil {
			t.Fatalf("ParseBVH failed: %v", err)
		}
		for i, j := range bvh.Skeleton.Joints {
			if i == 0 {
				continue
			}
			if j.Parent < 0 || j.Parent >= i {
				t.Errorf("joint %d %q: parent %d violates ordering", i, j.Name, j.Parent)
			}
		}
	}
}

func TestParseBVH_InlineBraces(t *testing.T) {
	src := "HIERARCHY\nROOT Root Bone {\n OFFSET 1 2 3\n CHANNELS 3 Xrotation Zrotation Yrotation\n End Site {\n OFFSET 0 1 0\n }\n}\n" +
		"MOTION\nFrames: 1\nFrame Time: 0.5\n0 0 0\n"
	bvh, err := ParseBVH([]byte(src), ParseOptions{KeepEndSites: true})
	if err != nil {
		t.Fatalf("ParseBVH failed: %v", err)
	}
	if bvh.Skeleton.Len() != 2 {
		t.Fatalf("expected 2 joints, got %d", bvh.Skeleton.Len())
	}
	root := bvh.Skeleton.Joints[0]
	if root.Name != "Root Bone" || root.Order != math.OrderXZY {
		t.Errorf("root = %+v", root)
	}
}

func TestParseBVH_Errors(t *testing.T) {
	motion := "MOTION\nFrames: 1\nFrame Time: 0.1\n"

	tests := []struct {
		name     string
		src      string
		wantErr  error
		wantLine int // 0 skips the line check
	}{
		{"empty input", "", ErrMissingHierarchy, 1},
		{"no hierarchy marker", "ROOT A\n", ErrMissingHierarchy, 1},
		{"missing motion", minimalHierarchy, ErrMissingMotion, 0},
		{"truncated joint", "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\n", ErrUnexpectedEOF, 0},
		{"truncated before offset", "HIERARCHY\nROOT A\n", ErrUnexpectedEOF, 0},
		{"offset too short", "HIERARCHY\nROOT A\n{\nOFFSET 0 0\nCHANNELS 0\n}\n" + motion, ErrMalformedOffset, 4},
		{"offset not numeric", "HIERARCHY\nROOT A\n{\nOFFSET 0 x 0\nCHANNELS 0\n}\n" + motion, ErrMalformedOffset, 4},
		{"offset missing", "HIERARCHY\nROOT A\n{\nCHANNELS 0\n}\n" + motion, ErrMalformedOffset, 4},
		{"channel count mismatch", "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 3 Xrotation Yrotation\n}\n" + motion, ErrMalformedChannels, 5},
		{"channel count not numeric", "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS three\n}\n" + motion, ErrMalformedChannels, 5},
		{"unclosed at end of input", "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 0\n", ErrUnexpectedEOF, 0},
		{"motion inside block", "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 0\nMOTION\n", ErrUnbalancedBraces, 6},
		{"extra closing brace", "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 0\n}\n}\n" + motion, ErrUnbalancedBraces, 7},
		{"joint outside root", "HIERARCHY\nJOINT A\n", ErrUnexpectedToken, 2},
		{"nested root", "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 0\nROOT B\n", ErrUnexpectedToken, 6},
		{"unknown keyword", "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 0\nBOGUS\n", ErrUnexpectedToken, 6},
		{"missing open brace", "HIERARCHY\nROOT A\nOFFSET 0 0 0\n", ErrUnexpectedToken, 3},
		{"end site outside joint", "HIERARCHY\nEnd Site\n", ErrUnexpectedToken, 2},
		{"unterminated end site", "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 0\nEnd Site\n{\nOFFSET 0 1 0\n", ErrUnexpectedEOF, 0},
		{"empty skeleton", "HIERARCHY\nMOTION\n", ErrEmptySkeleton, 2},
		{"bad frame count", minimalHierarchy + "MOTION\nFrames: x\nFrame Time: 0.1\n", ErrMalformedHeader, 8},
		{"negative frame count", minimalHierarchy + "MOTION\nFrames: -1\nFrame Time: 0.1\n", ErrMalformedHeader, 8},
		{"zero frame time", minimalHierarchy + "MOTION\nFrames: 1\nFrame Time: 0\n", ErrMalformedHeader, 9},
		{"missing frame time", minimalHierarchy + "MOTION\nFrames: 1\n", ErrUnexpectedEOF, 0},
		{"non-numeric frame value", minimalHierarchy + motion + "1 two 3\n", ErrMalformedFrame, 10},
		{"unknown channel", "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 1 Wrotation\n}\n" + motion, ErrUnknownChannel, 5},
		{"partial rotation set", "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 2 Xrotation Yrotation\n}\n" + motion, math.ErrUnsupportedOrder, 5},
		{"repeated rotation axis", "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 3 Xrotation Xrotation Yrotation\n}\n" + motion, math.ErrUnsupportedOrder, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseBVH([]byte(tt.src), ParseOptions{})
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.wantErr)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *ParseError, got %T", err)
			}
			if tt.wantLine != 0 && pe.Line != tt.wantLine {
				t.Errorf("error line = %d, want %d (%v)", pe.Line, tt.wantLine, err)
			}
		})
	}
}

func TestParseBVH_DecodeError(t *testing.T) {
	src := "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 2 Xposition Qrotation\n}\nMOTION\n"
	_, err := ParseBVH([]byte(src), ParseOptions{})

	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DecodeError, got %v", err)
	}
	if de.Joint != "A" || de.Token != "Qrotation" {
		t.Errorf("DecodeError = %+v", de)
	}
}

func TestParseBVH_DimensionError(t *testing.T) {
	tests := []struct {
		name  string
		lines string
		frame int
		line  int
		got   int
	}{
		{"short line", "1 2 3\n4 5\n", 1, 11, 2},
		{"long line", "1 2 3 4\n", 0, 10, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := minimalHierarchy + "MOTION\nFrames: 2\nFrame Time: 0.1\n" + tt.lines
			_, err := ParseBVH([]byte(src), ParseOptions{})

			var de *DimensionError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DimensionError, got %v", err)
			}
			if !errors.Is(err, ErrDimension) {
				t.Error("DimensionError should match ErrDimension")
			}
			if de.Frame != tt.frame || de.Line != tt.line || de.Got != tt.got || de.Want != 3 {
				t.Errorf("DimensionError = %+v", de)
			}
		})
	}
}

func TestParseBVH_FrameCountAdvisory(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		lines    string
		want     int
	}{
		{"truncated table", "5", "0 0 0\n1 1 1\n", 2},
		{"extra lines", "1", "0 0 0\n1 1 1\n2 2 2\n", 3},
		{"blank lines skipped", "2", "0 0 0\n\n   \n1 1 1\n\n", 2},
		{"header only", "0", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := minimalHierarchy + "MOTION\nFrames: " + tt.declared + "\nFrame Time: 0.1\n" + tt.lines
			bvh, err := ParseBVH([]byte(src), ParseOptions{})
			if err != nil {
				t.Fatalf("ParseBVH failed: %v", err)
			}
			if bvh.Motion.FrameCount() != tt.want {
				t.Errorf("FrameCount = %d, want %d", bvh.Motion.FrameCount(), tt.want)
			}
		})
	}
}

func TestParseBVH_WarnsOnFrameCountMismatch(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	src := minimalHierarchy + "MOTION\nFrames: 4\nFrame Time: 0.1\n0 0 0\n"

	if _, err := ParseBVH([]byte(src), ParseOptions{Logger: zap.New(core)}); err != nil {
		t.Fatalf("ParseBVH failed: %v", err)
	}
	if n := logs.FilterMessage("frame count differs from header").Len(); n != 1 {
		t.Errorf("expected 1 warning, got %d", n)
	}
}

func TestParseBVH_NoChannels(t *testing.T) {
	src := "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 0\n}\nMOTION\nFrames: 3\nFrame Time: 0.1\n"
	bvh, err := ParseBVH([]byte(src), ParseOptions{})
	if err != nil {
		t.Fatalf("ParseBVH failed: %v", err)
	}
	if bvh.Motion.FrameCount() != 3 {
		t.Errorf("FrameCount = %d, want 3", bvh.Motion.FrameCount())
	}
	if bvh.Skeleton.Joints[0].Order != math.OrderNone {
		t.Errorf("order = %v, want None", bvh.Skeleton.Joints[0].Order)
	}
}

func TestParseBVH_NoChannelsRejects(t *testing.T) {
	head := "HIERARCHY\nROOT A\n{\nOFFSET 0 0 0\nCHANNELS 0\n}\nMOTION\n"

	t.Run("data line", func(t *testing.T) {
		_, err := ParseBVH([]byte(head+"Frames: 1\nFrame Time: 0.1\n1 2 3\n"), ParseOptions{})
		var de *DimensionError
		if !errors.As(err, &de) {
			t.Fatalf("expected *DimensionError, got %v", err)
		}
		if de.Frame != 0 || de.Got != 3 || de.Want != 0 || de.Line != 10 {
			t.Errorf("DimensionError = %+v", de)
		}
	})

	t.Run("oversized header", func(t *testing.T) {
		_, err := ParseBVH([]byte(head+"Frames: 100000000000000\nFrame Time: 0.1\n"), ParseOptions{})
		if !errors.Is(err, ErrMalformedHeader) {
			t.Fatalf("expected ErrMalformedHeader, got %v", err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) || pe.Line != 8 {
			t.Errorf("expected ParseError at line 8, got %v", err)
		}
	})

	t.Run("header at limit", func(t *testing.T) {
		src := head + fmt.Sprintf("Frames: %d\nFrame Time: 0.1\n", MaxEmptyFrames)
		bvh, err := ParseBVH([]byte(src), ParseOptions{})
		if err != nil {
			t.Fatalf("ParseBVH failed: %v", err)
		}
		if bvh.Motion.FrameCount() != MaxEmptyFrames {
			t.Errorf("FrameCount = %d, want %d", bvh.Motion.FrameCount(), MaxEmptyFrames)
		}
	})
}

func TestParseBVH_ByteOrderMarkAndCRLF(t *testing.T) {
	src := "\xEF\xBB\xBF" + strings.ReplaceAll(sampleBVH, "\n", "\r\n")
	bvh, err := ParseBVH([]byte(src), ParseOptions{})
	if err != nil {
		t.Fatalf("ParseBVH failed: %v", err)
	}
	if bvh.Skeleton.Len() != 4 || bvh.Motion.FrameCount() != 2 {
		t.Errorf("got %d joints, %d frames", bvh.Skeleton.Len(), bvh.Motion.FrameCount())
	}
}

func TestLoadBVH(t *testing.T) {
	path := filepath.Join(t.TempDir(), "walk.bvh")
	if err := os.WriteFile(path, []byte(sampleBVH), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	bvh, err := LoadBVH(path, ParseOptions{})
	if err != nil {
		t.Fatalf("LoadBVH failed: %v", err)
	}
	if bvh.Skeleton.Len() != 4 {
		t.Errorf("expected 4 joints, got %d", bvh.Skeleton.Len())
	}

	if _, err := LoadBVH(filepath.Join(t.TempDir(), "missing.bvh"), ParseOptions{}); err == nil {
		t.Error("expected error loading missing file")
	}
}

func TestSkeletonQueries(t *testing.T) {
	bvh, err := ParseBVH([]byte(sampleBVH), ParseOptions{KeepEndSites: true})
	if err != nil {
		t.Fatalf("ParseBVH failed: %v", err)
	}
	skel := &bvh.Skeleton

	if got := skel.Index("LeftHip"); got != 4 {
		t.Errorf("Index(LeftHip) = %d, want 4", got)
	}
	if got := skel.Index("Tail"); got != -1 {
		t.Errorf("Index(Tail) = %d, want -1", got)
	}
	if got := skel.Children(0); !equalInts(got, []int{1, 4}) {
		t.Errorf("Children(0) = %v", got)
	}
	if got := skel.Depths(); !equalInts(got, []int{0, 1, 2, 3, 1, 2}) {
		t.Errorf("Depths = %v", got)
	}
}

func TestSkeletonValidate(t *testing.T) {
	tests := []struct {
		name    string
		joints  []Joint
		wantErr error
	}{
		{"empty", nil, ErrEmptySkeleton},
		{"non-root first", []Joint{{Name: "A", Parent: 0}}, ErrInvalidSkeleton},
		{"forward parent", []Joint{{Name: "A", Parent: -1}, {Name: "B", Parent: 2}, {Name: "C", Parent: 0}}, ErrInvalidSkeleton},
		{"end site with channels", []Joint{{Name: "A", Parent: -1}, {Name: "B", Parent: 0, EndSite: true, Channels: []Channel{Xrotation}}}, ErrInvalidSkeleton},
		{"valid", []Joint{{Name: "A", Parent: -1}, {Name: "B", Parent: 0}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Skeleton{Joints: tt.joints}
			err := s.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		token   string
		want    Channel
		wantErr bool
	}{
		{"Xposition", Xposition, false},
		{"Zrotation", Zrotation, false},
		{"YROTATION", Yrotation, false},
		{"Wposition", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := ParseChannel(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChannel(%q) error = %v, wantErr %v", tt.token, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseChannel(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}

	if !Yposition.IsPosition() || Yposition.IsRotation() || Yposition.Axis() != math.AxisY {
		t.Error("Yposition classification wrong")
	}
	if !Zrotation.IsRotation() || Zrotation.IsPosition() || Zrotation.Axis() != math.AxisZ {
		t.Error("Zrotation classification wrong")
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSkeletonClone(t *testing.T) {
	bvh, err := ParseBVH([]byte(sampleBVH), ParseOptions{})
	if err != nil {
		t.Fatalf("ParseBVH failed: %v", err)
	}

	clone := bvh.Skeleton.Clone()
	bvh.Skeleton.Joints[1].Name = "Renamed"
	bvh.Skeleton.Joints[0].Channels[0] = Zrotation
	bvh.Skeleton.Joints = bvh.Skeleton.Joints[:1]

	if clone.Len() != 4 {
		t.Errorf("clone length = %d, want 4", clone.Len())
	}
	if clone.Joints[1].Name != "Chest" {
		t.Errorf("clone joint 1 = %q, want Chest", clone.Joints[1].Name)
	}
	if clone.Joints[0].Channels[0] != Xposition {
		t.Errorf("clone channel aliased the original: %v", clone.Joints[0].Channels[0])
	}
}
