// BVH (Biovision Hierarchy) format parser: skeleton hierarchy plus frame table.

package formats

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/Faultbox/mocap/pkg/encoding"
	"github.com/Faultbox/mocap/pkg/math"
)

// Channel is one animated degree of freedom of a joint.
type Channel uint8

const (
	Xposition Channel = iota
	Yposition
	Zposition
	Xrotation
	Yrotation
	Zrotation
)

var channelNames = [...]string{
	Xposition: "Xposition",
	Yposition: "Yposition",
	Zposition: "Zposition",
	Xrotation: "Xrotation",
	Yrotation: "Yrotation",
	Zrotation: "Zrotation",
}

// ParseChannel decodes a CHANNELS token (case-insensitive).
func ParseChannel(token string) (Channel, error) {
	for i, name := range channelNames {
		if strings.EqualFold(token, name) {
			return Channel(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, token)
}

// String returns the canonical BVH token.
func (c Channel) String() string {
	if int(c) < len(channelNames) {
		return channelNames[c]
	}
	return fmt.Sprintf("Channel(%d)", uint8(c))
}

// IsPosition reports whether c is a translation channel.
func (c Channel) IsPosition() bool {
	return c <= Zposition
}

// IsRotation reports whether c is a rotation channel.
func (c Channel) IsRotation() bool {
	return c >= Xrotation && c <= Zrotation
}

// Axis returns the axis the channel acts along or around.
func (c Channel) Axis() math.Axis {
	return math.Axis(c % 3)
}

// Joint is one skeletal node. Parent is -1 for a root.
type Joint struct {
	Name     string
	Parent   int
	Offset   mgl64.Vec3 // static translation from the parent
	Channels []Channel
	Order    math.RotationOrder // decoded from the rotation tokens in Channels
	EndSite  bool               // terminal bone endpoint, never carries channels
}

// IsRoot returns true if the joint has no parent.
func (j *Joint) IsRoot() bool {
	return j.Parent < 0
}

// ChannelCount returns the number of per-frame values the joint consumes.
func (j *Joint) ChannelCount() int {
	return len(j.Channels)
}

// Skeleton is an ordered joint arena. Parents always precede their children.
type Skeleton struct {
	Joints []Joint
}

// Clone returns a deep copy that shares no slices with s.
func (s *Skeleton) Clone() *Skeleton {
	out := &Skeleton{Joints: slices.Clone(s.Joints)}
	for i := range out.Joints {
		out.Joints[i].Channels = slices.Clone(out.Joints[i].Channels)
	}
	return out
}

// Len returns the number of joints.
func (s *Skeleton) Len() int {
	return len(s.Joints)
}

// ChannelCount returns the total channel count over all joints.
func (s *Skeleton) ChannelCount() int {
	n := 0
	for i := range s.Joints {
		n += s.Joints[i].ChannelCount()
	}
	return n
}

// ChannelOffsets returns, per joint, the index of its first value in a frame vector.
func (s *Skeleton) ChannelOffsets() []int {
	offsets := make([]int, len(s.Joints))
	running := 0
	for i := range s.Joints {
		offsets[i] = running
		running += s.Joints[i].ChannelCount()
	}
	return offsets
}

// Index returns the index of the named joint, or -1.
func (s *Skeleton) Index(name string) int {
	for i := range s.Joints {
		if s.Joints[i].Name == name {
			return i
		}
	}
	return -1
}

// Children returns the indices of the direct children of joint i.
func (s *Skeleton) Children(i int) []int {
	var children []int
	for j := i + 1; j < len(s.Joints); j++ {
		if s.Joints[j].Parent == i {
			children = append(children, j)
		}
	}
	return children
}

// Depths returns the tree depth of every joint (roots are 0).
func (s *Skeleton) Depths() []int {
	depths := make([]int, len(s.Joints))
	for i := range s.Joints {
		if p := s.Joints[i].Parent; p >= 0 {
			depths[i] = depths[p] + 1
		}
	}
	return depths
}

// Validate checks the arena invariants: a root at index 0, every parent
// index smaller than its child's, and end sites without channels.
func (s *Skeleton) Validate() error {
	if len(s.Joints) == 0 {
		return ErrEmptySkeleton
	}
	if !s.Joints[0].IsRoot() {
		return fmt.Errorf("%w: joint 0 %q has parent %d", ErrInvalidSkeleton, s.Joints[0].Name, s.Joints[0].Parent)
	}
	for i := range s.Joints {
		j := &s.Joints[i]
		if j.Parent >= i {
			return fmt.Errorf("%w: joint %d %q has parent %d", ErrInvalidSkeleton, i, j.Name, j.Parent)
		}
		if j.EndSite && len(j.Channels) > 0 {
			return fmt.Errorf("%w: end site %q has channels", ErrInvalidSkeleton, j.Name)
		}
	}
	return nil
}

// Motion is the frame table of a clip.
type Motion struct {
	DeclaredFrames int         // "Frames:" header, advisory only
	FrameTime      float64     // seconds per frame
	Frames         [][]float64 // one channel vector per frame, in skeleton order
}

// FrameCount returns the number of frames actually parsed.
func (m *Motion) FrameCount() int {
	return len(m.Frames)
}

// Duration returns the clip length in seconds.
func (m *Motion) Duration() float64 {
	return float64(len(m.Frames)) * m.FrameTime
}

// BVH represents a parsed BVH file.
type BVH struct {
	Skeleton Skeleton
	Motion   Motion
}

// ParseOptions controls BVH parsing.
type ParseOptions struct {
	// KeepEndSites retains End Site blocks as channel-less terminal joints.
	KeepEndSites bool
	// Logger receives parse diagnostics. Nil disables logging.
	Logger *zap.Logger
}

func (o ParseOptions) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// ParseBVH parses BVH data from a byte slice.
func ParseBVH(data []byte, opts ParseOptions) (*BVH, error) {
	text, err := encoding.DecodeBytes(data)
	if err != nil {
		return nil, fmt.Errorf("decoding BVH text: %w", err)
	}

	log := opts.logger()
	c := newCursor(string(text))

	skel, err := parseHierarchy(c, opts)
	if err != nil {
		return nil, err
	}
	log.Debug("hierarchy parsed",
		zap.Int("joints", skel.Len()),
		zap.Int("channels", skel.ChannelCount()))

	motion, err := parseMotion(c, &skel)
	if err != nil {
		return nil, err
	}
	if motion.DeclaredFrames != motion.FrameCount() {
		log.Warn("frame count differs from header",
			zap.Int("declared", motion.DeclaredFrames),
			zap.Int("parsed", motion.FrameCount()))
	}
	log.Debug("motion parsed",
		zap.Int("frames", motion.FrameCount()),
		zap.Float64("frame_time", motion.FrameTime))

	return &BVH{Skeleton: skel, Motion: motion}, nil
}

// ReadBVH reads and parses BVH data from r.
func ReadBVH(r io.Reader, opts ParseOptions) (*BVH, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseBVH(data, opts)
}

// LoadBVH reads and parses the BVH file at path.
func LoadBVH(path string, opts ParseOptions) (*BVH, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bvh, err := ReadBVH(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return bvh, nil
}
