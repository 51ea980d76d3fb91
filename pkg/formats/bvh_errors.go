package formats

import (
	"errors"
	"fmt"
)

// BVH format errors.
var (
	ErrMissingHierarchy  = errors.New("missing HIERARCHY section")
	ErrMissingMotion     = errors.New("missing MOTION section")
	ErrUnexpectedEOF     = errors.New("unexpected end of input")
	ErrUnexpectedToken   = errors.New("unexpected token")
	ErrUnbalancedBraces  = errors.New("unbalanced braces")
	ErrMalformedOffset   = errors.New("malformed OFFSET")
	ErrMalformedChannels = errors.New("malformed CHANNELS")
	ErrMalformedHeader   = errors.New("malformed motion header")
	ErrMalformedFrame    = errors.New("malformed frame value")
	ErrEmptySkeleton     = errors.New("skeleton has no joints")
	ErrInvalidSkeleton   = errors.New("invalid skeleton")
	ErrUnknownChannel    = errors.New("unknown channel token")
	ErrDimension         = errors.New("frame length does not match channel count")
)

// ParseError is a structural violation at a given source line.
type ParseError struct {
	Line int // 1-based
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("bvh: line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// DimensionError reports a frame vector whose length disagrees with the
// skeleton's total channel count.
type DimensionError struct {
	Frame int // 0-based frame index
	Line  int
	Got   int
	Want  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("bvh: line %d: frame %d has %d values, want %d", e.Line, e.Frame, e.Got, e.Want)
}

func (e *DimensionError) Unwrap() error {
	return ErrDimension
}

// DecodeError reports a channel declaration that cannot be interpreted:
// an unknown token or a rotation set that is not a permutation of X, Y, Z.
type DecodeError struct {
	Joint string
	Token string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("bvh: joint %q: %v", e.Joint, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
