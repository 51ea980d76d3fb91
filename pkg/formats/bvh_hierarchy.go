package formats

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/mocap/pkg/math"
)

// cursor walks the source line by line, skipping blank lines.
type cursor struct {
	lines []string
	pos   int // index of the next unread line
	line  int // 1-based number of the last line returned
}

func newCursor(text string) *cursor {
	return &cursor{lines: strings.Split(text, "\n")}
}

// next returns the whitespace-separated fields of the next non-blank line.
func (c *cursor) next() ([]string, bool) {
	for c.pos < len(c.lines) {
		fields := strings.Fields(c.lines[c.pos])
		c.pos++
		c.line = c.pos
		if len(fields) > 0 {
			return fields, true
		}
	}
	c.line = len(c.lines)
	return nil, false
}

// fail wraps err with the current line number.
func (c *cursor) fail(err error) *ParseError {
	return &ParseError{Line: c.line, Err: err}
}

func (c *cursor) failf(sentinel error, format string, args ...any) *ParseError {
	return c.fail(fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...))
}

// parseHierarchy reads from the HIERARCHY marker up to and including the
// MOTION marker. Open ROOT/JOINT blocks are tracked on an explicit stack
// whose top is the parent of the next declaration.
func parseHierarchy(c *cursor, opts ParseOptions) (Skeleton, error) {
	var skel Skeleton

	fields, ok := c.next()
	if !ok || fields[0] != "HIERARCHY" {
		return skel, c.fail(ErrMissingHierarchy)
	}

	var stack []int
	for {
		fields, ok := c.next()
		if !ok {
			if len(stack) > 0 {
				return skel, c.failf(ErrUnexpectedEOF, "%d unclosed blocks", len(stack))
			}
			return skel, c.fail(ErrMissingMotion)
		}

		switch keyword := fields[0]; keyword {
		case "ROOT", "JOINT":
			if keyword == "ROOT" && len(stack) > 0 {
				return skel, c.failf(ErrUnexpectedToken, "ROOT inside joint %q", skel.Joints[stack[len(stack)-1]].Name)
			}
			if keyword == "JOINT" && len(stack) == 0 {
				return skel, c.failf(ErrUnexpectedToken, "JOINT outside ROOT")
			}
			parent := -1
			if len(stack) > 0 {
				parent = stack[len(stack)-1]
			}
			joint, err := parseJoint(c, fields, parent)
			if err != nil {
				return skel, err
			}
			skel.Joints = append(skel.Joints, joint)
			stack = append(stack, len(skel.Joints)-1)

		case "End":
			if len(stack) == 0 {
				return skel, c.failf(ErrUnexpectedToken, "End Site outside joint")
			}
			parent := stack[len(stack)-1]
			site, err := parseEndSite(c, fields, parent, skel.Joints[parent].Name)
			if err != nil {
				return skel, err
			}
			if opts.KeepEndSites {
				skel.Joints = append(skel.Joints, site)
			}

		case "}":
			if len(fields) != 1 {
				return skel, c.failf(ErrUnexpectedToken, "%q", strings.Join(fields, " "))
			}
			if len(stack) == 0 {
				return skel, c.fail(ErrUnbalancedBraces)
			}
			stack = stack[:len(stack)-1]

		case "MOTION":
			if len(stack) > 0 {
				return skel, c.failf(ErrUnbalancedBraces, "MOTION with %d unclosed blocks", len(stack))
			}
			if len(skel.Joints) == 0 {
				return skel, c.fail(ErrEmptySkeleton)
			}
			return skel, nil

		default:
			return skel, c.failf(ErrUnexpectedToken, "%q", keyword)
		}
	}
}

// parseJoint reads a ROOT/JOINT declaration through its CHANNELS line.
// The opening brace may trail the name or sit on its own line.
func parseJoint(c *cursor, fields []string, parent int) (Joint, error) {
	nameFields, braced := trimBrace(fields[1:])
	if len(nameFields) == 0 {
		return Joint{}, c.failf(ErrUnexpectedToken, "%s without a name", fields[0])
	}
	joint := Joint{Name: strings.Join(nameFields, " "), Parent: parent}

	if !braced {
		if err := expectOpen(c); err != nil {
			return joint, err
		}
	}

	offset, err := parseOffset(c)
	if err != nil {
		return joint, err
	}
	joint.Offset = offset

	channels, order, err := parseChannels(c, joint.Name)
	if err != nil {
		return joint, err
	}
	joint.Channels = channels
	joint.Order = order
	return joint, nil
}

// parseEndSite reads a complete "End Site { OFFSET x y z }" block.
func parseEndSite(c *cursor, fields []string, parent int, parentName string) (Joint, error) {
	rest, braced := trimBrace(fields[1:])
	if len(rest) != 1 || rest[0] != "Site" {
		return Joint{}, c.failf(ErrUnexpectedToken, "%q", strings.Join(fields, " "))
	}
	if !braced {
		if err := expectOpen(c); err != nil {
			return Joint{}, err
		}
	}

	offset, err := parseOffset(c)
	if err != nil {
		return Joint{}, err
	}

	closing, ok := c.next()
	if !ok {
		return Joint{}, c.failf(ErrUnexpectedEOF, "unterminated End Site")
	}
	if len(closing) != 1 || closing[0] != "}" {
		return Joint{}, c.failf(ErrUnexpectedToken, "%q in End Site", strings.Join(closing, " "))
	}

	return Joint{
		Name:    parentName + "_End",
		Parent:  parent,
		Offset:  offset,
		EndSite: true,
	}, nil
}

func trimBrace(fields []string) ([]string, bool) {
	if n := len(fields); n > 0 && fields[n-1] == "{" {
		return fields[:n-1], true
	}
	return fields, false
}

func expectOpen(c *cursor) error {
	fields, ok := c.next()
	if !ok {
		return c.failf(ErrUnexpectedEOF, "expected {")
	}
	if len(fields) != 1 || fields[0] != "{" {
		return c.failf(ErrUnexpectedToken, "expected {, got %q", strings.Join(fields, " "))
	}
	return nil
}

func parseOffset(c *cursor) (mgl64.Vec3, error) {
	var offset mgl64.Vec3

	fields, ok := c.next()
	if !ok {
		return offset, c.failf(ErrUnexpectedEOF, "expected OFFSET")
	}
	if fields[0] != "OFFSET" {
		return offset, c.failf(ErrMalformedOffset, "expected OFFSET, got %q", fields[0])
	}
	if len(fields) != 4 {
		return offset, c.failf(ErrMalformedOffset, "want 3 values, got %d", len(fields)-1)
	}
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return offset, c.failf(ErrMalformedOffset, "%q", fields[i+1])
		}
		offset[i] = v
	}
	return offset, nil
}

func parseChannels(c *cursor, joint string) ([]Channel, math.RotationOrder, error) {
	fields, ok := c.next()
	if !ok {
		return nil, math.OrderNone, c.failf(ErrUnexpectedEOF, "expected CHANNELS")
	}
	if fields[0] != "CHANNELS" || len(fields) < 2 {
		return nil, math.OrderNone, c.failf(ErrMalformedChannels, "expected CHANNELS <n> ..., got %q", strings.Join(fields, " "))
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return nil, math.OrderNone, c.failf(ErrMalformedChannels, "bad count %q", fields[1])
	}
	tokens := fields[2:]
	if len(tokens) != n {
		return nil, math.OrderNone, c.failf(ErrMalformedChannels, "declares %d channels, found %d", n, len(tokens))
	}

	channels := make([]Channel, n)
	for i, tok := range tokens {
		ch, err := ParseChannel(tok)
		if err != nil {
			return nil, math.OrderNone, c.fail(&DecodeError{Joint: joint, Token: tok, Err: err})
		}
		channels[i] = ch
	}

	order, err := rotationOrder(channels)
	if err != nil {
		return nil, math.OrderNone, c.fail(&DecodeError{Joint: joint, Token: strings.Join(tokens, " "), Err: err})
	}
	return channels, order, nil
}

// rotationOrder derives the composition order from the relative order of the
// rotation channels. No rotation channels yields OrderNone.
func rotationOrder(channels []Channel) (math.RotationOrder, error) {
	var axes []math.Axis
	for _, ch := range channels {
		if ch.IsRotation() {
			axes = append(axes, ch.Axis())
		}
	}
	switch len(axes) {
	case 0:
		return math.OrderNone, nil
	case 3:
		return math.OrderFromAxes(axes[0], axes[1], axes[2])
	default:
		return math.OrderNone, fmt.Errorf("%w: %d rotation channels", math.ErrUnsupportedOrder, len(axes))
	}
}
