package formats

import (
	gomath "math"
	"strconv"
)

// MaxEmptyFrames bounds the "Frames:" header of a skeleton without channels.
// Such a clip has no frame lines, so the header alone sets its length.
const MaxEmptyFrames = 1 << 20

// parseMotion reads the frame table that follows the MOTION marker.
// Every frame line must carry exactly skel.ChannelCount() values. The
// "Frames:" header is advisory: all lines up to end of input are parsed.
func parseMotion(c *cursor, skel *Skeleton) (Motion, error) {
	var motion Motion

	fields, ok := c.next()
	if !ok {
		return motion, c.failf(ErrUnexpectedEOF, "expected Frames:")
	}
	if len(fields) != 2 || fields[0] != "Frames:" {
		return motion, c.failf(ErrMalformedHeader, "expected Frames: <n>")
	}
	declared, err := strconv.Atoi(fields[1])
	if err != nil || declared < 0 {
		return motion, c.failf(ErrMalformedHeader, "bad frame count %q", fields[1])
	}
	motion.DeclaredFrames = declared
	want := skel.ChannelCount()
	if want == 0 && declared > MaxEmptyFrames {
		return motion, c.failf(ErrMalformedHeader, "frame count %d exceeds %d for a skeleton without channels", declared, MaxEmptyFrames)
	}

	fields, ok = c.next()
	if !ok {
		return motion, c.failf(ErrUnexpectedEOF, "expected Frame Time:")
	}
	if len(fields) != 3 || fields[0] != "Frame" || fields[1] != "Time:" {
		return motion, c.failf(ErrMalformedHeader, "expected Frame Time: <seconds>")
	}
	frameTime, err := strconv.ParseFloat(fields[2], 64)
	if err != nil || !(frameTime > 0) || gomath.IsInf(frameTime, 0) {
		return motion, c.failf(ErrMalformedHeader, "bad frame time %q", fields[2])
	}
	motion.FrameTime = frameTime

	// Frame vectors share one backing array.
	remaining := len(c.lines) - c.pos
	values := make([]float64, 0, min(declared, remaining)*want)
	lines := 0
	for {
		fields, ok := c.next()
		if !ok {
			break
		}
		if len(fields) != want {
			return motion, &DimensionError{Frame: lines, Line: c.line, Got: len(fields), Want: want}
		}
		for _, tok := range fields {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return motion, c.failf(ErrMalformedFrame, "frame %d: %q", lines, tok)
			}
			values = append(values, v)
		}
		lines++
	}

	if want == 0 {
		// Any data line fails above, so the header is the only frame information.
		lines = declared
	}
	motion.Frames = make([][]float64, lines)
	for i := range motion.Frames {
		motion.Frames[i] = values[i*want : (i+1)*want : (i+1)*want]
	}
	return motion, nil
}
