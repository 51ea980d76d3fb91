package kinematics

import "time"

// Player steps through an Animation in elapsed time. It is not safe for
// concurrent use; the Animation it reads is.
type Player struct {
	anim     *Animation
	interval time.Duration
	frame    int
	acc      time.Duration // time spent inside the current frame

	// Loop restarts at frame 0 after the last frame. Otherwise the player
	// stops on the last frame.
	Loop bool
}

// NewPlayer returns a looping player positioned at frame 0.
func NewPlayer(anim *Animation) *Player {
	return &Player{
		anim:     anim,
		interval: time.Duration(anim.FrameTime() * float64(time.Second)),
		Loop:     true,
	}
}

// Interval returns the duration of one frame.
func (p *Player) Interval() time.Duration {
	return p.interval
}

// Frame returns the current frame index.
func (p *Player) Frame() int {
	return p.frame
}

// Time returns the playback position in seconds.
func (p *Player) Time() float64 {
	return float64(p.frame)*p.anim.FrameTime() + p.acc.Seconds()
}

// Done reports whether a non-looping player has reached the last frame.
func (p *Player) Done() bool {
	return !p.Loop && p.frame >= p.anim.Frames()-1
}

// Reset rewinds to frame 0.
func (p *Player) Reset() {
	p.frame = 0
	p.acc = 0
}

// Advance moves playback forward by dt and returns the number of frame
// boundaries crossed.
func (p *Player) Advance(dt time.Duration) int {
	frames := p.anim.Frames()
	if frames <= 1 || p.interval <= 0 || dt <= 0 {
		return 0
	}

	crossed := 0
	p.acc += dt
	for p.acc >= p.interval {
		if p.Done() {
			p.acc = 0
			break
		}
		p.acc -= p.interval
		p.frame++
		crossed++
		if p.frame >= frames {
			p.frame = 0
		}
	}
	return crossed
}

// Segments returns the bone segments at the current frame.
func (p *Player) Segments() []Segment {
	return p.anim.Segments(p.frame)
}
