package domain

import "math"

const (
	MinQuality     = 1
	MaxQuality     = 100
	DefaultQuality = 92
)

// State is an editing snapshot. Every method returns a new value and
// leaves the receiver untouched.
type State struct {
	Original   Dimensions `json:"original"`
	Target     Dimensions `json:"target"`
	AspectLock bool       `json:"aspect_lock"`
	Quality    int        `json:"quality"`
	Loaded     bool       `json:"loaded"`
}

func NewState() State {
	return State{
		AspectLock: true,
		Quality:    DefaultQuality,
	}
}

// Load replaces both dimension pairs with the intrinsic size of a freshly
// decoded image and re-arms the aspect lock. Quality carries over.
func (s State) Load(original Dimensions) State {
	s.Original = original
	s.Target = original
	s.AspectLock = true
	s.Loaded = true
	return s
}

func (s State) SetDimension(axis Axis, value int) State {
	if s.AspectLock && s.Original.Width != 0 && s.Original.Height != 0 {
		ratio := float64(s.Original.Width) / float64(s.Original.Height)
		switch axis {
		case AxisWidth:
			s.Target = Dimensions{Width: value, Height: roundInt(float64(value) / ratio)}
		case AxisHeight:
			s.Target = Dimensions{Width: roundInt(float64(value) * ratio), Height: value}
		}
		return s
	}

	switch axis {
	case AxisWidth:
		s.Target.Width = value
	case AxisHeight:
		s.Target.Height = value
	}
	return s
}

func (s State) SetAspectLock(locked bool) State {
	s.AspectLock = locked
	return s
}

func (s State) SetQuality(quality int) State {
	s.Quality = ClampQuality(quality)
	return s
}

func ClampQuality(quality int) int {
	if quality < MinQuality {
		return MinQuality
	}
	if quality > MaxQuality {
		return MaxQuality
	}
	return quality
}

// roundInt rounds halves toward positive infinity, so -2.5 becomes -2.
func roundInt(v float64) int {
	return int(math.Floor(v + 0.5))
}
