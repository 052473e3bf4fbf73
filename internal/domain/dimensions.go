package domain

import (
	"fmt"
	"strings"
)

type Axis string

const (
	AxisWidth  Axis = "width"
	AxisHeight Axis = "height"
)

func ParseAxis(in string) (Axis, error) {
	switch Axis(strings.ToLower(strings.TrimSpace(in))) {
	case AxisWidth:
		return AxisWidth, nil
	case AxisHeight:
		return AxisHeight, nil
	default:
		return "", fmt.Errorf("unsupported axis: %q", in)
	}
}

// DefaultMaxPixels bounds decoded sources and rendered targets. An RGBA
// canvas of this size needs about 200 MB.
const DefaultMaxPixels int64 = 50_000_000

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Positive reports whether both axes are at least one pixel.
func (d Dimensions) Positive() bool {
	return d.Width >= 1 && d.Height >= 1
}

func (d Dimensions) Pixels() int64 {
	return int64(d.Width) * int64(d.Height)
}

// Exceeds reports whether d covers more than limit pixels. A limit of zero
// or less disables the check.
func (d Dimensions) Exceeds(limit int64) bool {
	return limit > 0 && d.Pixels() > limit
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// ParseDimension reads the leading integer of free-form input. Leading
// whitespace and a single sign are accepted; anything without digits is 0.
func ParseDimension(text string) int {
	s := strings.TrimLeft(text, " \t\n\r\v\f")

	negative := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		negative = s[0] == '-'
		s = s[1:]
	}

	const limit = 1 << 30
	value := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			break
		}
		if value < limit {
			value = value*10 + int(c-'0')
		}
	}
	if value > limit {
		value = limit
	}
	if negative {
		return -value
	}
	return value
}
