package producer

import (
	"math"

	u "lautenbacher.net/intellitraffic/util"
)

// Led is the color of a single RGB pixel. Components are in the range
// 0..255, fractional values are allowed for smooth scaling.
type Led struct {
	Red   float64 `json:"red"`
	Green float64 `json:"green"`
	Blue  float64 `json:"blue"`
}

// NewLed builds a Led from a [r, g, b] slice as found in the config.
// Missing components are 0.
func NewLed(rgb []float64) Led {
	var l Led
	if len(rgb) > 0 {
		l.Red = rgb[0]
	}
	if len(rgb) > 1 {
		l.Green = rgb[1]
	}
	if len(rgb) > 2 {
		l.Blue = rgb[2]
	}
	return l
}

// True if all components are zero, false otherwise
func (s Led) IsEmpty() bool {
	return s.Red == 0 && s.Green == 0 && s.Blue == 0
}

// Bytes returns the rounded components clamped to 0..255.
func (s Led) Bytes() (r, g, b byte) {
	conv := func(v float64) byte {
		return byte(math.Round(u.Clamp(v, 0, 255)))
	}
	return conv(s.Red), conv(s.Green), conv(s.Blue)
}
