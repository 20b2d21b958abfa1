package producer

import (
	c "lautenbacher.net/intellitraffic/controller"
)

const (
	MatrixSide   = 5
	MatrixPixels = MatrixSide * MatrixSide
)

// MatrixMask marks the lit pixels of the 5x5 matrix, index row*5+col:
// the inner 3x3 square.
var MatrixMask = func() [MatrixPixels]bool {
	var mask [MatrixPixels]bool
	for row := 1; row < MatrixSide-1; row++ {
		for col := 1; col < MatrixSide-1; col++ {
			mask[row*MatrixSide+col] = true
		}
	}
	return mask
}()

// Palette holds the matrix colors. The matrix faces the pedestrians,
// so it shows the inverse of the car signal: Walk while the cars see
// red, Wait while they see green.
type Palette struct {
	Night   Led
	Walk    Led
	Wait    Led
	Caution Led
}

func DefaultPalette() Palette {
	return Palette{
		Night:   Led{Red: 50, Green: 50},
		Walk:    Led{Green: 50},
		Wait:    Led{Red: 50},
		Caution: Led{Red: 50, Green: 50},
	}
}

// Reflector mirrors the signal state onto the LED matrix.
type Reflector struct {
	palette Palette
}

func NewReflector(palette Palette) *Reflector {
	return &Reflector{palette: palette}
}

// Color returns the matrix color for mode and color.
func (s *Reflector) Color(mode c.Mode, color c.Color) Led {
	if mode == c.Night {
		return s.palette.Night
	}
	switch color {
	case c.Red:
		return s.palette.Walk
	case c.Green:
		return s.palette.Wait
	default:
		return s.palette.Caution
	}
}

// Frame returns all 25 pixels: the mask in the state color, black
// elsewhere. The result only depends on mode and color.
func (s *Reflector) Frame(mode c.Mode, color c.Color) [MatrixPixels]Led {
	var frame [MatrixPixels]Led
	led := s.Color(mode, color)
	for i, on := range MatrixMask {
		if on {
			frame[i] = led
		}
	}
	return frame
}
