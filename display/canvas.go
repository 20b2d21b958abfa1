package display

import (
	"image"
	"log/slog"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/devices/v3/ssd1306/image1bit"
)

// Canvas is the 128x64 monochrome frame buffer a frame is composed
// on before it is flushed to a display. Its memory layout is the
// SSD1306 page format, so bitmaps are copied in without conversion.
// A Canvas belongs to a single display task.
type Canvas struct {
	img     *image1bit.VerticalLSB
	bitmaps Bitmaps
	face    font.Face
}

func NewCanvas(bitmaps Bitmaps) *Canvas {
	return &Canvas{
		img:     image1bit.NewVerticalLSB(image.Rect(0, 0, Width, Height)),
		bitmaps: bitmaps,
		face:    basicfont.Face7x13,
	}
}

func (s *Canvas) Clear() {
	clear(s.img.Pix)
}

// Blit replaces the whole canvas with the bitmap id. Unknown ids clear
// the canvas.
func (s *Canvas) Blit(id BitmapID) {
	data, ok := s.bitmaps[id]
	if !ok {
		slog.Warn("unknown bitmap", "id", id)
		s.Clear()
		return
	}
	copy(s.img.Pix, data)
}

// DrawText draws str with its top left corner at (x, y). Text running
// off the canvas is clipped.
func (s *Canvas) DrawText(str string, x, y int) {
	d := font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(image1bit.On),
		Face: s.face,
		Dot:  fixed.P(x, y+s.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(str)
}

// Image returns the backing image. It must not be used after the next
// Clear, Blit or DrawText.
func (s *Canvas) Image() *image1bit.VerticalLSB {
	return s.img
}

// Pix returns a copy of the page formatted pixel data.
func (s *Canvas) Pix() []byte {
	ret := make([]byte, len(s.img.Pix))
	copy(ret, s.img.Pix)
	return ret
}

// On reports whether the pixel at (x, y) is set.
func (s *Canvas) On(x, y int) bool {
	return bool(s.img.BitAt(x, y))
}

// braille dot bits for a 2x4 cell, indexed [y][x]
var brailleDots = [4][2]rune{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// Braille renders the canvas as 16 lines of 64 braille characters,
// each character covering 2x4 pixels.
func (s *Canvas) Braille() string {
	var buf strings.Builder
	buf.Grow((Width/2*3 + 1) * Height / 4)
	for cy := 0; cy < Height; cy += 4 {
		for cx := 0; cx < Width; cx += 2 {
			r := rune(0x2800)
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if s.On(cx+dx, cy+dy) {
						r |= brailleDots[dy][dx]
					}
				}
			}
			buf.WriteRune(r)
		}
		if cy+4 < Height {
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}
