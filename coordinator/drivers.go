package coordinator

import (
	"lautenbacher.net/intellitraffic/clock"
	c "lautenbacher.net/intellitraffic/controller"
	d "lautenbacher.net/intellitraffic/display"
	p "lautenbacher.net/intellitraffic/producer"
)

// Display is the 128x64 monochrome screen. Clear, Blit and DrawText
// compose the next frame, Flush shows it.
type Display interface {
	Clear()
	Blit(id d.BitmapID)
	DrawText(s string, x, y int)
	Flush() error
}

// Buzzer is the tone generator for the audio cadence.
type Buzzer interface {
	SetTone(freqHz uint32) error
	Stop() error
}

// LedStrip is the 5x5 WS2812 matrix. SetPixel buffers, Commit shows
// all 25 pixels at once.
type LedStrip interface {
	SetPixel(i int, led p.Led)
	Commit() error
}

// Buttons reports edges seen since the last call per button.
type Buttons interface {
	ReadEdge(id c.ButtonID) (clock.Timestamp, bool)
}

// Lamps drives the three signal lamps.
type Lamps interface {
	SetLamps(l c.Lamps) error
}

// Drivers bundles the hardware a coordinator works with. A platform
// hands out one set of drivers.
type Drivers struct {
	Display Display
	Buzzer  Buzzer
	Matrix  LedStrip
	Buttons Buttons
	Lamps   Lamps
}
