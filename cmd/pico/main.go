//go:build tinygo

// Command pico runs the controller on a Raspberry Pi Pico. All work
// shares the single cooperative loop, there is no config file and no
// web API.
package main

import (
	"fmt"
	"image/color"
	"log/slog"
	"machine"
	"time"

	"tinygo.org/x/drivers/ssd1306"
	"tinygo.org/x/drivers/ws2812"

	"lautenbacher.net/intellitraffic/clock"
	c "lautenbacher.net/intellitraffic/controller"
	co "lautenbacher.net/intellitraffic/coordinator"
	d "lautenbacher.net/intellitraffic/display"
	p "lautenbacher.net/intellitraffic/producer"
)

const (
	pinRed     = machine.GP13
	pinYellow  = machine.GP14
	pinGreen   = machine.GP15
	pinButtonA = machine.GP16
	pinButtonB = machine.GP17
	pinBuzzer  = machine.GP18
	pinMatrix  = machine.GP22
	pinSDA     = machine.GP4
	pinSCL     = machine.GP5
)

type oled struct {
	dev    ssd1306.Device
	canvas *d.Canvas
}

func (s *oled) Clear()                        { s.canvas.Clear() }
func (s *oled) Blit(id d.BitmapID)            { s.canvas.Blit(id) }
func (s *oled) DrawText(str string, x, y int) { s.canvas.DrawText(str, x, y) }

func (s *oled) Flush() error {
	// the canvas is already in the page format of the controller
	if err := s.dev.SetBuffer(s.canvas.Pix()); err != nil {
		return err
	}
	return s.dev.Display()
}

type matrix struct {
	dev    ws2812.Device
	colors [p.MatrixPixels]color.RGBA
}

func (s *matrix) SetPixel(i int, led p.Led) {
	if i < 0 || i >= p.MatrixPixels {
		return
	}
	r, g, b := led.Bytes()
	s.colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
}

func (s *matrix) Commit() error {
	return s.dev.WriteColors(s.colors[:])
}

type buzzer struct {
	pwm     *machine.PWMGroup
	channel uint8
}

func newBuzzer(pwm *machine.PWMGroup, pin machine.Pin) (*buzzer, error) {
	if err := pwm.Configure(machine.PWMConfig{Period: uint64(time.Second) / 1000}); err != nil {
		return nil, fmt.Errorf("failed to configure buzzer pwm: %w", err)
	}
	channel, err := pwm.Channel(pin)
	if err != nil {
		return nil, fmt.Errorf("failed to get buzzer pwm channel: %w", err)
	}
	bz := &buzzer{pwm: pwm, channel: channel}
	bz.Stop()
	return bz, nil
}

func (s *buzzer) SetTone(freqHz uint32) error {
	if freqHz == 0 {
		return s.Stop()
	}
	if err := s.pwm.SetPeriod(uint64(time.Second) / uint64(freqHz)); err != nil {
		return err
	}
	s.pwm.Set(s.channel, s.pwm.Top()/2)
	return nil
}

func (s *buzzer) Stop() error {
	s.pwm.Set(s.channel, 0)
	return nil
}

type lamps [3]machine.Pin

func (s lamps) SetLamps(l c.Lamps) error {
	s[0].Set(l.Red)
	s[1].Set(l.Yellow)
	s[2].Set(l.Green)
	return nil
}

// buttons samples the pins on every read. The loop polls every 10 ms,
// the debounce gate handles the bouncing.
type buttons struct {
	clock clock.Clock
	pins  map[c.ButtonID]machine.Pin
	last  map[c.ButtonID]bool
}

func (s *buttons) ReadEdge(id c.ButtonID) (clock.Timestamp, bool) {
	pin, ok := s.pins[id]
	if !ok {
		return 0, false
	}
	high := pin.Get()
	falling := s.last[id] && !high
	s.last[id] = high
	if !falling {
		return 0, false
	}
	return s.clock.Now(), true
}

func main() {
	clk := clock.NewMonotonic()

	for _, pin := range []machine.Pin{pinRed, pinYellow, pinGreen} {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		pin.Low()
	}
	btns := &buttons{
		clock: clk,
		pins:  map[c.ButtonID]machine.Pin{c.ButtonA: pinButtonA, c.ButtonB: pinButtonB},
		last:  map[c.ButtonID]bool{c.ButtonA: true, c.ButtonB: true},
	}
	for _, pin := range btns.pins {
		pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}

	machine.I2C0.Configure(machine.I2CConfig{Frequency: 400 * machine.KHz, SDA: pinSDA, SCL: pinSCL})
	dev := ssd1306.NewI2C(machine.I2C0)
	dev.Configure(ssd1306.Config{Width: d.Width, Height: d.Height, Address: 0x3C})
	bitmaps, err := d.LoadBitmaps("")
	if err != nil {
		slog.Error("Failed to load bitmaps", "error", err)
	}

	pinMatrix.Configure(machine.PinConfig{Mode: machine.PinOutput})

	drivers := co.Drivers{
		Display: &oled{dev: dev, canvas: d.NewCanvas(bitmaps)},
		Matrix:  &matrix{dev: ws2812.New(pinMatrix)},
		Buttons: btns,
		Lamps:   lamps{pinRed, pinYellow, pinGreen},
	}

	// without a buzzer the crossing runs silent
	if bz, err := newBuzzer(machine.PWM1, pinBuzzer); err != nil {
		slog.Error("Buzzer disabled", "error", err)
	} else {
		drivers.Buzzer = bz
	}

	coord := co.New(clk, drivers, co.DefaultOptions())
	loop := co.NewLoop(coord)
	coord.Boot()

	period := coord.Periods().Signal
	next := time.Now()
	for {
		loop.RunOnce(clk.Now())
		next = next.Add(period)
		time.Sleep(time.Until(next))
	}
}
