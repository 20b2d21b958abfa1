package platform

import (
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/stianeikeland/go-rpio/v4"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/devices/v3/ssd1306"
	"periph.io/x/host/v3"

	"lautenbacher.net/intellitraffic/clock"
	"lautenbacher.net/intellitraffic/config"
	"lautenbacher.net/intellitraffic/coordinator"
	c "lautenbacher.net/intellitraffic/controller"
	d "lautenbacher.net/intellitraffic/display"
	p "lautenbacher.net/intellitraffic/producer"
)

// buttonPollDelay is how often the button pins are sampled for edges.
const buttonPollDelay = 2 * time.Millisecond

type RaspberryPiPlatform struct {
	*AbstractPlatform
	i2cBus     i2c.BusCloser
	oled       *ssd1306.Dev
	spiPort    spi.PortCloser
	matrix     *nrzled.Dev
	matrixBuf  []byte
	lampPins   [3]gpio.PinIO
	buttonPins map[c.ButtonID]gpio.PinIO
	buzzer     *pwmBuzzer
	rpioOpen   bool
	buttonWg   sync.WaitGroup
	buttonStop chan bool
}

// pwmBuzzer drives a passive buzzer with the hardware PWM of the pin.
// The PWM clock is cycleLen times the tone frequency, a duty cycle of
// half the cycle gives a square wave.
type pwmBuzzer struct {
	pin      rpio.Pin
	cycleLen uint32
}

func NewRaspberryPiPlatform(conf *config.Config, clk clock.Clock) *RaspberryPiPlatform {
	inst := &RaspberryPiPlatform{
		AbstractPlatform: newAbstractPlatform(conf, clk),
		buttonPins:       make(map[c.ButtonID]gpio.PinIO, len(c.Buttons)),
		buttonStop:       make(chan bool),
	}
	inst.flushFunc = inst.flushOled
	inst.commitFunc = inst.commitMatrix
	return inst
}

func (s *RaspberryPiPlatform) Start() error {
	if err := s.loadCanvas(); err != nil {
		return err
	}

	hw := s.config.Hardware
	slog.Info("Initialise GPIO, I2C and SPI...")
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("failed to init periph: %w", err)
	}

	lampGPIOs := [3]int{hw.Lamps.RedGPIO, hw.Lamps.YellowGPIO, hw.Lamps.GreenGPIO}
	for i, num := range lampGPIOs {
		pin, err := outputPin(num)
		if err != nil {
			return err
		}
		s.lampPins[i] = pin
	}

	buttonGPIOs := map[c.ButtonID]int{c.ButtonA: hw.Buttons.AGPIO, c.ButtonB: hw.Buttons.BGPIO}
	for id, num := range buttonGPIOs {
		pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", num))
		if pin == nil {
			return fmt.Errorf("failed to find pin %d", num)
		}
		// buttons pull the pin to ground when pressed
		if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
			return fmt.Errorf("failed to set pin %d to input: %w", num, err)
		}
		s.buttonPins[id] = pin
	}

	var err error
	s.i2cBus, err = i2creg.Open(hw.Display.I2CBus)
	if err != nil {
		return fmt.Errorf("failed to open i2c bus %q: %w", hw.Display.I2CBus, err)
	}
	s.oled, err = ssd1306.NewI2C(s.i2cBus, &ssd1306.DefaultOpts)
	if err != nil {
		return fmt.Errorf("failed to initialise ssd1306: %w", err)
	}

	s.spiPort, err = spireg.Open(hw.Matrix.SPIPort)
	if err != nil {
		return fmt.Errorf("failed to open spi: %w", err)
	}
	s.matrix, err = nrzled.NewSPI(s.spiPort, &nrzled.Opts{
		NumPixels: p.MatrixPixels,
		Channels:  3,
		Freq:      physic.Frequency(hw.Matrix.SPIFrequency) * physic.Hertz,
	})
	if err != nil {
		return fmt.Errorf("failed to initialise ws2812 matrix: %w", err)
	}
	s.matrixBuf = make([]byte, 3*p.MatrixPixels)

	if err := rpio.Open(); err != nil {
		return fmt.Errorf("failed to open rpio: %w", err)
	}
	s.rpioOpen = true
	s.buzzer = newPwmBuzzer(hw.Buzzer.GPIO, hw.Buzzer.CycleLength)

	s.buttonWg.Add(1)
	go s.buttonDriver()

	close(s.readyChan) // For RPi, we are ready immediately.
	return nil
}

func (s *RaspberryPiPlatform) Stop() {
	s.setInShutdown()

	close(s.buttonStop)
	s.buttonWg.Wait()

	if s.buzzer != nil {
		if err := s.buzzer.Stop(); err != nil {
			slog.Error("Error stopping buzzer", "error", err)
		}
		s.buzzer.pin.Mode(rpio.Output)
		s.buzzer.pin.Low()
	}
	if s.rpioOpen {
		if err := rpio.Close(); err != nil {
			slog.Error("Error closing rpio", "error", err)
		}
		s.rpioOpen = false
	}

	if s.matrix != nil {
		clear(s.matrixBuf)
		if _, err := s.matrix.Write(s.matrixBuf); err != nil {
			slog.Error("Error clearing matrix", "error", err)
		}
		s.matrix = nil
	}
	if s.spiPort != nil {
		if err := s.spiPort.Close(); err != nil {
			slog.Error("Error closing spi port", "error", err)
		}
		s.spiPort = nil
	}

	if s.oled != nil {
		if err := s.oled.Halt(); err != nil {
			slog.Error("Error halting display", "error", err)
		}
		s.oled = nil
	}
	if s.i2cBus != nil {
		if err := s.i2cBus.Close(); err != nil {
			slog.Error("Error closing i2c bus", "error", err)
		}
		s.i2cBus = nil
	}

	for _, pin := range s.lampPins {
		if pin != nil {
			pin.Out(gpio.Low)
			pin.Halt()
		}
	}
	for _, pin := range s.buttonPins {
		pin.Halt()
	}
}

func (s *RaspberryPiPlatform) Drivers() coordinator.Drivers {
	return coordinator.Drivers{
		Display: s.AbstractPlatform,
		Buzzer:  s.buzzer,
		Matrix:  s.AbstractPlatform,
		Buttons: s.AbstractPlatform,
		Lamps:   s,
	}
}

func (s *RaspberryPiPlatform) SetLamps(l c.Lamps) error {
	for i, on := range [3]bool{l.Red, l.Yellow, l.Green} {
		if err := s.lampPins[i].Out(gpio.Level(on)); err != nil {
			return fmt.Errorf("failed to set lamp pin %s: %w", s.lampPins[i], err)
		}
	}
	return nil
}

func (s *RaspberryPiPlatform) flushOled(canvas *d.Canvas) error {
	img := canvas.Image()
	return s.oled.Draw(img.Bounds(), img, image.Point{})
}

func (s *RaspberryPiPlatform) commitMatrix(pixels [p.MatrixPixels]p.Led) error {
	matrixBytes(s.matrixBuf, pixels)
	_, err := s.matrix.Write(s.matrixBuf)
	return err
}

// matrixBytes packs the pixels as consecutive RGB triples. nrzled
// reorders them to the GRB wire order of the WS2812.
func matrixBytes(buf []byte, pixels [p.MatrixPixels]p.Led) {
	for i, led := range pixels {
		buf[3*i], buf[3*i+1], buf[3*i+2] = led.Bytes()
	}
}

// buttonDriver samples the button pins and queues falling edges.
func (s *RaspberryPiPlatform) buttonDriver() {
	defer s.buttonWg.Done()
	ticker := time.NewTicker(buttonPollDelay)
	defer ticker.Stop()

	last := make(map[c.ButtonID]gpio.Level, len(s.buttonPins))
	for id := range s.buttonPins {
		last[id] = gpio.High
	}

	for {
		select {
		case <-s.buttonStop:
			slog.Info("Ending ButtonDriver go-routine (RPi)")
			return
		case <-ticker.C:
			for id, pin := range s.buttonPins {
				level := pin.Read()
				if isFallingEdge(last[id], level) {
					s.pushEdge(id, s.clock.Now())
				}
				last[id] = level
			}
		}
	}
}

func isFallingEdge(prev, cur gpio.Level) bool {
	return prev == gpio.High && cur == gpio.Low
}

func outputPin(num int) (gpio.PinIO, error) {
	pin := gpioreg.ByName(fmt.Sprintf("GPIO%d", num))
	if pin == nil {
		return nil, fmt.Errorf("failed to find pin %d", num)
	}
	if err := pin.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("failed to set pin %d to output: %w", num, err)
	}
	return pin, nil
}

func newPwmBuzzer(gpioNum, cycleLen int) *pwmBuzzer {
	pin := rpio.Pin(gpioNum)
	pin.Mode(rpio.Pwm)
	b := &pwmBuzzer{pin: pin, cycleLen: uint32(cycleLen)}
	pin.DutyCycle(0, b.cycleLen)
	return b
}

// pwmClock is the PWM clock giving a tone of freqHz.
func pwmClock(freqHz, cycleLen uint32) int {
	return int(freqHz * cycleLen)
}

func (s *pwmBuzzer) SetTone(freqHz uint32) error {
	if freqHz == 0 {
		return s.Stop()
	}
	s.pin.Freq(pwmClock(freqHz, s.cycleLen))
	s.pin.DutyCycle(s.cycleLen/2, s.cycleLen)
	return nil
}

func (s *pwmBuzzer) Stop() error {
	s.pin.DutyCycle(0, s.cycleLen)
	return nil
}
