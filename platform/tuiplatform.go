package platform

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"lautenbacher.net/intellitraffic/clock"
	"lautenbacher.net/intellitraffic/config"
	"lautenbacher.net/intellitraffic/coordinator"
	c "lautenbacher.net/intellitraffic/controller"
	d "lautenbacher.net/intellitraffic/display"
	"lautenbacher.net/intellitraffic/logging"
	p "lautenbacher.net/intellitraffic/producer"
)

type TUIPlatform struct {
	*AbstractPlatform
	tviewapp     *tview.Application
	intro        *tview.TextView
	signalView   *tview.TextView
	oledView     *tview.TextView
	matrixView   *tview.TextView
	logView      *tview.TextView
	ossignalChan chan os.Signal
	logFlushOnce sync.Once
	buzzer       *tuiBuzzer

	stateMu sync.Mutex
	lamps   c.Lamps
	toneHz  uint32
}

// tuiBuzzer shows the buzzer state in the signal pane and plays it on
// the audio device if one could be opened.
type tuiBuzzer struct {
	platform *TUIPlatform
	tone     *toneOutput
}

func NewTUIPlatform(conf *config.Config, clk clock.Clock, ossignalchan chan os.Signal) *TUIPlatform {
	inst := &TUIPlatform{
		AbstractPlatform: newAbstractPlatform(conf, clk),
		ossignalChan:     ossignalchan,
	}
	inst.flushFunc = inst.drawOled
	inst.commitFunc = inst.drawMatrix
	inst.buzzer = &tuiBuzzer{platform: inst}
	return inst
}

func (s *TUIPlatform) Start() error {
	if err := s.loadCanvas(); err != nil {
		return err
	}

	tone, err := newToneOutput(s.config.Audio.Volume)
	if err != nil {
		slog.Warn("No audio output, buzzer is silent", "error", err)
	} else {
		s.buzzer.tone = tone
	}

	s.initSimulationTUI(s.ossignalChan)
	return nil
}

func (s *TUIPlatform) Stop() {
	s.setInShutdown()
	if s.buzzer.tone != nil {
		s.buzzer.tone.Close()
	}
	if s.tviewapp != nil {
		s.tviewapp.Stop()
	}
}

func (s *TUIPlatform) Drivers() coordinator.Drivers {
	return coordinator.Drivers{
		Display: s.AbstractPlatform,
		Buzzer:  s.buzzer,
		Matrix:  s.AbstractPlatform,
		Buttons: s.AbstractPlatform,
		Lamps:   s,
	}
}

func (s *TUIPlatform) SetLamps(l c.Lamps) error {
	s.stateMu.Lock()
	s.lamps = l
	s.stateMu.Unlock()
	s.queueSignalDraw()
	return nil
}

func (s *tuiBuzzer) SetTone(freqHz uint32) error {
	s.platform.setTone(freqHz)
	if s.tone != nil {
		return s.tone.SetTone(freqHz)
	}
	return nil
}

func (s *tuiBuzzer) Stop() error {
	s.platform.setTone(0)
	if s.tone != nil {
		return s.tone.Stop()
	}
	return nil
}

func (s *TUIPlatform) setTone(freqHz uint32) {
	s.stateMu.Lock()
	s.toneHz = freqHz
	s.stateMu.Unlock()
	s.queueSignalDraw()
}

func (s *TUIPlatform) queueSignalDraw() {
	if s.inShutdown() {
		return
	}
	s.stateMu.Lock()
	text := signalText(s.lamps, s.toneHz)
	s.stateMu.Unlock()
	s.tviewapp.QueueUpdateDraw(func() { s.signalView.SetText(text) })
}

func (s *TUIPlatform) drawOled(canvas *d.Canvas) error {
	text := canvas.Braille()
	s.tviewapp.QueueUpdateDraw(func() { s.oledView.SetText(text) })
	return nil
}

func (s *TUIPlatform) drawMatrix(pixels [p.MatrixPixels]p.Led) error {
	text := matrixText(pixels)
	s.tviewapp.QueueUpdateDraw(func() { s.matrixView.SetText(text) })
	return nil
}

// getIntroText generates the text for the top info pane.
func (s *TUIPlatform) getIntroText() string {
	line1 := "Hit [blue]a[-] to toggle night mode, [blue]b[-] to confirm the startup screen"
	line2 := "Hit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload, [#ff0000]Up/Down[-] to scroll logs"
	return fmt.Sprintf("%s\n%s", line1, line2)
}

func (s *TUIPlatform) initSimulationTUI(ossignal chan os.Signal) {
	s.tviewapp = tview.NewApplication()

	// --- Intro Pane ---
	s.intro = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	s.intro.SetText(s.getIntroText())
	s.intro.SetBorder(true).SetTitle(" IntelliTraffic Simulation ").SetTitleColor(tcell.ColorLightBlue)
	s.intro.SetBackgroundColor(tcell.NewRGBColor(20, 20, 20))

	// --- Signal Pane ---
	s.signalView = tview.NewTextView().SetDynamicColors(true)
	s.signalView.SetText(signalText(c.Lamps{}, 0))
	s.signalView.SetBorder(true).SetTitle(" Signal ").SetTitleColor(tcell.ColorLightBlue)
	s.signalView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- OLED Pane ---
	s.oledView = tview.NewTextView()
	s.oledView.SetBorder(true).SetTitle(" Display ").SetTitleColor(tcell.ColorLightBlue)
	s.oledView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- Matrix Pane ---
	s.matrixView = tview.NewTextView().SetDynamicColors(true)
	s.matrixView.SetText(matrixText([p.MatrixPixels]p.Led{}))
	s.matrixView.SetBorder(true).SetTitle(" Matrix ").SetTitleColor(tcell.ColorLightBlue)
	s.matrixView.SetBackgroundColor(tcell.NewRGBColor(30, 30, 30))

	// --- Log Pane ---
	s.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetChangedFunc(func() {
			s.logView.ScrollToEnd()
			s.tviewapp.Draw()
		})
	s.logView.SetBorder(true).SetTitle(" Logs ").SetTitleColor(tcell.ColorLightBlue)
	s.logView.SetBackgroundColor(tcell.NewRGBColor(40, 40, 40))

	// --- Layout ---
	oledHeight := d.Height/4 + 2 // 4 pixel rows per braille line, 2 for border
	devices := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(s.signalView, 24, 0, false).
		AddItem(s.oledView, d.Width/2+2, 0, false).
		AddItem(s.matrixView, 2*p.MatrixSide+4, 0, false)

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(s.intro, 4, 0, false).
		AddItem(devices, oledHeight, 0, false).
		AddItem(s.logView, 0, 1, true)

	// --- Flush logs after first draw ---
	s.tviewapp.SetAfterDrawFunc(func(screen tcell.Screen) {
		s.logFlushOnce.Do(func() {
			logWriter := tview.ANSIWriter(s.logView)
			logging.SetOutput(logWriter)
			close(s.readyChan)
		})
	})

	// --- Input Handling ---
	s.tviewapp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC:
			s.tviewapp.Stop()
			ossignal <- os.Interrupt
			return nil
		case tcell.KeyRune:
			switch event.Rune() {
			case 'a', 'A':
				slog.Debug("Button pressed", "button", c.ButtonA)
				s.pushEdge(c.ButtonA, s.clock.Now())
				return nil
			case 'b', 'B':
				slog.Debug("Button pressed", "button", c.ButtonB)
				s.pushEdge(c.ButtonB, s.clock.Now())
				return nil
			case 'q', 'Q':
				ossignal <- os.Interrupt
				return nil
			case 'r', 'R':
				ossignal <- syscall.SIGHUP
				return nil
			}
		case tcell.KeyUp:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row-1, col)
			return nil
		case tcell.KeyDown:
			row, col := s.logView.GetScrollOffset()
			s.logView.ScrollTo(row+1, col)
			return nil
		}
		return event
	})

	// --- Start TUI ---
	go func() {
		if err := s.tviewapp.SetRoot(layout, true).Run(); err != nil {
			slog.Error("Error running TUI", "error", err)
			s.ossignalChan <- os.Interrupt
		}
	}()
}

// signalText renders the three lamps from top to bottom and the buzzer.
func signalText(lamps c.Lamps, toneHz uint32) string {
	var buf strings.Builder
	lamp := func(on bool, color, name string) {
		if on {
			fmt.Fprintf(&buf, "\n  [%s]●[-]  %s", color, name)
		} else {
			fmt.Fprintf(&buf, "\n  [#404040]●[-]  [#404040]%s[-]", name)
		}
	}
	lamp(lamps.Red, "#ff0000", "RED")
	lamp(lamps.Yellow, "#ffff00", "YELLOW")
	lamp(lamps.Green, "#00ff00", "GREEN")
	buf.WriteString("\n\n  Buzzer: ")
	if toneHz > 0 {
		fmt.Fprintf(&buf, "[#ffff00]♪ %d Hz[-]", toneHz)
	} else {
		buf.WriteString("[#404040]off[-]")
	}
	return buf.String()
}

// matrixText renders the 5x5 matrix with two characters per pixel.
func matrixText(pixels [p.MatrixPixels]p.Led) string {
	var buf strings.Builder
	for y := 0; y < p.MatrixSide; y++ {
		buf.WriteString("\n ")
		for x := 0; x < p.MatrixSide; x++ {
			led := pixels[y*p.MatrixSide+x]
			if led.IsEmpty() {
				buf.WriteString("[#303030]··[-]")
			} else {
				buf.WriteString(scaledColor(led) + "██[-]")
			}
		}
	}
	return buf.String()
}

// scaledColor brightens a pixel so that its strongest component is at
// full intensity, the dim matrix colors would be unreadable otherwise.
func scaledColor(led p.Led) string {
	maxColor := max(led.Red, led.Green, led.Blue)
	if maxColor <= 0 {
		return "[#000000]"
	}
	factor := 255 / maxColor
	r, g, b := p.Led{Red: led.Red * factor, Green: led.Green * factor, Blue: led.Blue * factor}.Bytes()
	return fmt.Sprintf("[#%02x%02x%02x]", r, g, b)
}
