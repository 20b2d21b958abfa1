package platform

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"lautenbacher.net/intellitraffic/coordinator"
)

const (
	viewerTitle = " IntelliTraffic Phase Viewer "
	colWidth    = 22 // Width for each phase's data column
)

// phaseLabels are the columns of the viewer, in signal order.
var phaseLabels = []string{"normal/green", "normal/yellow", "normal/red", "night"}

// PhaseViewer is a TUI for the real hardware showing how long each
// signal phase actually lasted, measured from the transition history.
type PhaseViewer struct {
	tuiApp   *tview.Application
	view     *tview.TextView
	mu       sync.Mutex
	ossignal chan os.Signal
}

type phaseStats struct {
	count  int
	min    int
	max    int
	mean   float64
	median float64
	stdDev float64
}

func NewPhaseViewer(ossignal chan os.Signal) *PhaseViewer {
	return &PhaseViewer{
		tuiApp:   tview.NewApplication(),
		ossignal: ossignal,
	}
}

// Start initializes and runs the TUI. It should be called as a goroutine.
func (s *PhaseViewer) Start(stopSignal chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	s.setupUI()

	go func() {
		<-stopSignal
		slog.Info("Stopping PhaseViewer TUI...")
		s.tuiApp.Stop()
	}()

	if err := s.tuiApp.Run(); err != nil {
		slog.Error("Error running PhaseViewer TUI", "error", err)
		s.ossignal <- os.Interrupt
		return
	}
	slog.Info("PhaseViewer TUI has stopped.")
}

// Update recomputes the statistics from history and schedules a
// redraw. This method is safe for concurrent use.
func (s *PhaseViewer) Update(history []coordinator.Transition) {
	s.mu.Lock()
	line1, line2, line3 := prepareDisplayStrings(phaseDurations(history))
	s.mu.Unlock()

	s.tuiApp.QueueUpdateDraw(func() {
		s.view.SetText(fmt.Sprintf("%s\n%s\n%s", line1, line2, line3))
	})
}

func (s *PhaseViewer) setupUI() {
	s.view = tview.NewTextView()
	s.view.SetDynamicColors(true)
	s.view.SetTextAlign(tview.AlignLeft)
	s.view.SetBackgroundColor(tcell.ColorDarkSlateGray)
	s.view.SetBorder(true).SetTitle(viewerTitle).SetTitleColor(tcell.ColorLightBlue)

	intro := tview.NewTextView()
	intro.SetBorder(true).SetTitle(" IntelliTraffic ").SetTitleColor(tcell.ColorLightBlue)
	intro.SetText("Measured phase durations in ms.\nHit [#ff0000]q[-] to exit, [#ff0000]r[-] to reload config file and restart")
	intro.SetTextAlign(tview.AlignCenter)
	intro.SetDynamicColors(true)
	intro.SetBackgroundColor(tcell.ColorDarkSlateGray)

	layout := tview.NewFlex().SetDirection(tview.FlexRow)
	layout.AddItem(intro, 4, 1, false)
	// 3 lines of text + 2 for the border.
	layout.AddItem(s.view, 5, 1, true)

	s.tuiApp.SetRoot(layout, true).SetFocus(s.view)
	s.tuiApp.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Rune() {
		case 'q', 'Q':
			s.tuiApp.Stop()
			s.ossignal <- os.Interrupt
		case 'r', 'R':
			s.tuiApp.Stop()
			s.ossignal <- syscall.SIGHUP
		}
		return event
	})
}

// phaseDurations returns, per phase label, the lengths in ms of all
// completed phases in history. The phase still running is left out.
func phaseDurations(history []coordinator.Transition) map[string][]int {
	ret := make(map[string][]int)
	for i := 0; i+1 < len(history); i++ {
		entered := history[i]
		left := history[i+1]
		ret[entered.To] = append(ret[entered.To], int(left.At.Sub(entered.At).Milliseconds()))
	}
	return ret
}

func prepareDisplayStrings(durations map[string][]int) (string, string, string) {
	var buft, bufm, bufb strings.Builder

	buft.WriteString(fmt.Sprintf("[yellow]%-*s[white]", 16, " Phase"))
	bufm.WriteString(fmt.Sprintf("[yellow]%-*s[white]", 16, " [min|mean|max]"))
	bufb.WriteString(fmt.Sprintf("[yellow]%-*s[white]", 16, " n / std dev"))

	for _, label := range phaseLabels {
		stats := calculateStats(durations[label])
		buft.WriteString(fmt.Sprintf("[blue]%-*s[-]", colWidth, label))
		bufm.WriteString(fmt.Sprintf("%-*s", colWidth, fmt.Sprintf("[%d|%.0f|%d[]", stats.min, math.Round(stats.mean), stats.max)))
		bufb.WriteString(fmt.Sprintf("%-*s", colWidth, fmt.Sprintf("%d / %.1f", stats.count, stats.stdDev)))
	}
	return buft.String(), bufm.String(), bufb.String()
}

func calculateStats(data []int) phaseStats {
	if len(data) == 0 {
		return phaseStats{}
	}
	sorted := make([]int, len(data))
	copy(sorted, data)
	sort.Ints(sorted)

	var sum int
	for _, v := range sorted {
		sum += v
	}
	mean := float64(sum) / float64(len(sorted))

	var median float64
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		median = float64(sorted[mid-1]+sorted[mid]) / 2.0
	} else {
		median = float64(sorted[mid])
	}

	var sumOfSquares float64
	for _, v := range sorted {
		sumOfSquares += (float64(v) - mean) * (float64(v) - mean)
	}

	return phaseStats{
		count:  len(sorted),
		min:    sorted[0],
		max:    sorted[len(sorted)-1],
		mean:   mean,
		median: median,
		stdDev: math.Sqrt(sumOfSquares / float64(len(sorted))),
	}
}
