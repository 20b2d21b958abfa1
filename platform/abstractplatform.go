package platform

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gammazero/deque"

	"lautenbacher.net/intellitraffic/clock"
	"lautenbacher.net/intellitraffic/config"
	c "lautenbacher.net/intellitraffic/controller"
	d "lautenbacher.net/intellitraffic/display"
	p "lautenbacher.net/intellitraffic/producer"
)

// maxQueuedEdges bounds the edges kept per button between two reads.
const maxQueuedEdges = 16

// AbstractPlatform implements the parts of the drivers both platforms
// share: the frame buffer behind the display, the pixel buffer behind
// the matrix and the edge queues behind the buttons. The concrete
// platforms only provide the functions that push a finished frame or
// pixel set to the device.
type AbstractPlatform struct {
	config *config.Config
	clock  clock.Clock

	canvas    *d.Canvas
	flushFunc func(*d.Canvas) error

	pixels     [p.MatrixPixels]p.Led
	commitFunc func([p.MatrixPixels]p.Led) error

	edgesMu sync.Mutex
	edges   map[c.ButtonID]*deque.Deque[clock.Timestamp]

	readyChan      chan bool
	shutdownMutex  sync.RWMutex
	isShuttingDown bool
}

func newAbstractPlatform(conf *config.Config, clk clock.Clock) *AbstractPlatform {
	inst := &AbstractPlatform{
		config:    conf,
		clock:     clk,
		edges:     make(map[c.ButtonID]*deque.Deque[clock.Timestamp], len(c.Buttons)),
		readyChan: make(chan bool),
	}
	for _, id := range c.Buttons {
		inst.edges[id] = new(deque.Deque[clock.Timestamp])
	}
	return inst
}

func (s *AbstractPlatform) Ready() <-chan bool {
	return s.readyChan
}

// loadCanvas reads the bitmaps from the configured directory. A missing
// directory gives placeholder bitmaps.
func (s *AbstractPlatform) loadCanvas() error {
	bitmaps, err := d.LoadBitmaps(s.config.Hardware.Display.BitmapDir)
	if err != nil {
		return fmt.Errorf("failed to load bitmaps: %w", err)
	}
	s.canvas = d.NewCanvas(bitmaps)
	return nil
}

func (s *AbstractPlatform) setInShutdown() {
	s.shutdownMutex.Lock()
	s.isShuttingDown = true
	s.shutdownMutex.Unlock()
}

func (s *AbstractPlatform) inShutdown() bool {
	s.shutdownMutex.RLock()
	defer s.shutdownMutex.RUnlock()
	return s.isShuttingDown
}

func (s *AbstractPlatform) Clear() {
	s.canvas.Clear()
}

func (s *AbstractPlatform) Blit(id d.BitmapID) {
	s.canvas.Blit(id)
}

func (s *AbstractPlatform) DrawText(str string, x, y int) {
	s.canvas.DrawText(str, x, y)
}

func (s *AbstractPlatform) Flush() error {
	if s.inShutdown() {
		return nil
	}
	return s.flushFunc(s.canvas)
}

func (s *AbstractPlatform) SetPixel(i int, led p.Led) {
	if i < 0 || i >= p.MatrixPixels {
		return
	}
	s.pixels[i] = led
}

func (s *AbstractPlatform) Commit() error {
	if s.inShutdown() {
		return nil
	}
	return s.commitFunc(s.pixels)
}

// pushEdge queues a falling edge of button id seen at ts. When the
// reader falls behind, the oldest edges are dropped.
func (s *AbstractPlatform) pushEdge(id c.ButtonID, ts clock.Timestamp) {
	s.edgesMu.Lock()
	defer s.edgesMu.Unlock()
	q, ok := s.edges[id]
	if !ok {
		slog.Warn("Edge for unknown button", "button", id)
		return
	}
	if q.Len() >= maxQueuedEdges {
		q.PopFront()
	}
	q.PushBack(ts)
}

func (s *AbstractPlatform) ReadEdge(id c.ButtonID) (clock.Timestamp, bool) {
	s.edgesMu.Lock()
	defer s.edgesMu.Unlock()
	q, ok := s.edges[id]
	if !ok || q.Len() == 0 {
		return 0, false
	}
	return q.PopFront(), true
}
