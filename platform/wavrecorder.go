package platform

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"lautenbacher.net/intellitraffic/clock"
	"lautenbacher.net/intellitraffic/coordinator"
)

const (
	recordSampleRate = 16000
	recordBitDepth   = 16
	recordAmplitude  = 8000
)

// WavRecorder records what the buzzer plays into a mono 16 bit WAV
// stream. The sample positions follow the clock, so the recording has
// the exact cadence the controller commanded. Calls are passed on to
// next if it is set.
type WavRecorder struct {
	mu      sync.Mutex
	enc     *wav.Encoder
	format  *audio.Format
	clock   clock.Clock
	next    coordinator.Buzzer
	start   clock.Timestamp
	written int
	freq    uint32
	phase   float64
	closed  bool
}

func NewWavRecorder(ws io.WriteSeeker, clk clock.Clock, next coordinator.Buzzer) *WavRecorder {
	return &WavRecorder{
		enc:    wav.NewEncoder(ws, recordSampleRate, recordBitDepth, 1, 1),
		format: &audio.Format{NumChannels: 1, SampleRate: recordSampleRate},
		clock:  clk,
		next:   next,
		start:  clk.Now(),
	}
}

func (s *WavRecorder) SetTone(freqHz uint32) error {
	if err := s.switchTo(freqHz); err != nil {
		return err
	}
	if s.next != nil {
		return s.next.SetTone(freqHz)
	}
	return nil
}

func (s *WavRecorder) Stop() error {
	if err := s.switchTo(0); err != nil {
		return err
	}
	if s.next != nil {
		return s.next.Stop()
	}
	return nil
}

// Close writes the samples up to now and finishes the WAV header.
func (s *WavRecorder) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.catchUp(); err != nil {
		return err
	}
	slog.Info("Buzzer recording finished", "samples", s.written)
	return s.enc.Close()
}

func (s *WavRecorder) switchTo(freqHz uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.catchUp(); err != nil {
		return fmt.Errorf("failed to record buzzer: %w", err)
	}
	if freqHz != s.freq {
		s.phase = 0
	}
	s.freq = freqHz
	return nil
}

// catchUp renders the current tone from the last written sample up to
// the clock's now.
func (s *WavRecorder) catchUp() error {
	target := int(uint64(s.clock.Now().Sub(s.start).Milliseconds()) * recordSampleRate / 1000)
	n := target - s.written
	if n <= 0 {
		return nil
	}
	data := make([]int, n)
	if s.freq > 0 {
		step := float64(s.freq) / recordSampleRate
		for i := range data {
			if s.phase < 0.5 {
				data[i] = recordAmplitude
			} else {
				data[i] = -recordAmplitude
			}
			s.phase += step
			if s.phase >= 1 {
				s.phase -= 1
			}
		}
	}
	buf := &audio.IntBuffer{Format: s.format, Data: data, SourceBitDepth: recordBitDepth}
	if err := s.enc.Write(buf); err != nil {
		return err
	}
	s.written = target
	return nil
}
