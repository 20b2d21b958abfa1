//go:build cgo

package platform

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"
)

const toneSampleRate = 44100

// toneOutput plays a square wave on the default audio device.
type toneOutput struct {
	mu     sync.Mutex
	freq   float64
	phase  float64
	volume float32
	stream *portaudio.Stream
}

func newToneOutput(volume float64) (*toneOutput, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize portaudio: %w", err)
	}
	s := &toneOutput{volume: float32(volume)}
	stream, err := portaudio.OpenDefaultStream(0, 1, toneSampleRate, 0, s.fill)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	s.stream = stream
	slog.Info("Tone output started", "sampleRate", toneSampleRate, "volume", volume)
	return s, nil
}

// fill is called by portaudio from its own thread.
func (s *toneOutput) fill(out []float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.freq == 0 {
		clear(out)
		return
	}
	step := s.freq / toneSampleRate
	for i := range out {
		if s.phase < 0.5 {
			out[i] = s.volume
		} else {
			out[i] = -s.volume
		}
		s.phase += step
		if s.phase >= 1 {
			s.phase -= 1
		}
	}
}

func (s *toneOutput) SetTone(freqHz uint32) error {
	s.mu.Lock()
	s.freq = float64(freqHz)
	s.mu.Unlock()
	return nil
}

func (s *toneOutput) Stop() error {
	s.mu.Lock()
	s.freq = 0
	s.phase = 0
	s.mu.Unlock()
	return nil
}

func (s *toneOutput) Close() {
	if err := s.stream.Stop(); err != nil {
		slog.Error("Failed to stop audio stream", "error", err)
	}
	s.stream.Close()
	if err := portaudio.Terminate(); err != nil {
		slog.Error("Failed to terminate portaudio", "error", err)
	}
}
