//go:build !cgo

package platform

import "errors"

type toneOutput struct{}

func newToneOutput(volume float64) (*toneOutput, error) {
	return nil, errors.New("audio output needs cgo")
}

func (s *toneOutput) SetTone(freqHz uint32) error { return nil }
func (s *toneOutput) Stop() error                 { return nil }
func (s *toneOutput) Close()                      {}
