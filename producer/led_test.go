package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLed_IsEmpty(t *testing.T) {
	led := Led{Red: 0, Green: 0, Blue: 0}
	assert.True(t, led.IsEmpty(), "IsEmpty should be true for a zero Led")

	led = Led{Red: 1, Green: 0, Blue: 0}
	assert.False(t, led.IsEmpty(), "IsEmpty should be false for a non-zero Led")
}

func TestNewLed(t *testing.T) {
	assert.Equal(t, Led{Red: 50, Green: 50, Blue: 0}, NewLed([]float64{50, 50, 0}))
	assert.Equal(t, Led{Red: 7}, NewLed([]float64{7}))
	assert.True(t, NewLed(nil).IsEmpty())
}

func TestLed_Bytes(t *testing.T) {
	r, g, b := Led{Red: 300, Green: 49.6, Blue: -2}.Bytes()
	assert.Equal(t, byte(255), r)
	assert.Equal(t, byte(50), g)
	assert.Equal(t, byte(0), b)
}
