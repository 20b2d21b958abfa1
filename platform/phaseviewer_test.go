package platform

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"lautenbacher.net/intellitraffic/coordinator"
)

func TestCalculateStats(t *testing.T) {
	data := []int{10, 20, 30, 40, 50}

	stats := calculateStats(data)

	assert.Equal(t, 5, stats.count)
	assert.Equal(t, 10, stats.min)
	assert.Equal(t, 50, stats.max)
	assert.Equal(t, 30.0, stats.mean)
	assert.Equal(t, 30.0, stats.median)
	assert.InDelta(t, math.Sqrt(200), stats.stdDev, 1e-9)
}

func TestCalculateStats_Empty(t *testing.T) {
	assert.Equal(t, phaseStats{}, calculateStats(nil))
}

func TestCalculateStats_EvenLengthKeepsInput(t *testing.T) {
	data := []int{40, 10, 30, 20}
	stats := calculateStats(data)
	assert.Equal(t, 25.0, stats.median)
	assert.Equal(t, []int{40, 10, 30, 20}, data)
}

func TestPhaseDurations(t *testing.T) {
	history := []coordinator.Transition{
		{At: 0, To: "normal/green"},
		{At: 5010, To: "normal/yellow"},
		{At: 7010, To: "normal/red"},
		{At: 12020, To: "normal/green"},
		{At: 13000, To: "night"},
	}
	durations := phaseDurations(history)

	assert.Equal(t, []int{5010, 980}, durations["normal/green"])
	assert.Equal(t, []int{2000}, durations["normal/yellow"])
	assert.Equal(t, []int{5010}, durations["normal/red"])
	assert.NotContains(t, durations, "night")
}

func TestPrepareDisplayStrings(t *testing.T) {
	l1, l2, l3 := prepareDisplayStrings(map[string][]int{"normal/yellow": {2000, 2010}})
	assert.Contains(t, l1, "normal/yellow")
	assert.Contains(t, l2, "[2000|2005|2010[]")
	assert.Contains(t, l3, "2 / 5.0")
}
