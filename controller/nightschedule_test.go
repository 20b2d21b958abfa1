package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Berlin, around midsummer: sunrise ~02:45 UTC, sunset ~19:30 UTC
const (
	berlinLat = 52.52
	berlinLon = 13.405
)

func TestNightScheduleIsNight(t *testing.T) {
	s := NewNightSchedule(berlinLat, berlinLon)

	assert.False(t, s.IsNight(time.Date(2024, time.June, 21, 12, 0, 0, 0, time.UTC)))
	assert.True(t, s.IsNight(time.Date(2024, time.June, 21, 23, 0, 0, 0, time.UTC)))
	assert.True(t, s.IsNight(time.Date(2024, time.June, 21, 1, 0, 0, 0, time.UTC)))
}

func TestNightScheduleNextChange(t *testing.T) {
	s := NewNightSchedule(berlinLat, berlinLon)

	noon := time.Date(2024, time.June, 21, 12, 0, 0, 0, time.UTC)
	next := s.NextChange(noon)
	assert.True(t, next.After(noon))
	assert.Equal(t, 21, next.Day())

	late := time.Date(2024, time.June, 21, 23, 0, 0, 0, time.UTC)
	next = s.NextChange(late)
	assert.Equal(t, 22, next.Day(), "before midnight the next change is tomorrow's sunrise")
}

func TestNightScheduleCheckReportsChangesOnly(t *testing.T) {
	s := NewNightSchedule(berlinLat, berlinLon)
	day := time.Date(2024, time.June, 21, 12, 0, 0, 0, time.UTC)

	_, changed := s.Check(day)
	assert.False(t, changed, "starting at day keeps the normal cycle")
	_, changed = s.Check(day.Add(time.Hour))
	assert.False(t, changed)

	cmd, changed := s.Check(day.Add(11 * time.Hour))
	assert.True(t, changed)
	assert.Equal(t, EnterNight, cmd)
	_, changed = s.Check(day.Add(12 * time.Hour))
	assert.False(t, changed)

	cmd, changed = s.Check(day.Add(20 * time.Hour))
	assert.True(t, changed)
	assert.Equal(t, EnterNormal, cmd)
}

func TestNightScheduleFirstCheckAtNight(t *testing.T) {
	s := NewNightSchedule(berlinLat, berlinLon)
	cmd, changed := s.Check(time.Date(2024, time.June, 21, 23, 0, 0, 0, time.UTC))
	assert.True(t, changed)
	assert.Equal(t, EnterNight, cmd)
}
