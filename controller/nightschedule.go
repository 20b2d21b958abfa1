package controller

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// NightSchedule switches the crossing to night mode between sunset and
// sunrise at a given location. It only reports changes, so a manual
// toggle stays in effect until the next sunrise or sunset.
type NightSchedule struct {
	latitude  float64
	longitude float64
	checked   bool
	wasNight  bool
}

func NewNightSchedule(latitude, longitude float64) *NightSchedule {
	return &NightSchedule{latitude: latitude, longitude: longitude}
}

// IsNight reports whether t lies between sunset and sunrise. Days
// without sunrise or sunset (polar regions) count as day.
func (s *NightSchedule) IsNight(t time.Time) bool {
	night, _ := s.evaluate(t)
	return night
}

// NextChange returns the next sunrise or sunset after t.
func (s *NightSchedule) NextChange(t time.Time) time.Time {
	_, next := s.evaluate(t)
	return next
}

func (s *NightSchedule) evaluate(now time.Time) (bool, time.Time) {
	next := now.Add(24 * time.Hour)
	rise, set := sunrise.SunriseSunset(s.latitude, s.longitude, now.Year(), now.Month(), now.Day())
	if rise.IsZero() || set.IsZero() {
		return false, next
	}
	switch {
	case now.After(rise) && now.Before(set):
		// during the day
		return false, set
	case now.Before(rise):
		// after midnight, before sunrise
		return true, rise
	default:
		riseNext, _ := sunrise.SunriseSunset(s.latitude, s.longitude, next.Year(), next.Month(), next.Day())
		if riseNext.IsZero() {
			return true, next
		}
		return true, riseNext
	}
}

// Check returns EnterNight or EnterNormal when day and night changed
// since the last call. The very first call only reports night.
func (s *NightSchedule) Check(t time.Time) (Command, bool) {
	night := s.IsNight(t)
	first := !s.checked
	changed := night != s.wasNight
	s.checked = true
	s.wasNight = night

	switch {
	case first && night:
		return EnterNight, true
	case first:
		return EnterNormal, false
	case !changed:
		return EnterNormal, false
	case night:
		return EnterNight, true
	default:
		return EnterNormal, true
	}
}
