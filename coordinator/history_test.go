package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lautenbacher.net/intellitraffic/clock"
)

func TestHistoryIsBounded(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Add(Transition{At: clock.Timestamp(i), Cause: "timer"})
	}

	items := h.Items()
	assert.Len(t, items, 3)
	assert.Equal(t, clock.Timestamp(2), items[0].At)
	assert.Equal(t, clock.Timestamp(4), items[2].At)
}

func TestHistoryItemsIsACopy(t *testing.T) {
	h := NewHistory(2)
	h.Add(Transition{To: "night"})

	items := h.Items()
	items[0].To = "changed"
	assert.Equal(t, "night", h.Items()[0].To)
}

func TestHistoryMinimumSize(t *testing.T) {
	h := NewHistory(0)
	h.Add(Transition{To: "a"})
	h.Add(Transition{To: "b"})
	assert.Equal(t, []Transition{{To: "b"}}, h.Items())
}
