package clock

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := &RealClock{}

	before := time.Now()
	actual := clock.Now()
	after := time.Now()

	if actual.Before(before) || actual.After(after) {
		t.Errorf("RealClock.Now() returned time outside expected range: got %v, expected between %v and %v", actual, before, after)
	}
}

func TestFakeClock(t *testing.T) {
	fixedTime := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := NewFakeClock(fixedTime)

	t.Run("returns fixed time", func(t *testing.T) {
		if actual := clock.Now(); !actual.Equal(fixedTime) {
			t.Errorf("FakeClock.Now() = %v, want %v", actual, fixedTime)
		}
	})

	t.Run("advance moves time forward", func(t *testing.T) {
		clock.Set(fixedTime)
		clock.Advance(2 * time.Hour)

		expected := fixedTime.Add(2 * time.Hour)
		if actual := clock.Now(); !actual.Equal(expected) {
			t.Errorf("After Advance, Now() = %v, want %v", actual, expected)
		}
	})

	t.Run("since measures against fixed time", func(t *testing.T) {
		clock.Set(fixedTime.Add(90 * time.Second))

		if d := clock.Since(fixedTime); d != 90*time.Second {
			t.Errorf("Since = %v, want %v", d, 90*time.Second)
		}
	})
}
