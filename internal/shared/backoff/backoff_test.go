package backoff

import (
	"testing"
	"time"
)

func TestConstantDelay(t *testing.T) {
	strategy := NewConstant(30 * time.Second)
	for _, attempt := range []int{1, 2, 10} {
		if got := strategy.Delay(attempt); got != 30*time.Second {
			t.Fatalf("attempt %d: expected 30s, got %s", attempt, got)
		}
	}
}

func TestExponentialDoublesAndCaps(t *testing.T) {
	strategy := NewExponential(30*time.Second, 15*time.Minute)

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 30 * time.Second},
		{2, time.Minute},
		{3, 2 * time.Minute},
		{5, 8 * time.Minute},
		{6, 15 * time.Minute},
		{50, 15 * time.Minute},
	}
	for _, c := range cases {
		if got := strategy.Delay(c.attempt); got != c.want {
			t.Fatalf("attempt %d: expected %s, got %s", c.attempt, c.want, got)
		}
	}
}

func TestJitterStaysWithinBounds(t *testing.T) {
	strategy := NewExponentialWithJitter(30*time.Second, 15*time.Minute)
	base := NewExponential(30*time.Second, 15*time.Minute)

	for attempt := 1; attempt <= 6; attempt++ {
		upper := base.Delay(attempt)
		lower := upper / 2
		for i := 0; i < 100; i++ {
			got := strategy.Delay(attempt)
			if got < lower || got > upper {
				t.Fatalf("attempt %d: delay %s outside [%s, %s]", attempt, got, lower, upper)
			}
		}
	}
}
