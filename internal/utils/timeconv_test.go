package utils

import "testing"

func TestSecondsToClock(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{0, "00:00"},
		{8 * 3600, "08:00"},
		{18*3600 + 30*60, "18:30"},
		{86399, "23:59"},
	}
	for _, c := range cases {
		got, err := SecondsToClock(c.seconds)
		if err != nil {
			t.Errorf("SecondsToClock(%d) failed: %v", c.seconds, err)
			continue
		}
		if got != c.want {
			t.Errorf("SecondsToClock(%d) = %q, want %q", c.seconds, got, c.want)
		}
	}

	for _, bad := range []int{-1, 86400, 100000} {
		if _, err := SecondsToClock(bad); err == nil {
			t.Errorf("SecondsToClock(%d) should fail", bad)
		}
	}
}

func TestClockToSeconds(t *testing.T) {
	cases := []struct {
		clock string
		want  int
	}{
		{"00:00", 0},
		{"08:00", 8 * 3600},
		{"18:30", 18*3600 + 30*60},
		{"23:59", 86340},
	}
	for _, c := range cases {
		got, err := ClockToSeconds(c.clock)
		if err != nil {
			t.Errorf("ClockToSeconds(%q) failed: %v", c.clock, err)
			continue
		}
		if got != c.want {
			t.Errorf("ClockToSeconds(%q) = %d, want %d", c.clock, got, c.want)
		}
	}

	for _, bad := range []string{"", "8", "24:00", "12:60", "ab:cd", "12:30:00"} {
		if _, err := ClockToSeconds(bad); err == nil {
			t.Errorf("ClockToSeconds(%q) should fail", bad)
		}
	}
}

func TestClockRoundTrip(t *testing.T) {
	for _, seconds := range []int{0, 60, 8 * 3600, 86340} {
		clock, err := SecondsToClock(seconds)
		if err != nil {
			t.Fatal(err)
		}
		back, err := ClockToSeconds(clock)
		if err != nil {
			t.Fatal(err)
		}
		if back != seconds {
			t.Errorf("round trip %d -> %q -> %d", seconds, clock, back)
		}
	}
}
