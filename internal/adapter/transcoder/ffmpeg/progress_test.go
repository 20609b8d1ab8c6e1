package ffmpeg

import (
	"testing"
	"time"
)

func TestProgressParserEmitsOnBlockEnd(t *testing.T) {
	p := newProgressParser(10 * time.Second)

	lines := []string{
		"frame=120",
		"out_time_us=2500000",
		"speed=2.00x",
	}
	for _, line := range lines {
		if _, ok := p.Feed(line); ok {
			t.Fatalf("Feed(%q) emitted before block end", line)
		}
	}

	update, ok := p.Feed("progress=continue")
	if !ok {
		t.Fatal("expected update at progress=continue")
	}
	if update.Elapsed != 2500*time.Millisecond {
		t.Errorf("Elapsed = %v, want 2.5s", update.Elapsed)
	}
	if update.Speed != 2.0 {
		t.Errorf("Speed = %v, want 2.0", update.Speed)
	}
	if update.Fraction != 0.25 {
		t.Errorf("Fraction = %v, want 0.25", update.Fraction)
	}
}

func TestProgressParserUnknownDuration(t *testing.T) {
	p := newProgressParser(0)
	p.Feed("out_time_us=5000000")

	update, ok := p.Feed("progress=continue")
	if !ok {
		t.Fatal("expected update")
	}
	if update.Fraction != -1 {
		t.Errorf("Fraction = %v, want -1 for unknown duration", update.Fraction)
	}
	if update.Elapsed != 5*time.Second {
		t.Errorf("Elapsed = %v, want 5s", update.Elapsed)
	}
}

func TestProgressParserOutTimeClock(t *testing.T) {
	p := newProgressParser(2 * time.Minute)
	p.Feed("out_time=00:01:30.000000")

	update, ok := p.Feed("progress=end")
	if !ok {
		t.Fatal("expected update")
	}
	if update.Elapsed != 90*time.Second {
		t.Errorf("Elapsed = %v, want 90s", update.Elapsed)
	}
	if update.Fraction != 0.75 {
		t.Errorf("Fraction = %v, want 0.75", update.Fraction)
	}
}

func TestProgressParserClampsFraction(t *testing.T) {
	p := newProgressParser(time.Second)
	p.Feed("out_time_us=2000000")

	update, _ := p.Feed("progress=end")
	if update.Fraction != 1.0 {
		t.Errorf("Fraction = %v, want clamped to 1.0", update.Fraction)
	}
}

func TestProgressParserIgnoresGarbage(t *testing.T) {
	p := newProgressParser(10 * time.Second)

	for _, line := range []string{
		"",
		"not a key value line",
		"out_time_us=not-a-number",
		"speed=N/A",
		"out_time=garbage",
	} {
		if _, ok := p.Feed(line); ok {
			t.Errorf("Feed(%q) emitted unexpectedly", line)
		}
	}

	update, ok := p.Feed("progress=continue")
	if !ok {
		t.Fatal("expected update")
	}
	if update.Elapsed != 0 {
		t.Errorf("Elapsed = %v, want 0 after garbage input", update.Elapsed)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		value string
		want  time.Duration
		ok    bool
	}{
		{"00:00:05.000000", 5 * time.Second, true},
		{"01:02:03.500000", time.Hour + 2*time.Minute + 3*time.Second + 500*time.Millisecond, true},
		{"00:00", 0, false},
		{"aa:bb:cc", 0, false},
	}

	for _, tt := range tests {
		got, ok := parseClock(tt.value)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseClock(%q) = (%v, %v), want (%v, %v)", tt.value, got, ok, tt.want, tt.ok)
		}
	}
}
