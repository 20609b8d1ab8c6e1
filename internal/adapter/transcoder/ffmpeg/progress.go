package ffmpeg

import (
	"strconv"
	"strings"
	"time"

	"github.com/mydia/mydia/internal/port"
)

// progressParser accumulates the key=value lines ffmpeg writes with
// -progress pipe:1 and emits one ProgressUpdate per completed block.
type progressParser struct {
	duration time.Duration // source duration, 0 when unknown
	elapsed  time.Duration
	speed    float64
}

func newProgressParser(duration time.Duration) *progressParser {
	return &progressParser{duration: duration}
}

// Feed consumes a single output line. It returns an update and true when the
// line terminates a progress block.
func (p *progressParser) Feed(line string) (port.ProgressUpdate, bool) {
	key, value, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return port.ProgressUpdate{}, false
	}
	value = strings.TrimSpace(value)

	switch key {
	case "out_time_us", "out_time_ms":
		// Both report microseconds; out_time_ms is a long-standing
		// ffmpeg misnomer.
		if us, err := strconv.ParseInt(value, 10, 64); err == nil && us >= 0 {
			p.elapsed = time.Duration(us) * time.Microsecond
		}
	case "out_time":
		if d, ok := parseClock(value); ok {
			p.elapsed = d
		}
	case "speed":
		s := strings.TrimSuffix(value, "x")
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && f > 0 {
			p.speed = f
		}
	case "progress":
		return p.snapshot(), true
	}
	return port.ProgressUpdate{}, false
}

func (p *progressParser) snapshot() port.ProgressUpdate {
	update := port.ProgressUpdate{
		Elapsed:  p.elapsed,
		Speed:    p.speed,
		Fraction: -1,
	}
	if p.duration > 0 {
		fraction := float64(p.elapsed) / float64(p.duration)
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		update.Fraction = fraction
	}
	return update
}

// parseClock parses ffmpeg's HH:MM:SS.micro timestamps.
func parseClock(value string) (time.Duration, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	hours, err1 := strconv.Atoi(parts[0])
	minutes, err2 := strconv.Atoi(parts[1])
	seconds, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil || hours < 0 {
		return 0, false
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return total, true
}
