package sources

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

// maxTimecodeSeconds is the largest offset a time.Duration can hold.
const maxTimecodeSeconds = float64(math.MaxInt64 / int64(time.Second))

var (
	secondsRe = regexp.MustCompile(`^\d+(\.\d+)?$`)
	clockRe   = regexp.MustCompile(`^(\d{1,2}):(\d{2}):(\d{2})(\.\d+)?$`)
	minutesRe = regexp.MustCompile(`^(\d{1,3}):(\d{2})(\.\d+)?$`)
)

// ParseTimecode accepts plain seconds ("95", "95.5"), HH:MM:SS or MM:SS.
// Empty input is ErrInvalidTime; callers treat optional fields before calling.
func ParseTimecode(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	switch {
	case secondsRe.MatchString(s):
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f >= maxTimecodeSeconds {
			return 0, fmt.Errorf("%w: %q", engine.ErrInvalidTime, s)
		}
		return time.Duration(f * float64(time.Second)), nil
	case clockRe.MatchString(s):
		m := clockRe.FindStringSubmatch(s)
		return clock(m[1], m[2], m[3], m[4])
	case minutesRe.MatchString(s):
		m := minutesRe.FindStringSubmatch(s)
		return clock("0", m[1], m[2], m[3])
	}
	return 0, fmt.Errorf("%w: %q (use HH:MM:SS or seconds)", engine.ErrInvalidTime, s)
}

func clock(h, m, sec, frac string) (time.Duration, error) {
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	ss, _ := strconv.Atoi(sec)
	if mm > 59 || ss > 59 {
		return 0, fmt.Errorf("%w: minutes and seconds must be below 60", engine.ErrInvalidTime)
	}
	d := time.Duration(hh)*time.Hour + time.Duration(mm)*time.Minute + time.Duration(ss)*time.Second
	if frac != "" {
		f, _ := strconv.ParseFloat("0"+frac, 64)
		d += time.Duration(f * float64(time.Second))
	}
	return d, nil
}

// FormatTimecode renders d as HH:MM:SS.
func FormatTimecode(d time.Duration) string {
	total := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total/60)%60, total%60)
}
