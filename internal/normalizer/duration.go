package normalizer

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)(?:\.\d+)?S)?)?$`)

// ParseISODuration parses the day/hour/minute subset of ISO-8601 durations
// the provider uses, e.g. PT2H35M or P1DT3H. Missing components count as zero.
func ParseISODuration(s string) (time.Duration, bool) {
	m := isoDurationPattern.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, false
	}

	part := func(i int) time.Duration {
		if m[i] == "" {
			return 0
		}
		n, _ := strconv.Atoi(m[i])
		return time.Duration(n)
	}

	return part(1)*24*time.Hour + part(2)*time.Hour + part(3)*time.Minute + part(4)*time.Second, true
}

// FormatDuration renders a duration as "Xh Ym". Seconds are dropped.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hours := int(d / time.Hour)
	minutes := int((d % time.Hour) / time.Minute)
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

// HumanizeISODuration converts PT2H35M to "2h 35m". Unparseable input yields
// "0h 0m".
func HumanizeISODuration(s string) string {
	d, _ := ParseISODuration(s)
	return FormatDuration(d)
}
