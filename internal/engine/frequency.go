package engine

import (
	"fmt"
	"strconv"
	"strings"
)

var namedFrequencies = map[string]int{
	"daily":       1,
	"weekly":      7,
	"fortnightly": 14,
	"biweekly":    14,
	"monthly":     30,
	"quarterly":   91,
	"yearly":      365,
}

// ParseFrequency turns user input into a frequency in days. It accepts a
// bare day count ("10"), a count with a d or w suffix ("3d", "2w"), or one
// of the named intervals ("weekly").
func ParseFrequency(input string) (int, error) {
	s := strings.TrimSpace(strings.ToLower(input))
	if days, ok := namedFrequencies[s]; ok {
		return days, nil
	}

	mult := 1
	switch {
	case strings.HasSuffix(s, "w"):
		mult = 7
		s = strings.TrimSuffix(s, "w")
	case strings.HasSuffix(s, "d"):
		s = strings.TrimSuffix(s, "d")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, ValidationError{Field: "frequency_days", Message: fmt.Sprintf("invalid frequency %q", input)}
	}
	if n > MaxFrequencyDays/mult {
		return 0, ValidationError{Field: "frequency_days", Message: fmt.Sprintf("must be at most %d days", MaxFrequencyDays)}
	}
	return n * mult, nil
}
