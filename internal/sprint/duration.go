// Package sprint implements the writing-sprint core: duration parsing,
// word counting, the countdown timer, and the session state machine.
package sprint

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidDuration is returned by ParseDuration for unparseable input.
var ErrInvalidDuration = errors.New("invalid duration")

// ParseDuration parses free-text duration input into seconds.
// Accepted forms are "M" (whole minutes) and "M:SS". Parsing is
// exact-token: no whitespace trimming, no locale handling.
// Minutes must be positive and seconds must be in [0, 60).
func ParseDuration(input string) (int, error) {
	if input == "" {
		return 0, ErrInvalidDuration
	}

	if strings.Contains(input, ":") {
		parts := strings.Split(input, ":")
		if len(parts) != 2 {
			return 0, ErrInvalidDuration
		}
		minutes, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, ErrInvalidDuration
		}
		seconds, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, ErrInvalidDuration
		}
		if minutes <= 0 || seconds < 0 || seconds >= 60 {
			return 0, ErrInvalidDuration
		}
		return minutes*60 + seconds, nil
	}

	minutes, err := strconv.Atoi(input)
	if err != nil || minutes <= 0 {
		return 0, ErrInvalidDuration
	}
	return minutes * 60, nil
}
