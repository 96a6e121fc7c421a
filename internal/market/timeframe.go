package market

import (
	"fmt"
	"time"
)

// Timeframe is a trailing chart window.
type Timeframe string

const (
	Timeframe24h Timeframe = "24h"
	Timeframe7d  Timeframe = "7d"
	Timeframe30d Timeframe = "30d"
	Timeframe1y  Timeframe = "1y"
)

// ParseTimeframe validates a caller-supplied timeframe string.
func ParseTimeframe(s string) (Timeframe, error) {
	switch Timeframe(s) {
	case Timeframe24h, Timeframe7d, Timeframe30d, Timeframe1y:
		return Timeframe(s), nil
	case "":
		return Timeframe24h, nil
	}
	return "", fmt.Errorf("invalid timeframe %q", s)
}

// Duration returns the trailing window the timeframe covers.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe7d:
		return 7 * 24 * time.Hour
	case Timeframe30d:
		return 30 * 24 * time.Hour
	case Timeframe1y:
		return 365 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// SyntheticShape returns how many interpolated points a synthesized
// series carries for the timeframe and their spacing.
func (tf Timeframe) SyntheticShape() (count int, step time.Duration) {
	switch tf {
	case Timeframe7d:
		return 168, time.Hour
	case Timeframe30d:
		return 30, 24 * time.Hour
	case Timeframe1y:
		return 52, 7 * 24 * time.Hour
	default:
		return 24, time.Hour
	}
}
