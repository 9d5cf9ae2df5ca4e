package repository

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/domain/models"
)

// Timeframe is a candle duration string such as "1m", "4h" or "1d".
type Timeframe string

const (
	TF1m Timeframe = "1m"
	TF5m Timeframe = "5m"
	TF1h Timeframe = "1h"
	TF4h Timeframe = "4h"
	TF1d Timeframe = "1d"
)

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1h }

// Hours returns the candle duration in hours. The trailing unit must be
// h, m or d in either case and the numeric prefix a positive number.
func (tf Timeframe) Hours() (float64, error) {
	s := strings.ToLower(strings.TrimSpace(string(tf)))
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", models.ErrUnknownTimeframe, string(tf))
	}
	n, err := strconv.ParseFloat(s[:len(s)-1], 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", models.ErrUnknownTimeframe, string(tf))
	}
	switch s[len(s)-1] {
	case 'h':
		return n, nil
	case 'm':
		return n / 60, nil
	case 'd':
		return n * 24, nil
	default:
		return 0, fmt.Errorf("%w: %q", models.ErrUnknownTimeframe, string(tf))
	}
}

// Duration returns the candle duration.
func (tf Timeframe) Duration() (time.Duration, error) {
	h, err := tf.Hours()
	if err != nil {
		return 0, err
	}
	return time.Duration(h * float64(time.Hour)), nil
}

// IsValidTimeframe returns true if tf parses.
func IsValidTimeframe(tf Timeframe) bool {
	_, err := tf.Hours()
	return err == nil
}

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}
