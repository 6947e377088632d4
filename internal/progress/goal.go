package progress

import (
	"errors"
	"math"
)

// Progress update modes.
const (
	ModeSet       = "set"
	ModeIncrement = "increment"
)

var ErrInvalidMode = errors.New("mode must be set or increment")

// Percent returns round(value/target*100), or 0 when target is not positive.
// The result is not clamped.
func Percent(value, target float64) int {
	if target <= 0 {
		return 0
	}
	return int(math.Round(value / target * 100))
}

// BarPercent is Percent capped to [0, 100] for rendering.
func BarPercent(value, target float64) int {
	return max(0, min(Percent(value, target), 100))
}

// Clamp bounds v to [0, target].
func Clamp(v, target float64) float64 {
	return math.Max(0, math.Min(v, target))
}

// Update is the result of applying a progress change to a goal.
type Update struct {
	Previous        float64
	Value           float64
	PreviousPercent int
	Percent         int
	Completed       bool
}

// Apply computes a goal's new current value. ModeSet replaces the value,
// ModeIncrement adds to it; either way the result is clamped to [0, target].
// Completed is true only when this update reaches 100% for the first time.
func Apply(mode string, current, amount, target float64) (Update, error) {
	var next float64
	switch mode {
	case ModeSet, "":
		next = amount
	case ModeIncrement:
		next = current + amount
	default:
		return Update{}, ErrInvalidMode
	}
	next = Clamp(next, target)

	u := Update{
		Previous:        current,
		Value:           next,
		PreviousPercent: Percent(current, target),
		Percent:         Percent(next, target),
	}
	u.Completed = u.Percent >= 100 && u.PreviousPercent < 100
	return u, nil
}
