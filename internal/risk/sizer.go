package risk

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrInvalidStopDistance is returned when entry and stop are the same price
	ErrInvalidStopDistance = errors.New("invalid stop distance: entry equals stop")
	// ErrQuantityTooSmall is returned when the sized quantity rounds down to zero
	ErrQuantityTooSmall = errors.New("quantity rounds down to zero")
	// ErrNoEquity is returned when there is nothing to risk
	ErrNoEquity = errors.New("equity must be positive")
)

const (
	DefaultRiskFraction = 0.02
	DefaultSafetyCap    = 0.95
)

// Sizer converts an equity figure and a stop distance into an order quantity.
// It loses at most RiskFraction of equity when the stop is hit and never commits
// more than SafetyCap of equity as notional.
type Sizer struct {
	RiskFraction float64
	SafetyCap    float64
}

// NewSizer creates a sizer, validating both fractions
func NewSizer(riskFraction, safetyCap float64) (*Sizer, error) {
	if riskFraction <= 0 || riskFraction > 1 {
		return nil, fmt.Errorf("risk fraction must be in (0, 1], got %v", riskFraction)
	}
	if safetyCap <= 0 || safetyCap > 1 {
		return nil, fmt.Errorf("safety cap must be in (0, 1], got %v", safetyCap)
	}
	return &Sizer{RiskFraction: riskFraction, SafetyCap: safetyCap}, nil
}

// Size returns the unrounded quantity for a position entered at entry and
// protected at stop.
func (s *Sizer) Size(equity, entry, stop float64) (float64, error) {
	if equity <= 0 {
		return 0, ErrNoEquity
	}
	if entry <= 0 || stop <= 0 {
		return 0, fmt.Errorf("prices must be positive: entry=%v stop=%v", entry, stop)
	}

	distance := math.Abs(entry - stop)
	if distance == 0 {
		return 0, ErrInvalidStopDistance
	}

	qty := equity * s.RiskFraction / distance

	// Notional cap
	if maxQty := equity * s.SafetyCap / entry; qty*entry > equity*s.SafetyCap {
		qty = maxQty
	}

	return qty, nil
}

// FloorToStep rounds qty down to a multiple of step. A non-positive step
// leaves qty untouched.
func FloorToStep(qty, step float64) float64 {
	if step <= 0 || qty <= 0 {
		return math.Max(qty, 0)
	}

	// The epsilon absorbs representation error such as 0.3/0.1 = 2.9999999999999996
	steps := math.Floor(qty/step + 1e-9)
	precision := stepPrecision(step)
	multiplier := math.Pow(10, float64(precision))
	return math.Floor(steps*step*multiplier+1e-6) / multiplier
}

// stepPrecision returns the number of decimals a step is expressed with
func stepPrecision(step float64) int {
	s := strconv.FormatFloat(step, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}
