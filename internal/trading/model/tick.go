package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultTickSize matches the reference resolution of four decimal places.
var DefaultTickSize = TickSize{step: decimal.New(1, -4)}

// TickSize is the price grid resolution. All limit prices are normalized to
// an integer multiple of the step.
type TickSize struct {
	step decimal.Decimal
}

// NewTickSize returns a tick grid with the given positive step.
func NewTickSize(step decimal.Decimal) (TickSize, error) {
	if !step.IsPositive() {
		return TickSize{}, fmt.Errorf("tick size must be positive, got %s", step)
	}
	return TickSize{step: step}, nil
}

// ParseTickSize parses a decimal string such as "0.0001".
func ParseTickSize(s string) (TickSize, error) {
	step, err := decimal.NewFromString(s)
	if err != nil {
		return TickSize{}, fmt.Errorf("invalid tick size %q: %w", s, err)
	}
	return NewTickSize(step)
}

// Step returns the grid step.
func (t TickSize) Step() decimal.Decimal {
	if t.step.IsZero() {
		return DefaultTickSize.step
	}
	return t.step
}

// Normalize snaps price to the nearest grid point. Ties round to the even
// multiple. The arithmetic is exact decimal, so repeated normalization never
// drifts off the grid.
func (t TickSize) Normalize(price decimal.Decimal) decimal.Decimal {
	step := t.Step()
	return price.Div(step).RoundBank(0).Mul(step)
}

func (t TickSize) String() string { return t.Step().String() }
