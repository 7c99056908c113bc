package engine

import "errors"

// Intake failures. They are detected before the book, the tape or the clock
// change and are returned wrapped, so callers match them with errors.Is.
var (
	ErrInvalidOrder     = errors.New("invalid order")
	ErrUnknownOrderType = errors.New("unknown order type")
	ErrUnknownSide      = errors.New("unknown side")
)
