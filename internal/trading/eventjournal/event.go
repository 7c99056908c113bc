package eventjournal

import (
	"fmt"
	"time"

	"github.com/Aidin1998/pincex_matching/internal/trading/engine"
	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/go-playground/validator/v10"
)

// Event type constants
const (
	EventTypeSubmit = "SUBMIT"
	EventTypeCancel = "CANCEL"
	EventTypeModify = "MODIFY"
)

// Event is one accepted engine call. Timestamp is the logical time the
// engine assigned, so replaying a journal reproduces the book exactly.
// RecordedAt is wall time and informational only.
type Event struct {
	Type       string                 `json:"type" validate:"required,oneof=SUBMIT CANCEL MODIFY"`
	Instrument string                 `json:"instrument,omitempty"`
	Timestamp  model.Timestamp        `json:"timestamp"`
	RecordedAt time.Time              `json:"recorded_at,omitempty"`
	Order      *model.OrderDescriptor `json:"order,omitempty" validate:"required_if=Type SUBMIT"`
	Cancel     *engine.CancelRequest  `json:"cancel,omitempty" validate:"required_if=Type CANCEL"`
	Modify     *engine.ModifyRequest  `json:"modify,omitempty" validate:"required_if=Type MODIFY"`
}

var validate = validator.New()

// Validate checks that the event carries the payload its type needs.
func (e *Event) Validate() error {
	if err := validate.Struct(e); err != nil {
		return fmt.Errorf("invalid journal event: %w", err)
	}
	return nil
}

// SubmitEvent records an accepted order. d must already carry the stamped
// timestamp and, if it rested, the assigned resting id.
func SubmitEvent(instrument string, d model.OrderDescriptor) *Event {
	return &Event{
		Type:       EventTypeSubmit,
		Instrument: instrument,
		Timestamp:  d.Timestamp,
		RecordedAt: time.Now().UTC(),
		Order:      &d,
	}
}

// CancelEvent records a cancel handled at logical time ts.
func CancelEvent(instrument string, req engine.CancelRequest, ts model.Timestamp) *Event {
	req.Timestamp = ts
	return &Event{
		Type:       EventTypeCancel,
		Instrument: instrument,
		Timestamp:  ts,
		RecordedAt: time.Now().UTC(),
		Cancel:     &req,
	}
}

// ModifyEvent records a modify handled at logical time ts.
func ModifyEvent(instrument string, req engine.ModifyRequest, ts model.Timestamp) *Event {
	req.Timestamp = ts
	return &Event{
		Type:       EventTypeModify,
		Instrument: instrument,
		Timestamp:  ts,
		RecordedAt: time.Now().UTC(),
		Modify:     &req,
	}
}
