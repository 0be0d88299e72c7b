package absences

import (
	"context"
	"encoding/json"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/validator"
)

const SourceKafka = "kafka"

// EventHandler feeds session events read from the broker into the detector.
type EventHandler struct {
	detector  EventSink
	validator *validator.Validator
}

// EventSink receives well-formed session events.
type EventSink interface {
	Handle(ctx context.Context, ev SessionEvent)
}

func NewEventHandler(detector EventSink, v *validator.Validator) *EventHandler {
	return &EventHandler{detector: detector, validator: v}
}

// HandleMessage decodes and validates one message. Undecodable or invalid
// events are reported so the consumer can log them; scheduling outcomes are
// not.
func (h *EventHandler) HandleMessage(ctx context.Context, _ []byte, value []byte) error {
	var ev SessionEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return errors.Wrap(err, errors.ErrCodeBadRequest, "Invalid session event payload")
	}
	if err := h.validator.Validate(ev); err != nil {
		return errors.WithDetails(errors.ErrCodeValidation, "Invalid session event", validator.TranslateValidationErrors(err))
	}
	ev.Source = SourceKafka
	h.detector.Handle(ctx, ev)
	return nil
}
