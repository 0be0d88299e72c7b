package absences

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/observability"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
)

// SessionDispatcher decides between inline and deferred reconciliation.
type SessionDispatcher interface {
	Dispatch(ctx context.Context, ref SessionRef, end time.Time) (Decision, error)
}

// Detector reacts to session writes. Scheduling is best-effort relative to
// the write that produced the event: nothing it does is reported back to the
// caller as an error.
type Detector struct {
	calc       *EndTimeCalculator
	dispatcher SessionDispatcher
	logger     *observability.Logger
	metrics    *observability.Metrics
}

func NewDetector(calc *EndTimeCalculator, dispatcher SessionDispatcher, logger *observability.Logger, metrics *observability.Metrics) *Detector {
	return &Detector{
		calc:       calc,
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
	}
}

// Handle routes an event by its type.
func (d *Detector) Handle(ctx context.Context, ev SessionEvent) {
	switch ev.Type {
	case EventCreated:
		d.OnCreated(ctx, ev)
	case EventUpdated:
		d.OnUpdated(ctx, ev)
	default:
		d.observe(ev, "ignored")
		d.logger.Warn(ctx, "Unknown session event type", zap.String("type", ev.Type), zap.String("session", ev.Ref().String()))
	}
}

// OnCreated always schedules.
func (d *Detector) OnCreated(ctx context.Context, ev SessionEvent) {
	d.schedule(ctx, ev)
}

// OnUpdated schedules only when the date or end time moved. An update that
// carries no previous timing is scheduled, which is safe since
// reconciliation is idempotent.
func (d *Detector) OnUpdated(ctx context.Context, ev SessionEvent) {
	if ev.Previous != nil && !timingChanged(*ev.Previous, SessionTiming{Date: ev.Date, EndTime: ev.EndTime}, d.calc.Location()) {
		d.observe(ev, "unchanged")
		d.logger.Debug(ctx, "Session update does not affect timing", zap.String("session", ev.Ref().String()))
		return
	}
	d.schedule(ctx, ev)
}

func (d *Detector) schedule(ctx context.Context, ev SessionEvent) {
	ref := ev.Ref()
	ctx = context.WithValue(ctx, observability.SessionRefKey, ref.String())

	defer func() {
		if r := recover(); r != nil {
			d.observe(ev, "panic")
			d.logger.Error(ctx, "Recovered panic while scheduling session",
				zap.String("session", ref.String()),
				zap.Any("panic", r),
			)
		}
	}()

	end, err := d.calc.EndInstant(ev.Date, ev.EndTime)
	if err != nil {
		d.observe(ev, "malformed")
		d.logger.Warn(ctx, "Scheduling aborted: malformed session timing",
			zap.String("session", ref.String()),
			zap.String("date", ev.Date),
			zap.String("end_time", ev.EndTime),
			zap.Error(err),
		)
		return
	}

	decision, err := d.dispatcher.Dispatch(ctx, ref, end)
	if err != nil {
		d.observe(ev, "failed")
		fields := []zap.Field{
			zap.String("session", ref.String()),
			zap.String("decision", string(decision)),
			zap.String("error_code", errorCodeOf(err)),
			zap.Error(err),
		}
		if errors.IsRetryable(err) {
			d.logger.Warn(ctx, "Scheduling failed; the sweep will retry", fields...)
		} else {
			d.logger.Error(ctx, "Scheduling failed", fields...)
		}
		return
	}
	d.observe(ev, string(decision))
}

func (d *Detector) observe(ev SessionEvent, outcome string) {
	if d.metrics == nil {
		return
	}
	source := ev.Source
	if source == "" {
		source = "direct"
	}
	d.metrics.SessionEventsTotal.WithLabelValues(source, ev.Type, outcome).Inc()
}

// timingChanged compares normalised date and end time, so "09:00" and
// "09:00:00" are the same value.
func timingChanged(before, after SessionTiming, loc *time.Location) bool {
	return normaliseDate(before.Date, loc) != normaliseDate(after.Date, loc) ||
		normaliseClock(before.EndTime) != normaliseClock(after.EndTime)
}

func normaliseDate(s string, loc *time.Location) string {
	if t, err := parseDate(s, loc); err == nil {
		return t.Format(dateLayout)
	}
	return strings.TrimSpace(s)
}

func normaliseClock(s string) string {
	if t, err := parseClock(s); err == nil {
		return t.Format("15:04:05")
	}
	return strings.TrimSpace(s)
}

func errorCodeOf(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return string(appErr.Code)
	}
	return fmt.Sprintf("%T", err)
}
