package absences

import (
	"context"
	"sync"
	"time"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/queue"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/sqlc"
)

var testDay = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

type reconcileCall struct {
	Ref     SessionRef
	Trigger string
}

type fakeReconciler struct {
	mu    sync.Mutex
	calls []reconcileCall
	err   error
	panic bool
}

func (f *fakeReconciler) CreateAbsencesForSession(ctx context.Context, sessionID uint64, kind sqlc.AbsencesSessionKind) (*Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref := SessionRef{Kind: kind, ID: sessionID}
	f.calls = append(f.calls, reconcileCall{Ref: ref, Trigger: triggerFrom(ctx)})
	if f.panic {
		panic("reconciler exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &Stats{Session: ref}, nil
}

type enqueueCall struct {
	Payload   queue.Payload
	NotBefore time.Time
}

type fakeTasks struct {
	enqueued  []enqueueCall
	cancelled []queue.Payload
	err       error
}

func (f *fakeTasks) Enqueue(ctx context.Context, p queue.Payload, notBefore time.Time) (queue.Task, error) {
	if f.err != nil {
		return queue.Task{}, f.err
	}
	f.enqueued = append(f.enqueued, enqueueCall{Payload: p, NotBefore: notBefore})
	return queue.Task{Payload: p, NotBefore: notBefore, Status: "pending"}, nil
}

func (f *fakeTasks) Cancel(ctx context.Context, p queue.Payload) (int64, error) {
	f.cancelled = append(f.cancelled, p)
	return 0, nil
}

type fakeSink struct {
	events []SessionEvent
}

func (f *fakeSink) Handle(ctx context.Context, ev SessionEvent) {
	f.events = append(f.events, ev)
}

// fakeWorld backs every data source of the service with in-memory state and
// applies upserts the way the ON DUPLICATE KEY statement does: justification
// columns and created_at are left alone on update.
type fakeWorld struct {
	sessions   map[SessionRef]Session
	sessionErr error
	roster     []Student
	rosterErr  error
	signals    map[uint64]Signal
	signalFn   func()
	absences   map[uint64]sqlc.Absence
	upserts    int
	upsertErr  error
	window     [2]time.Time
}

func newFakeWorld() *fakeWorld {
	return &fakeWorld{
		sessions: map[SessionRef]Session{},
		signals:  map[uint64]Signal{},
		absences: map[uint64]sqlc.Absence{},
	}
}

func (w *fakeWorld) GetSession(ctx context.Context, ref SessionRef) (Session, error) {
	if w.sessionErr != nil {
		return Session{}, w.sessionErr
	}
	s, ok := w.sessions[ref]
	if !ok {
		return Session{}, SessionNotFoundError(ref, nil)
	}
	return s, nil
}

func (w *fakeWorld) ListSessionsBetween(ctx context.Context, fromDate, toDate string) ([]Session, error) {
	if w.sessionErr != nil {
		return nil, w.sessionErr
	}
	var out []Session
	for _, s := range w.sessions {
		if s.Date >= fromDate && s.Date <= toDate {
			out = append(out, s)
		}
	}
	return out, nil
}

func (w *fakeWorld) ListRoster(ctx context.Context, scope Scope) ([]Student, error) {
	return w.roster, w.rosterErr
}

func (w *fakeWorld) FirstSignals(ctx context.Context, scope Scope, from, to time.Time) (map[uint64]Signal, error) {
	if w.signalFn != nil {
		w.signalFn()
	}
	w.window = [2]time.Time{from, to}
	out := make(map[uint64]Signal)
	for id, sig := range w.signals {
		if !sig.FirstSeenAt.Before(from) && !sig.FirstSeenAt.After(to) {
			out[id] = sig
		}
	}
	return out, nil
}

func (w *fakeWorld) ListForSession(ctx context.Context, ref SessionRef) (map[uint64]sqlc.Absence, error) {
	out := make(map[uint64]sqlc.Absence, len(w.absences))
	for k, v := range w.absences {
		out[k] = v
	}
	return out, nil
}

func (w *fakeWorld) Upsert(ctx context.Context, records []sqlc.UpsertAbsenceParams) error {
	if w.upsertErr != nil {
		return w.upsertErr
	}
	for _, r := range records {
		w.upserts++
		row, ok := w.absences[r.StudentID]
		if !ok {
			row = sqlc.Absence{
				ID:          uint64(len(w.absences) + 1),
				SessionKind: r.SessionKind,
				SessionID:   r.SessionID,
				StudentID:   r.StudentID,
				CreatedAt:   r.CreatedAt,
			}
		}
		row.Status = r.Status
		row.FirstSignalAt = r.FirstSignalAt
		row.UpdatedAt = r.UpdatedAt
		w.absences[r.StudentID] = row
	}
	return nil
}
