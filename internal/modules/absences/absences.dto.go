package absences

import (
	"fmt"
	"time"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/queue"
	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/infrastructure/sqlc"
)

const (
	EventCreated = "created"
	EventUpdated = "updated"

	SessionStatusCancelled = "cancelled"
)

// SessionRef names a course or exam session.
type SessionRef struct {
	Kind sqlc.AbsencesSessionKind `json:"kind"`
	ID   uint64                   `json:"id"`
}

func (r SessionRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

func (r SessionRef) payload() queue.Payload {
	return queue.Payload{SessionID: r.ID, Kind: r.Kind}
}

// Scope is the tenant context a session's roster and signals are filtered by.
// Nil group or city means the session spans all of them.
type Scope struct {
	InstitutionID uint64  `json:"institution_id"`
	PromotionID   uint64  `json:"promotion_id"`
	GroupID       *uint64 `json:"group_id,omitempty"`
	CityID        *uint64 `json:"city_id,omitempty"`
}

// Session is the current state of a course or exam as stored by the
// course/exam application. Date and times are wall-clock values.
type Session struct {
	Ref       SessionRef
	Name      string
	Date      string
	StartTime string
	EndTime   string
	Scope     Scope
	Status    string
}

type Student struct {
	ID        uint64
	Matricule string
}

// Signal is the earliest device check-in of a student inside a session window.
type Signal struct {
	StudentID   uint64
	FirstSeenAt time.Time
	Count       int64
}

// SessionTiming holds the temporal fields the change detector compares.
type SessionTiming struct {
	Date    string `json:"date"`
	EndTime string `json:"end_time"`
} // @name SessionTiming

// SessionEvent is emitted by the course/exam application after a session
// write. Previous carries the persisted timing before an update.
// @Description Session lifecycle event
type SessionEvent struct {
	Type       string                   `json:"type" validate:"required,oneof=created updated"`
	Kind       sqlc.AbsencesSessionKind `json:"kind" validate:"required,oneof=course exam"`
	ID         uint64                   `json:"id" validate:"required,gt=0"`
	Date       string                   `json:"date"`
	StartTime  string                   `json:"start_time,omitempty"`
	EndTime    string                   `json:"end_time"`
	Previous   *SessionTiming           `json:"previous,omitempty"`
	OccurredAt *time.Time               `json:"occurred_at,omitempty"`

	// Source names the transport that delivered the event.
	Source string `json:"-"`
} // @name SessionEvent

func (e SessionEvent) Ref() SessionRef {
	return SessionRef{Kind: e.Kind, ID: e.ID}
}

// Stats summarises one reconciliation run.
// @Description Reconciliation outcome counts
type Stats struct {
	Session   SessionRef `json:"session"`
	Roster    int        `json:"roster"`
	Created   int        `json:"created"`
	Updated   int        `json:"updated"`
	Unchanged int        `json:"unchanged"`
	Present   int        `json:"present"`
	Late      int        `json:"late"`
	Absent    int        `json:"absent"`
	LeftEarly int        `json:"left_early"`
	Errors    int        `json:"errors"`
	Skipped   string     `json:"skipped,omitempty"`
} // @name ReconciliationStats

// EventAccepted is the body of a 202 answer to the session hook.
type EventAccepted struct {
	Accepted bool   `json:"accepted"`
	Session  string `json:"session"`
} // @name EventAccepted

type ListTasksRequest struct {
	Status string `form:"status" validate:"omitempty,oneof=pending running succeeded failed superseded"`
	Page   int    `form:"page" validate:"min=1"`
	Limit  int    `form:"limit" validate:"min=1,max=100"`
}

type ListTasksResponse struct {
	Tasks []queue.Task `json:"tasks"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
} // @name ListTasksResponse
