// Package domain holds the audit companion's own data model. It never
// overlaps with the core's hook/wire/hostitem types (spec.md §3) — the
// core emits an ingest event as plain JSON, entirely decoupled from the
// wire schema, precisely so the companion can evolve independently of
// the bridge it observes.
package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by InvocationRepository.GetByID when no record
// matches the given ID.
var ErrNotFound = errors.New("invocation not found")

// InvocationRecord is one completed hook invocation, as reported by the
// orchestrator's best-effort ingest event (internal/audit/ingest). It
// holds no reference to the core's own types by design.
type InvocationRecord struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	CorrelationID uuid.UUID  `json:"correlation_id" db:"correlation_id"`
	Hook          string     `json:"hook" db:"hook"`
	PID           int        `json:"pid" db:"pid"`
	ChildPath     string     `json:"child_path" db:"child_path"`
	ResultCode    int        `json:"result_code" db:"result_code"`
	ErrorText     string     `json:"error_text,omitempty" db:"error_text"`
	StartedAt     time.Time  `json:"started_at" db:"started_at"`
	FinishedAt    time.Time  `json:"finished_at" db:"finished_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// Duration is FinishedAt - StartedAt. It is a method only: the JSON form
// of a record carries no duration field.
func (r *InvocationRecord) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// IngestEvent is the JSON shape the core orchestrator fires at
// internal/audit/ingest's unix-socket listener. It is a separate type
// from InvocationRecord because the event is untrusted, unauthenticated
// input — ID and CreatedAt are assigned server-side on receipt.
type IngestEvent struct {
	CorrelationID uuid.UUID `json:"correlation_id"`
	Hook          string    `json:"hook"`
	PID           int       `json:"pid"`
	ChildPath     string    `json:"child_path"`
	ResultCode    int       `json:"result_code"`
	ErrorText     string    `json:"error_text,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
}

// InvocationRepository persists and queries invocation history.
type InvocationRepository interface {
	Create(rec *InvocationRecord) error
	GetByID(id uuid.UUID) (*InvocationRecord, error)
	List(limit, offset int, hookFilter string) ([]*InvocationRecord, error)
	Count(hookFilter string) (int, error)
}
