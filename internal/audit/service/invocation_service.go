// Package service is the audit companion's use-case layer: it turns raw
// ingest events into stored records and paginates read-API queries, the
// way internal/usecase does for the teacher's own domain objects.
package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aras-services/pam-policy-bridge/internal/audit/domain"
)

type InvocationService struct {
	repo domain.InvocationRepository
}

func NewInvocationService(repo domain.InvocationRepository) *InvocationService {
	return &InvocationService{repo: repo}
}

// RecordEvent stores one ingest event as a new InvocationRecord. The
// core's ingest events carry no ID of their own — one is minted here,
// since the core never needs to refer back to a stored row.
func (s *InvocationService) RecordEvent(ev *domain.IngestEvent) error {
	rec := &domain.InvocationRecord{
		ID:            uuid.New(),
		CorrelationID: ev.CorrelationID,
		Hook:          ev.Hook,
		PID:           ev.PID,
		ChildPath:     ev.ChildPath,
		ResultCode:    ev.ResultCode,
		ErrorText:     ev.ErrorText,
		StartedAt:     ev.StartedAt,
		FinishedAt:    ev.FinishedAt,
	}
	if err := s.repo.Create(rec); err != nil {
		return fmt.Errorf("recording invocation: %w", err)
	}
	return nil
}

type ListInvocationsResponse struct {
	Invocations []*domain.InvocationRecord `json:"invocations"`
	Total       int                        `json:"total"`
	Page        int                        `json:"page"`
	Limit       int                        `json:"limit"`
}

func (s *InvocationService) ListInvocations(page, limit int, hookFilter string) (*ListInvocationsResponse, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	offset := (page - 1) * limit

	recs, err := s.repo.List(limit, offset, hookFilter)
	if err != nil {
		return nil, fmt.Errorf("listing invocations: %w", err)
	}
	total, err := s.repo.Count(hookFilter)
	if err != nil {
		return nil, fmt.Errorf("counting invocations: %w", err)
	}
	return &ListInvocationsResponse{Invocations: recs, Total: total, Page: page, Limit: limit}, nil
}

func (s *InvocationService) GetInvocation(id uuid.UUID) (*domain.InvocationRecord, error) {
	return s.repo.GetByID(id)
}

// Latency is a convenience the handler layer uses to report a duration
// without importing time itself.
func Latency(rec *domain.InvocationRecord) time.Duration {
	return rec.Duration()
}
