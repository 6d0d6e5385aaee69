package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/aras-services/pam-policy-bridge/internal/audit/domain"
)

type fakeRepo struct {
	created []*domain.InvocationRecord
	byID    map[uuid.UUID]*domain.InvocationRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byID: map[uuid.UUID]*domain.InvocationRecord{}}
}

func (f *fakeRepo) Create(rec *domain.InvocationRecord) error {
	f.created = append(f.created, rec)
	f.byID[rec.ID] = rec
	return nil
}

func (f *fakeRepo) GetByID(id uuid.UUID) (*domain.InvocationRecord, error) {
	rec, ok := f.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRepo) List(limit, offset int, hookFilter string) ([]*domain.InvocationRecord, error) {
	var out []*domain.InvocationRecord
	for _, rec := range f.created {
		if hookFilter == "" || rec.Hook == hookFilter {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeRepo) Count(hookFilter string) (int, error) {
	recs, _ := f.List(0, 0, hookFilter)
	return len(recs), nil
}

func TestRecordEventStoresNewRecordWithMintedID(t *testing.T) {
	repo := newFakeRepo()
	svc := NewInvocationService(repo)

	ev := &domain.IngestEvent{
		Hook:       "authenticate",
		PID:        1234,
		ChildPath:  "/usr/lib/pam-policy-bridge/pambridgechild",
		ResultCode: 0,
		StartedAt:  time.Now().Add(-time.Second),
		FinishedAt: time.Now(),
	}
	require.NoError(t, svc.RecordEvent(ev))
	require.Len(t, repo.created, 1)
	require.NotEqual(t, uuid.Nil, repo.created[0].ID)
	require.Equal(t, "authenticate", repo.created[0].Hook)
}

func TestListInvocationsAppliesHookFilterAndPagination(t *testing.T) {
	repo := newFakeRepo()
	svc := NewInvocationService(repo)

	require.NoError(t, svc.RecordEvent(&domain.IngestEvent{Hook: "authenticate", StartedAt: time.Now(), FinishedAt: time.Now()}))
	require.NoError(t, svc.RecordEvent(&domain.IngestEvent{Hook: "open_session", StartedAt: time.Now(), FinishedAt: time.Now()}))

	resp, err := svc.ListInvocations(1, 50, "authenticate")
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	require.Len(t, resp.Invocations, 1)
	require.Equal(t, "authenticate", resp.Invocations[0].Hook)
}

func TestListInvocationsDefaultsInvalidPageAndLimit(t *testing.T) {
	repo := newFakeRepo()
	svc := NewInvocationService(repo)

	resp, err := svc.ListInvocations(0, 0, "")
	require.NoError(t, err)
	require.Equal(t, 1, resp.Page)
	require.Equal(t, 50, resp.Limit)
}

func TestGetInvocationReturnsStoredRecord(t *testing.T) {
	repo := newFakeRepo()
	svc := NewInvocationService(repo)

	require.NoError(t, svc.RecordEvent(&domain.IngestEvent{Hook: "setcred", StartedAt: time.Now(), FinishedAt: time.Now()}))
	rec := repo.created[0]

	got, err := svc.GetInvocation(rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.ID, got.ID)
}
