package ingest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aras-services/pam-policy-bridge/internal/audit/domain"
	"github.com/aras-services/pam-policy-bridge/internal/audit/service"
)

type fakeRepo struct {
	created chan *domain.InvocationRecord
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{created: make(chan *domain.InvocationRecord, 8)}
}

func (f *fakeRepo) Create(rec *domain.InvocationRecord) error {
	f.created <- rec
	return nil
}
func (f *fakeRepo) GetByID(id uuid.UUID) (*domain.InvocationRecord, error) { return nil, domain.ErrNotFound }
func (f *fakeRepo) List(limit, offset int, hookFilter string) ([]*domain.InvocationRecord, error) {
	return nil, nil
}
func (f *fakeRepo) Count(hookFilter string) (int, error) { return 0, nil }

func TestEmitterAndListenerRoundTripOverUnixSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "pambridge-audit.sock")

	repo := newFakeRepo()
	svc := service.NewInvocationService(repo)

	l, err := Listen(socketPath, svc, zap.NewNop())
	require.NoError(t, err)
	defer l.Close()
	go l.Serve()

	emit := NewEmitter(socketPath, time.Second)
	started := time.Now().Add(-time.Millisecond)
	finished := time.Now()
	emit.Emit("authenticate", 42, "/usr/lib/pam-policy-bridge/pambridgechild", 0, "", started, finished)

	select {
	case rec := <-repo.created:
		require.Equal(t, "authenticate", rec.Hook)
		require.Equal(t, 42, rec.PID)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for ingest event to be recorded")
	}
}

func TestEmitterWithEmptySocketPathIsANoOp(t *testing.T) {
	emit := NewEmitter("", time.Second)
	require.NotPanics(t, func() {
		emit.Emit("authenticate", 1, "child", 0, "", time.Now(), time.Now())
	})
}

func TestEmitterSilentlyGivesUpWhenNoListenerIsBound(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "nobody-listening.sock")
	emit := NewEmitter(socketPath, 50*time.Millisecond)
	require.NotPanics(t, func() {
		emit.Emit("authenticate", 1, "child", 0, "", time.Now(), time.Now())
	})
}
