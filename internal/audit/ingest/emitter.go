package ingest

import (
	"encoding/json"
	"net"
	"time"

	"github.com/google/uuid"

	"github.com/aras-services/pam-policy-bridge/internal/audit/domain"
)

// Emitter fires best-effort IngestEvent datagrams at a configured unix
// socket from the core orchestrator. A missing or unreachable listener
// never surfaces an error to the caller — see package doc.
type Emitter struct {
	socketPath string
	timeout    time.Duration
}

// NewEmitter returns a no-op Emitter if socketPath is empty, so callers
// never need to nil-check before calling Emit.
func NewEmitter(socketPath string, timeout time.Duration) *Emitter {
	return &Emitter{socketPath: socketPath, timeout: timeout}
}

// Emit sends one event, silently giving up on any error — dial failure,
// write failure, or a listener that never accepts the datagram in time.
func (e *Emitter) Emit(hook string, pid int, childPath string, resultCode int, errText string, started, finished time.Time) {
	if e.socketPath == "" {
		return
	}

	ev := domain.IngestEvent{
		CorrelationID: uuid.New(),
		Hook:          hook,
		PID:           pid,
		ChildPath:     childPath,
		ResultCode:    resultCode,
		ErrorText:     errText,
		StartedAt:     started,
		FinishedAt:    finished,
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return
	}

	conn, err := net.DialTimeout("unixgram", e.socketPath, e.timeout)
	if err != nil {
		return
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(e.timeout))
	_, _ = conn.Write(body)
}
