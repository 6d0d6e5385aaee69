// Package ingest is the audit companion's one-way intake: a unix
// datagram socket the core orchestrator fires invocation events at.
// Nothing here ever talks back to the core — the core only ever writes,
// never reads a reply, matching spec.md's "the core persists no
// cross-invocation state" invariant (the companion's own state is a
// separate, best-effort copy of history, not state the core depends on).
package ingest

import (
	"encoding/json"
	"errors"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/aras-services/pam-policy-bridge/internal/audit/domain"
	"github.com/aras-services/pam-policy-bridge/internal/audit/service"
)

// Listener receives IngestEvent datagrams and forwards each to svc.
type Listener struct {
	conn *net.UnixConn
	svc  *service.InvocationService
	log  *zap.Logger
}

// Listen binds a unix datagram socket at socketPath (removing any stale
// socket file left behind by a prior crash) and returns a Listener ready
// for Serve.
func Listen(socketPath string, svc *service.InvocationService, log *zap.Logger) (*Listener, error) {
	_ = os.Remove(socketPath)

	addr := &net.UnixAddr{Name: socketPath, Net: "unixgram"}
	conn, err := net.ListenUnixgram("unixgram", addr)
	if err != nil {
		return nil, err
	}
	return &Listener{conn: conn, svc: svc, log: log}, nil
}

// Serve reads datagrams until the socket is closed. Malformed events are
// logged and skipped; a storage failure is logged but never stops the
// loop, since a dropped audit event must never be allowed to affect
// anything upstream of this package.
func (l *Listener) Serve() {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := l.conn.ReadFromUnix(buf)
		if err != nil {
			if l.isClosed(err) {
				return
			}
			l.log.Warn("ingest socket read error", zap.Error(err))
			continue
		}

		var ev domain.IngestEvent
		if err := json.Unmarshal(buf[:n], &ev); err != nil {
			l.log.Warn("dropping malformed ingest event", zap.Error(err))
			continue
		}
		if err := l.svc.RecordEvent(&ev); err != nil {
			l.log.Warn("failed to record ingest event", zap.Error(err))
		}
	}
}

func (l *Listener) isClosed(err error) bool {
	var netErr *net.OpError
	return errors.As(err, &netErr) && netErr.Err.Error() == "use of closed network connection"
}

func (l *Listener) Close() error {
	return l.conn.Close()
}
