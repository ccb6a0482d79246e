package workers

import (
	"context"
	"log/slog"
	"time"
)

// probe is the keepalive text frame clients answer with "__pong__".
const probe = "__ping__"

// Pinger is the slice of the registry the liveness worker needs.
type Pinger interface {
	PingAll(probe string) int
}

// LivenessWorker proactively detects and removes dead connections on a
// fixed interval. Token expiry alone only closes a session the next
// time it sends something; this worker catches the silent ones.
type LivenessWorker struct {
	log      *slog.Logger
	registry Pinger
	interval time.Duration
}

func NewLivenessWorker(log *slog.Logger, registry Pinger, interval time.Duration) *LivenessWorker {
	return &LivenessWorker{log: log, registry: registry, interval: interval}
}

func (w *LivenessWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sent := w.registry.PingAll(probe)
			w.log.Debug("liveness probe round complete", "delivered", sent)
		}
	}
}
