package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/leadvault/chatimport-cli/internal/resilience"
)

// SnapshotFunc produces the current serialized login state of the live
// automation connection.
type SnapshotFunc func(ctx context.Context) ([]byte, error)

// SnapshotLoop periodically persists the live session as a crash safety
// net, and forces a final snapshot when the connection announces it is
// closing. It runs on its own goroutine, decoupled from the import loop: a
// failed snapshot is logged and retried on the next tick, never propagated.
type SnapshotLoop struct {
	Manager  *Manager
	OrgID    string
	Interval time.Duration
	Source   SnapshotFunc

	// Closing receives a signal when the automation connection is about
	// to close; a snapshot is forced immediately.
	Closing <-chan struct{}

	// Retry bounds the in-tick retry of transient store failures.
	Retry resilience.RetryConfig
}

// Run blocks until ctx is cancelled or the closing signal arrives.
func (l *SnapshotLoop) Run(ctx context.Context) {
	interval := l.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log := zap.L().With(zap.String("organization_id", l.OrgID))
	log.Info("session snapshot loop started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			log.Info("session snapshot loop stopped")
			return
		case <-l.Closing:
			log.Info("connection closing, forcing final session snapshot")
			l.snapshot(ctx, log)
			return
		case <-ticker.C:
			l.snapshot(ctx, log)
		}
	}
}

func (l *SnapshotLoop) snapshot(ctx context.Context, log *zap.Logger) {
	payload, err := l.Source(ctx)
	if err != nil {
		log.Warn("session snapshot source failed, will retry next interval", zap.Error(err))
		return
	}

	retryCfg := l.Retry
	retryCfg.OnRetry = resilience.RetryLogger("store", "save_session_artifact")
	err = resilience.Do(ctx, retryCfg, func(ctx context.Context) error {
		return l.Manager.Save(ctx, l.OrgID, payload)
	})
	if err != nil {
		log.Warn("session snapshot save failed, will retry next interval", zap.Error(err))
		return
	}

	log.Debug("session snapshot saved", zap.Int("bytes", len(payload)))
}
