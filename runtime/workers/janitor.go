package workers

import (
	"chat-relay/contract"
	"context"
	"log/slog"
	"time"
)

// JanitorWorker periodically sweeps the connection registry with the
// liveness verifier, evicting rows whose transport session ended
// without a disconnect event ever reaching the relay. The verifier
// already performs the eviction; the janitor only drives the probes.
type JanitorWorker struct {
	log         *slog.Logger
	connections contract.IConnectionRepository
	verifier    contract.IVerifier
	interval    time.Duration
}

func NewJanitorWorker(log *slog.Logger, connections contract.IConnectionRepository,
	verifier contract.IVerifier, interval time.Duration) *JanitorWorker {
	return &JanitorWorker{log: log, connections: connections, verifier: verifier, interval: interval}
}

func (w *JanitorWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping janitor sweep")
			return nil
		case <-ticker.C:
			if err := w.sweep(ctx); err != nil {
				return err
			}
		}
	}
}

func (w *JanitorWorker) sweep(ctx context.Context) error {
	connections, err := w.connections.ListAll()
	if err != nil {
		return err
	}

	evicted := 0
	for _, connection := range connections {
		reachable, err := w.verifier.IsReachable(ctx, connection.ConnectionID)
		if err != nil {
			// Transient transport fault: leave the row alone, the next
			// sweep will retry it.
			w.log.Warn("liveness probe failed", "connection_id", connection.ConnectionID, "error", err)
			continue
		}
		if !reachable {
			evicted++
		}
	}
	if evicted > 0 {
		w.log.Info("janitor sweep complete", "probed", len(connections), "evicted", evicted)
	}
	return nil
}
