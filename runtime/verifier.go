package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"context"
	"errors"
	"log/slog"
)

// Verifier probes a recorded connection with a content-free ping to
// decide whether its transport session is still alive. It is the
// arbiter for reconnect races: a reachable holder keeps its nickname,
// an unreachable one is evicted on the spot.
type Verifier struct {
	connections contract.IConnectionRepository
	pusher      contract.Pusher
	log         *slog.Logger
}

func NewVerifier(connections contract.IConnectionRepository, pusher contract.Pusher, log *slog.Logger) Verifier {
	return Verifier{connections: connections, pusher: pusher, log: log}
}

// IsReachable pushes the ping probe. A gone connection is removed from
// the registry as a side effect, so a stale entry discovered here is
// not left to rot. Any delivery error other than the gone signal
// propagates: it may be a transient transport fault, and masking it as
// "unreachable" would wrongly evict a live participant.
func (v Verifier) IsReachable(ctx context.Context, connectionID string) (bool, error) {
	err := v.pusher.Push(ctx, connectionID, event.Ping)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, apperrors.ErrConnectionGone) {
		v.log.Debug("evicting stale connection", "connection_id", connectionID)
		if removeErr := v.connections.Remove(connectionID); removeErr != nil {
			return false, removeErr
		}
		return false, nil
	}
	return false, err
}
