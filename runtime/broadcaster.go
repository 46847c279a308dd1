package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// Broadcaster fans the full presence snapshot out to every live
// connection. Sending the entire list rather than a delta keeps clients
// eventually consistent even if they miss intermediate events, at the
// cost of O(n) payload and O(n) pushes per state change.
type Broadcaster struct {
	connections contract.IConnectionRepository
	pusher      contract.Pusher
	log         *slog.Logger
}

func NewBroadcaster(connections contract.IConnectionRepository, pusher contract.Pusher, log *slog.Logger) Broadcaster {
	return Broadcaster{connections: connections, pusher: pusher, log: log}
}

// Broadcast pushes the snapshot to every connection except the
// excluded one, concurrently. Fan-out is best-effort and isolated per
// recipient; all pushes are joined before Broadcast returns, so no
// invocation completes while deliveries are still in flight.
func (b Broadcaster) Broadcast(ctx context.Context, excludeConnectionID string) error {
	connections, err := b.connections.ListAll()
	if err != nil {
		return err
	}
	payload, err := snapshotPayload(connections)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for _, connection := range connections {
		if connection.ConnectionID == excludeConnectionID {
			continue
		}
		wg.Add(1)
		go func(connectionID string) {
			defer wg.Done()
			b.deliver(ctx, connectionID, payload)
		}(connection.ConnectionID)
	}
	wg.Wait()
	return nil
}

// SnapshotTo pushes the current snapshot to a single connection, used
// for the list-connections query.
func (b Broadcaster) SnapshotTo(ctx context.Context, connectionID string) error {
	connections, err := b.connections.ListAll()
	if err != nil {
		return err
	}
	payload, err := snapshotPayload(connections)
	if err != nil {
		return err
	}
	b.deliver(ctx, connectionID, payload)
	return nil
}

// deliver is one isolated push: a gone recipient is evicted from the
// registry, any other failure is logged. Neither outcome disturbs the
// remaining recipients.
func (b Broadcaster) deliver(ctx context.Context, connectionID string, payload []byte) {
	err := b.pusher.Push(ctx, connectionID, payload)
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrConnectionGone):
		b.log.Debug("evicting stale connection during fan-out", "connection_id", connectionID)
		if removeErr := b.connections.Remove(connectionID); removeErr != nil {
			b.log.Error("failed to evict stale connection", "connection_id", connectionID, "error", removeErr)
		}
	default:
		b.log.Error("presence push failed", "connection_id", connectionID, "error", err)
	}
}

func snapshotPayload(connections []domain.Connection) ([]byte, error) {
	clients := lo.Map(connections, func(c domain.Connection, _ int) event.Client {
		return event.Client{ConnectionID: c.ConnectionID, Nickname: c.Nickname}
	})
	return event.Encode(event.TypeClients, event.ClientsValue{Clients: clients})
}
