//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"context"
	"reflect"
)

// Pusher delivers a payload to one live connection. Implementations
// must return errors.ErrConnectionGone (possibly wrapped) when the
// connection handle is no longer reachable, and a distinct error for
// any other delivery fault.
type Pusher interface {
	Push(ctx context.Context, connectionID string, payload []byte) error
}

// IConnectionRepository is the durable connection registry. Absent rows
// are reported as a nil connection, not an error.
type IConnectionRepository interface {
	Put(connectionID, nickname string) error
	Remove(connectionID string) error
	GetByConnectionID(connectionID string) (*domain.Connection, error)
	FindByNickname(nickname string) (*domain.Connection, error)
	ListAll() ([]domain.Connection, error)
}

// IMessageRepository is the durable, append-only message log plus its
// search index.
type IMessageRepository interface {
	Store(message domain.Message) error
	History(conversationKey string, limit int, cursor *string) ([]domain.Message, *string, error)
	Search(ctx context.Context, conversationKey, query string, limit int) ([]domain.Message, error)
}

// IVerifier arbitrates reconnect races by probing a recorded
// connection with a content-free push.
type IVerifier interface {
	IsReachable(ctx context.Context, connectionID string) (bool, error)
}

// IBroadcaster fans the presence snapshot out to live connections.
type IBroadcaster interface {
	Broadcast(ctx context.Context, excludeConnectionID string) error
	SnapshotTo(ctx context.Context, connectionID string) error
}

// IDispatcher is the boundary the transport layer talks to: one
// inbound event in, one terminal status out.
type IDispatcher interface {
	Dispatch(ctx context.Context, in domain.Inbound) (domain.Status, error)
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself: supervision, restart, and panic
// recovery belong to the Supervisor.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
