package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"chat-relay/moderation"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

// Router persists outgoing messages under the canonical conversation
// key and attempts immediate delivery when the receiver is connected.
// Persistence is the durability guarantee; the live push is a
// best-effort latency optimization on top of it.
type Router struct {
	connections contract.IConnectionRepository
	messages    contract.IMessageRepository
	pusher      contract.Pusher
	moderator   *moderation.Moderator
	log         *slog.Logger
}

func NewRouter(connections contract.IConnectionRepository, messages contract.IMessageRepository,
	pusher contract.Pusher, moderator *moderation.Moderator, log *slog.Logger) *Router {
	return &Router{
		connections: connections,
		messages:    messages,
		pusher:      pusher,
		moderator:   moderator,
		log:         log,
	}
}

// Send stores the message first, then tries the live push. A sender
// without a registry row is a protocol violation and nothing is
// persisted. A receiver whose connection turns out stale is evicted
// and the send still succeeds: the message is safely in the store.
func (r *Router) Send(ctx context.Context, senderConnectionID, receiverNickname, body string) (domain.Message, error) {
	sender, err := r.connections.GetByConnectionID(senderConnectionID)
	if err != nil {
		return domain.Message{}, err
	}
	if sender == nil {
		return domain.Message{}, apperrors.ErrNotConnected
	}

	censored := body
	var hits []string
	if r.moderator != nil {
		censored, hits = r.moderator.Censor(body)
	}
	if len(hits) > 0 {
		r.log.Info("message censored", "sender", sender.Nickname, "hits", len(hits))
	}

	info := whatlanggo.Detect(censored)
	message := domain.Message{
		ID:              uuid.New(),
		ConversationKey: domain.ConversationKey(sender.Nickname, receiverNickname),
		Sender:          sender.Nickname,
		Body:            censored,
		Lang:            info.Lang.Iso6391(),
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.messages.Store(message); err != nil {
		return domain.Message{}, err
	}

	receiver, err := r.connections.FindByNickname(receiverNickname)
	if err != nil {
		return domain.Message{}, err
	}
	if receiver == nil {
		return message, nil
	}

	payload, err := event.Encode(event.TypeMessage, event.MessageValue{
		Sender:  message.Sender,
		Message: message.Body,
	})
	if err != nil {
		return domain.Message{}, err
	}
	if pushErr := r.pusher.Push(ctx, receiver.ConnectionID, payload); pushErr != nil {
		if !errors.Is(pushErr, apperrors.ErrConnectionGone) {
			return domain.Message{}, pushErr
		}
		r.log.Debug("receiver gone, message kept for later retrieval",
			"receiver", receiverNickname, "connection_id", receiver.ConnectionID)
		if removeErr := r.connections.Remove(receiver.ConnectionID); removeErr != nil {
			return domain.Message{}, removeErr
		}
	}
	return message, nil
}

// History returns one page of the conversation between the requester
// and the target, newest first, with an opaque continuation cursor.
func (r *Router) History(ctx context.Context, requesterConnectionID, targetNickname string,
	limit int, cursor *string) ([]domain.Message, *string, error) {
	if targetNickname == "" {
		return nil, nil, apperrors.NewValidationError("targetNickname is required")
	}
	if limit <= 0 {
		return nil, nil, apperrors.NewValidationError("limit must be a positive bound, got %d", limit)
	}

	requester, err := r.connections.GetByConnectionID(requesterConnectionID)
	if err != nil {
		return nil, nil, err
	}
	if requester == nil {
		return nil, nil, apperrors.ErrNotConnected
	}

	key := domain.ConversationKey(requester.Nickname, targetNickname)
	return r.messages.History(key, limit, cursor)
}

// Search runs a full-text query against the same conversation
// partition History reads from.
func (r *Router) Search(ctx context.Context, requesterConnectionID, targetNickname, query string,
	limit int) ([]domain.Message, error) {
	if targetNickname == "" || query == "" {
		return nil, apperrors.NewValidationError("targetNickname and query are required")
	}
	if limit <= 0 {
		return nil, apperrors.NewValidationError("limit must be a positive bound, got %d", limit)
	}

	requester, err := r.connections.GetByConnectionID(requesterConnectionID)
	if err != nil {
		return nil, err
	}
	if requester == nil {
		return nil, apperrors.ErrNotConnected
	}

	key := domain.ConversationKey(requester.Nickname, targetNickname)
	return r.messages.Search(ctx, key, query, limit)
}
