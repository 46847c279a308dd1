package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	apperrors "chat-relay/errors"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// nicknameRE is the full nickname alphabet. It excludes the
// conversation separator and the registry key separator, so derived
// keys are unambiguous.
var nicknameRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// Controller is the session lifecycle state machine. It is invoked
// once per inbound event; concurrent invocations share no in-process
// state and coordinate only through the durable repositories.
type Controller struct {
	connections contract.IConnectionRepository
	verifier    contract.IVerifier
	broadcaster contract.IBroadcaster
	router      *Router
	pusher      contract.Pusher
	validate    *validator.Validate
	log         *slog.Logger
}

func NewController(connections contract.IConnectionRepository, verifier contract.IVerifier,
	broadcaster contract.IBroadcaster, router *Router, pusher contract.Pusher, log *slog.Logger) *Controller {
	validate := validator.New()
	// Never fails: the tag name is fixed and the function is non-nil.
	_ = validate.RegisterValidation("nickname", func(fl validator.FieldLevel) bool {
		return nicknameRE.MatchString(fl.Field().String())
	})
	return &Controller{
		connections: connections,
		verifier:    verifier,
		broadcaster: broadcaster,
		router:      router,
		pusher:      pusher,
		validate:    validate,
		log:         log,
	}
}

// Dispatch routes one inbound event to its handler and returns the
// terminal status for the transport layer. A non-nil error is fatal
// for the invocation; recoverable conditions are echoed to the
// originating connection instead.
func (c *Controller) Dispatch(ctx context.Context, in domain.Inbound) (domain.Status, error) {
	switch in.Action {
	case domain.ActionConnect:
		return c.connect(ctx, in)
	case domain.ActionDisconnect:
		return c.disconnect(ctx, in)
	case domain.ActionGetClients:
		return c.getClients(ctx, in)
	case domain.ActionSendMessage:
		return c.sendMessage(ctx, in)
	case domain.ActionGetMessages:
		return c.getMessages(ctx, in)
	case domain.ActionSearchMessages:
		return c.searchMessages(ctx, in)
	default:
		c.log.Warn("unhandled action", "action", in.Action, "connection_id", in.ConnectionID)
		return domain.StatusInternal, apperrors.ErrUnhandledAction
	}
}

// connect arbitrates the nickname claim. An existing live holder wins;
// a stale holder is evicted by the verifier and the claim proceeds.
// The rejection is an opaque 403 either way.
func (c *Controller) connect(ctx context.Context, in domain.Inbound) (domain.Status, error) {
	nickname := strings.TrimSpace(in.Nickname)
	if nickname == "" {
		c.log.Info("connect rejected", "connection_id", in.ConnectionID, "reason", apperrors.ErrMissingNickname)
		return domain.StatusForbidden, nil
	}
	if !nicknameRE.MatchString(nickname) {
		c.log.Info("connect rejected", "connection_id", in.ConnectionID, "nickname", nickname,
			"reason", apperrors.ErrInvalidNickname)
		return domain.StatusForbidden, nil
	}

	existing, err := c.connections.FindByNickname(nickname)
	if err != nil {
		return domain.StatusInternal, err
	}
	if existing != nil {
		reachable, err := c.verifier.IsReachable(ctx, existing.ConnectionID)
		if err != nil {
			return domain.StatusInternal, err
		}
		if reachable {
			c.log.Info("connect rejected", "nickname", nickname, "holder", existing.ConnectionID,
				"reason", apperrors.ErrNicknameTaken)
			return domain.StatusForbidden, nil
		}
		// The stale row is already evicted; the claim goes through.
	}

	if err := c.connections.Put(in.ConnectionID, nickname); err != nil {
		return domain.StatusInternal, err
	}
	c.log.Info("connected", "connection_id", in.ConnectionID, "nickname", nickname)

	if err := c.broadcaster.Broadcast(ctx, in.ConnectionID); err != nil {
		return domain.StatusInternal, err
	}
	return domain.StatusOK, nil
}

// disconnect removes the row unconditionally and tells everyone left.
func (c *Controller) disconnect(ctx context.Context, in domain.Inbound) (domain.Status, error) {
	if err := c.connections.Remove(in.ConnectionID); err != nil {
		return domain.StatusInternal, err
	}
	c.log.Info("disconnected", "connection_id", in.ConnectionID)

	if err := c.broadcaster.Broadcast(ctx, in.ConnectionID); err != nil {
		return domain.StatusInternal, err
	}
	return domain.StatusOK, nil
}

func (c *Controller) getClients(ctx context.Context, in domain.Inbound) (domain.Status, error) {
	if err := c.broadcaster.SnapshotTo(ctx, in.ConnectionID); err != nil {
		return domain.StatusInternal, err
	}
	return domain.StatusOK, nil
}

func (c *Controller) sendMessage(ctx context.Context, in domain.Inbound) (domain.Status, error) {
	var req domain.SendMessageRequest
	if status, ok := c.decode(ctx, in, &req); !ok {
		return status, nil
	}

	if _, err := c.router.Send(ctx, in.ConnectionID, req.ReceiverNickname, req.Message); err != nil {
		return c.mapOperationError(ctx, in.ConnectionID, err)
	}
	return domain.StatusOK, nil
}

func (c *Controller) getMessages(ctx context.Context, in domain.Inbound) (domain.Status, error) {
	var req domain.GetMessagesRequest
	if status, ok := c.decode(ctx, in, &req); !ok {
		return status, nil
	}

	messages, cursor, err := c.router.History(ctx, in.ConnectionID, req.TargetNickname, req.Limit, req.PagingToken)
	if err != nil {
		return c.mapOperationError(ctx, in.ConnectionID, err)
	}

	payload, err := event.Encode(event.TypeHistory, event.HistoryValue{
		Messages:    toHistoryMessages(messages),
		PagingToken: cursor,
	})
	if err != nil {
		return domain.StatusInternal, err
	}
	return c.pushResult(ctx, in.ConnectionID, payload)
}

func (c *Controller) searchMessages(ctx context.Context, in domain.Inbound) (domain.Status, error) {
	var req domain.SearchMessagesRequest
	if status, ok := c.decode(ctx, in, &req); !ok {
		return status, nil
	}

	messages, err := c.router.Search(ctx, in.ConnectionID, req.TargetNickname, req.Query, req.Limit)
	if err != nil {
		return c.mapOperationError(ctx, in.ConnectionID, err)
	}

	payload, err := event.Encode(event.TypeMatches, event.MatchesValue{Messages: toHistoryMessages(messages)})
	if err != nil {
		return domain.StatusInternal, err
	}
	return c.pushResult(ctx, in.ConnectionID, payload)
}

// decode unmarshals and validates a body-carrying request. On failure
// the error is echoed back to the originating connection and the
// invocation terminates with 400 without becoming fatal: one bad frame
// must not disturb the handling of subsequent events.
func (c *Controller) decode(ctx context.Context, in domain.Inbound, req any) (domain.Status, bool) {
	if err := json.Unmarshal(in.Body, req); err != nil {
		c.echoError(ctx, in.ConnectionID, "BadRequest", "malformed body")
		return domain.StatusBadRequest, false
	}
	if err := c.validate.Struct(req); err != nil {
		c.echoError(ctx, in.ConnectionID, "BadRequest", err.Error())
		return domain.StatusBadRequest, false
	}
	return domain.StatusOK, true
}

// mapOperationError sorts a router failure into the recoverable and
// fatal halves of the taxonomy. Recoverable conditions are echoed and
// produce a terminal status; everything else propagates untouched.
func (c *Controller) mapOperationError(ctx context.Context, connectionID string, err error) (domain.Status, error) {
	switch {
	case errors.Is(err, apperrors.ErrNotConnected):
		c.echoError(ctx, connectionID, "NotConnected", err.Error())
		return domain.StatusForbidden, nil
	case apperrors.IsValidation(err):
		c.echoError(ctx, connectionID, "BadRequest", err.Error())
		return domain.StatusBadRequest, nil
	default:
		return domain.StatusInternal, err
	}
}

// echoError reports a recoverable condition to the sender on their own
// connection, best-effort. Other participants are unaffected.
func (c *Controller) echoError(ctx context.Context, connectionID, kind, message string) {
	payload, err := event.Encode(event.TypeError, event.ErrorValue{Kind: kind, Message: message})
	if err != nil {
		return
	}
	if pushErr := c.pusher.Push(ctx, connectionID, payload); pushErr != nil {
		c.log.Debug("error echo not delivered", "connection_id", connectionID, "error", pushErr)
	}
}

// pushResult delivers a query result back to the requester. A gone
// requester is evicted and the invocation still succeeds: the query
// had no side effects worth failing over.
func (c *Controller) pushResult(ctx context.Context, connectionID string, payload []byte) (domain.Status, error) {
	err := c.pusher.Push(ctx, connectionID, payload)
	switch {
	case err == nil:
		return domain.StatusOK, nil
	case errors.Is(err, apperrors.ErrConnectionGone):
		if removeErr := c.connections.Remove(connectionID); removeErr != nil {
			return domain.StatusInternal, removeErr
		}
		return domain.StatusOK, nil
	default:
		return domain.StatusInternal, err
	}
}

func toHistoryMessages(messages []domain.Message) []event.HistoryMessage {
	return lo.Map(messages, func(m domain.Message, _ int) event.HistoryMessage {
		return event.HistoryMessage{
			ID:        m.ID.String(),
			Sender:    m.Sender,
			Message:   m.Body,
			CreatedAt: m.CreatedAt,
		}
	})
}
