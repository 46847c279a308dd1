package runtime_test

import (
	apperrors "chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/runtime"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestVerifier_Reachable_When_Ping_Lands(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	connections := mocks.NewMockIConnectionRepository(ctrl)
	pusher := mocks.NewMockPusher(ctrl)

	pusher.EXPECT().
		Push(gomock.Any(), "conn-1", []byte(`{"type":"ping"}`)).
		Return(nil)

	verifier := runtime.NewVerifier(connections, pusher, slog.Default())

	reachable, err := verifier.IsReachable(context.Background(), "conn-1")
	req.NoError(err)
	req.True(reachable)
}

func TestVerifier_Evicts_Gone_Connection(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	connections := mocks.NewMockIConnectionRepository(ctrl)
	pusher := mocks.NewMockPusher(ctrl)

	// Given a push failing with the gone signal
	pusher.EXPECT().
		Push(gomock.Any(), "conn-1", gomock.Any()).
		Return(fmt.Errorf("%w: peer closed", apperrors.ErrConnectionGone))

	// Then the stale row is removed on the spot
	connections.EXPECT().Remove("conn-1").Return(nil)

	verifier := runtime.NewVerifier(connections, pusher, slog.Default())

	reachable, err := verifier.IsReachable(context.Background(), "conn-1")
	req.NoError(err)
	req.False(reachable)
}

func TestVerifier_Propagates_Other_Push_Errors(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	connections := mocks.NewMockIConnectionRepository(ctrl)
	pusher := mocks.NewMockPusher(ctrl)

	boom := fmt.Errorf("transport buffer full")
	pusher.EXPECT().
		Push(gomock.Any(), "conn-1", gomock.Any()).
		Return(boom)

	verifier := runtime.NewVerifier(connections, pusher, slog.Default())

	// A transient fault must not evict a live participant.
	reachable, err := verifier.IsReachable(context.Background(), "conn-1")
	req.ErrorIs(err, boom)
	req.False(reachable)
}

func TestVerifier_Surfaces_Eviction_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	connections := mocks.NewMockIConnectionRepository(ctrl)
	pusher := mocks.NewMockPusher(ctrl)

	pusher.EXPECT().
		Push(gomock.Any(), "conn-1", gomock.Any()).
		Return(apperrors.ErrConnectionGone)
	removeErr := fmt.Errorf("registry unavailable")
	connections.EXPECT().Remove("conn-1").Return(removeErr)

	verifier := runtime.NewVerifier(connections, pusher, slog.Default())

	_, err := verifier.IsReachable(context.Background(), "conn-1")
	req.ErrorIs(err, removeErr)
}
