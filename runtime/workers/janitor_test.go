package workers

import (
	"chat-relay/domain"
	"chat-relay/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestJanitor_Probes_Every_Row(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	connections := mocks.NewMockIConnectionRepository(ctrl)
	verifier := mocks.NewMockIVerifier(ctrl)

	rows := []domain.Connection{
		{ConnectionID: "conn-1", Nickname: "alice"},
		{ConnectionID: "conn-2", Nickname: "bob"},
	}
	connections.EXPECT().ListAll().Return(rows, nil).MinTimes(1)
	verifier.EXPECT().IsReachable(gomock.Any(), "conn-1").Return(true, nil).MinTimes(1)
	// The verifier already evicted conn-2; the janitor only counts it.
	verifier.EXPECT().IsReachable(gomock.Any(), "conn-2").Return(false, nil).MinTimes(1)

	janitor := NewJanitorWorker(slog.Default(), connections, verifier, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req.NoError(janitor.Run(ctx))
}

func TestJanitor_Skips_Rows_With_Transient_Probe_Failures(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	connections := mocks.NewMockIConnectionRepository(ctrl)
	verifier := mocks.NewMockIVerifier(ctrl)

	rows := []domain.Connection{
		{ConnectionID: "conn-1", Nickname: "alice"},
		{ConnectionID: "conn-2", Nickname: "bob"},
	}
	connections.EXPECT().ListAll().Return(rows, nil).MinTimes(1)
	// A probe error leaves the row alone and moves on to the next one.
	verifier.EXPECT().IsReachable(gomock.Any(), "conn-1").
		Return(false, fmt.Errorf("transport buffer full")).MinTimes(1)
	verifier.EXPECT().IsReachable(gomock.Any(), "conn-2").Return(true, nil).MinTimes(1)

	janitor := NewJanitorWorker(slog.Default(), connections, verifier, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	req.NoError(janitor.Run(ctx))
}

func TestJanitor_Returns_Registry_Errors_For_Restart(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	connections := mocks.NewMockIConnectionRepository(ctrl)
	verifier := mocks.NewMockIVerifier(ctrl)

	boom := fmt.Errorf("registry unavailable")
	connections.EXPECT().ListAll().Return(nil, boom)

	janitor := NewJanitorWorker(slog.Default(), connections, verifier, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	// An unreadable registry bubbles up so the supervisor restarts the
	// sweep loop.
	req.ErrorIs(janitor.Run(ctx), boom)
}
