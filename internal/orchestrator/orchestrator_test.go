package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"ictengine/pkg/logging"

	"github.com/stretchr/testify/require"
)

func orchLogger() *logging.ZapLogger { return logging.NewZapLogger("ERROR") }

func TestOrchestratorStopsComponentsInReverseOrder(t *testing.T) {
	orch := New(time.Second, orchLogger())

	var stopOrder []string
	for _, name := range []string{"a", "b", "c"} {
		n := name
		orch.Register(Component{
			Name: n,
			Run:  func(ctx context.Context) error { <-ctx.Done(); return nil },
			Stop: func(ctx context.Context) error { stopOrder = append(stopOrder, n); return nil },
		})
	}

	require.NoError(t, orch.Start(context.Background()))
	require.NoError(t, orch.Shutdown(context.Background()))
	require.NoError(t, orch.Wait())

	require.Equal(t, []string{"c", "b", "a"}, stopOrder)
}

func TestOrchestratorShutdownStopsOnDeadline(t *testing.T) {
	orch := New(20*time.Millisecond, orchLogger())

	var secondStopped bool
	orch.Register(Component{
		Name: "slow",
		Run:  func(ctx context.Context) error { <-ctx.Done(); return nil },
		Stop: func(ctx context.Context) error { time.Sleep(50 * time.Millisecond); return nil },
	})
	orch.Register(Component{
		Name: "fast",
		Run:  func(ctx context.Context) error { <-ctx.Done(); return nil },
		Stop: func(ctx context.Context) error { secondStopped = true; return nil },
	})

	require.NoError(t, orch.Start(context.Background()))
	_ = orch.Shutdown(context.Background())
	_ = orch.Wait()

	require.True(t, secondStopped)
}

func TestOrchestratorHealthyRequiresAllProbes(t *testing.T) {
	orch := New(time.Second, orchLogger())
	orch.Register(Component{Name: "ok", Healthy: func() bool { return true }})
	require.True(t, orch.Healthy())

	orch.Register(Component{Name: "down", Healthy: func() bool { return false }})
	require.False(t, orch.Healthy())
}

func TestOrchestratorWaitPropagatesComponentError(t *testing.T) {
	orch := New(time.Second, orchLogger())
	boom := errors.New("boom")
	orch.Register(Component{
		Name: "failing",
		Run:  func(ctx context.Context) error { return boom },
	})

	require.NoError(t, orch.Start(context.Background()))
	err := orch.Wait()
	require.ErrorIs(t, err, boom)
}
