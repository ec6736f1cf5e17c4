package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/cephadmd/pkg/errs"
	"github.com/cuemby/cephadmd/pkg/inventory"
	"github.com/cuemby/cephadmd/pkg/kvstore"
	"github.com/cuemby/cephadmd/pkg/types"
)

// fakeTransport is an in-memory Transport for exercising the Executor's
// error classification and offline-tracking without a network.
type fakeTransport struct {
	fail    map[string]bool
	code    map[string]int
	calls   []string
	closed  []string
}

func (f *fakeTransport) Run(_ context.Context, host *types.Host, entity, command string, args []string, opts RunOptions) (Result, error) {
	f.calls = append(f.calls, host.Hostname)
	if f.fail[host.Hostname] {
		return Result{}, context.DeadlineExceeded
	}
	return Result{Code: f.code[host.Hostname]}, nil
}

func (f *fakeTransport) Close(hostname string) { f.closed = append(f.closed, hostname) }

func newTestExecutor(t *testing.T, ft *fakeTransport) *Executor {
	t.Helper()
	store, err := kvstore.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	inv, err := inventory.New(store)
	require.NoError(t, err)
	_, err = inv.Add("h1", "10.0.0.1")
	require.NoError(t, err)
	return New(ft, inv, 5*time.Second)
}

func TestRunSuccessMarksHostOnline(t *testing.T) {
	ft := &fakeTransport{fail: map[string]bool{}, code: map[string]int{}}
	exec := newTestExecutor(t, ft)

	_, err := exec.Run(context.Background(), &types.Host{Hostname: "h1"}, "mon.a", "unit-install", nil, RunOptions{})
	require.NoError(t, err)
	require.Empty(t, exec.OfflineHosts())
}

func TestRunConnectFailureIsHostUnreachable(t *testing.T) {
	ft := &fakeTransport{fail: map[string]bool{"h1": true}, code: map[string]int{}}
	exec := newTestExecutor(t, ft)

	_, err := exec.Run(context.Background(), &types.Host{Hostname: "h1"}, "mon.a", "unit-install", nil, RunOptions{})
	require.True(t, errs.Is(err, errs.HostUnreachable))
	require.True(t, exec.OfflineHosts()["h1"])
}

func TestRunNonZeroExitIsAgentError(t *testing.T) {
	ft := &fakeTransport{fail: map[string]bool{}, code: map[string]int{"h1": 1}}
	exec := newTestExecutor(t, ft)

	_, err := exec.Run(context.Background(), &types.Host{Hostname: "h1"}, "mon.a", "unit-install", nil, RunOptions{})
	require.True(t, errs.Is(err, errs.AgentError))
}

func TestRunAllowErrorSuppressesAgentError(t *testing.T) {
	ft := &fakeTransport{fail: map[string]bool{}, code: map[string]int{"h1": 1}}
	exec := newTestExecutor(t, ft)

	res, err := exec.Run(context.Background(), &types.Host{Hostname: "h1"}, "mon.a", "unit-install", nil, RunOptions{AllowError: true})
	require.NoError(t, err)
	require.Equal(t, 1, res.Code)
}
