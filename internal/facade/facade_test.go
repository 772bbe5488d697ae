package facade

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/zcash-shielded-wallet/internal/walletdb"
)

func newTestHandle(t *testing.T) *Handle {
	t.Helper()
	dir, err := os.MkdirTemp("", "facade-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	db, err := walletdb.Open(context.Background(), &walletdb.Config{DataDir: dir, FileName: "wallet.db"})
	require.NoError(t, err)

	h := New(db)
	t.Cleanup(func() {
		h.Close()
		db.Close()
	})
	return h
}

func await[T any](t *testing.T, ch <-chan Result[T]) Result[T] {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for facade result")
		return Result[T]{}
	}
}

func TestHandleReportsNoHeightsForEmptyStore(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()

	r := await(t, h.GetTargetAndAnchorHeights(ctx))
	require.NoError(t, r.Err)
	require.False(t, r.Value.OK)
}

func TestHandleServesBackToBackQueuedCalls(t *testing.T) {
	h := newTestHandle(t)
	ctx := context.Background()
	_, err := h.db.InitAccounts(ctx, []string{"extfvk-0"}, func(k string) string { return "addr-0" })
	require.NoError(t, err)

	// Queue several balance reads back to back; since a single worker
	// goroutine drains the queue in order, none of this should race even
	// though every call returns before the corresponding query runs.
	var chans []<-chan Result[uint64]
	for i := 0; i < 5; i++ {
		chans = append(chans, h.GetBalanceAt(ctx, 0, 0))
	}
	for _, ch := range chans {
		r := await(t, ch)
		require.NoError(t, r.Err)
		require.Equal(t, uint64(0), r.Value)
	}
}

func TestHandleResultSurvivesCallerCancellation(t *testing.T) {
	h := newTestHandle(t)

	// A cancelled context must not stop the queued store call from
	// completing: the result channel still receives the outcome even
	// though this caller never looks at it again before the deadline.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	ch := h.GetTargetAndAnchorHeights(cancelled)
	r := await(t, ch)
	require.NoError(t, r.Err)
}
