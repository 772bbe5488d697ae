// Package facade wraps the synchronous Store behind a cooperative,
// non-blocking handle: every public call returns as soon as its work is
// queued, with a channel the caller reads the eventual result from,
// while the actual SQL work runs on a dedicated background goroutine one
// call at a time.
package facade

import (
	"context"

	"github.com/Klingon-tech/zcash-shielded-wallet/internal/walletdb"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/logging"
	"github.com/Klingon-tech/zcash-shielded-wallet/pkg/wallet"
)

// Result carries the outcome of one offloaded store call: exactly one
// of Value/Err is meaningful, matching a typical (T, error) return.
type Result[T any] struct {
	Value T
	Err   error
}

// Handle fronts one *walletdb.DB with a single worker goroutine reading
// from a request queue buffered to 64 calls, giving FIFO ordering for
// calls made against this handle and no ordering guarantee between
// handles sharing the same underlying DB. The queue is bounded: while 64
// calls are already pending, a further call blocks its caller until the
// worker takes one off the queue.
type Handle struct {
	db    *walletdb.DB
	log   *logging.Logger
	queue chan func()
	done  chan struct{}
}

// New starts the background worker and returns a handle fronting db.
// Close must be called to stop the worker once the handle is no longer
// needed.
func New(db *walletdb.DB) *Handle {
	h := &Handle{
		db:    db,
		log:   logging.GetDefault().Component("facade"),
		queue: make(chan func(), 64),
		done:  make(chan struct{}),
	}
	go h.run()
	h.log.Info("facade worker started")
	return h
}

func (h *Handle) run() {
	for {
		select {
		case job := <-h.queue:
			job()
		case <-h.done:
			for {
				select {
				case job := <-h.queue:
					job()
				default:
					return
				}
			}
		}
	}
}

// Close signals the worker to stop. Jobs already queued when the worker
// sees the signal still run to completion before the worker goroutine
// exits; Close does not wait for that to happen. A call made after the
// worker has exited is never run, so its result channel never receives.
func (h *Handle) Close() {
	close(h.done)
}

// submit schedules fn on the worker and returns a channel carrying its
// result. fn receives the caller's ctx with its cancellation and
// deadline stripped, so cancelling ctx never stops fn: the store
// operation it performs still runs to completion so the store's own
// invariants are never left partial.
func submit[T any](h *Handle, ctx context.Context, fn func(ctx context.Context) (T, error)) <-chan Result[T] {
	detached := context.WithoutCancel(ctx)
	resultCh := make(chan Result[T], 1)
	h.queue <- func() {
		value, err := fn(detached)
		if err != nil {
			h.log.Error("offloaded store call failed", "error", err)
		}
		resultCh <- Result[T]{Value: value, Err: err}
	}
	return resultCh
}

// AdvanceByBlock offloads walletdb.DB.AdvanceByBlock.
func (h *Handle) AdvanceByBlock(ctx context.Context, block wallet.PrunedBlock, witnesses map[walletdb.NoteKey][]byte) <-chan Result[struct{}] {
	return submit(h, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.db.AdvanceByBlock(ctx, block, witnesses)
	})
}

// RewindToHeight offloads walletdb.DB.RewindToHeight.
func (h *Handle) RewindToHeight(ctx context.Context, height uint32, opts walletdb.RewindOptions) <-chan Result[struct{}] {
	return submit(h, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.db.RewindToHeight(ctx, height, opts)
	})
}

// GetBalanceAt offloads walletdb.DB.GetBalanceAt.
func (h *Handle) GetBalanceAt(ctx context.Context, account uint32, anchorHeight uint32) <-chan Result[uint64] {
	return submit(h, ctx, func(ctx context.Context) (uint64, error) {
		return h.db.GetBalanceAt(ctx, account, anchorHeight)
	})
}

// GetTargetAndAnchorHeights offloads walletdb.DB.GetTargetAndAnchorHeights.
func (h *Handle) GetTargetAndAnchorHeights(ctx context.Context) <-chan Result[TargetAnchor] {
	return submit(h, ctx, func(ctx context.Context) (TargetAnchor, error) {
		target, anchor, ok, err := h.db.GetTargetAndAnchorHeights(ctx)
		return TargetAnchor{Target: target, Anchor: anchor, OK: ok}, err
	})
}

// TargetAnchor is the result shape for GetTargetAndAnchorHeights, since
// Result[T] carries exactly one value alongside the error.
type TargetAnchor struct {
	Target uint32
	Anchor uint32
	OK     bool
}

// StoreSentTx offloads walletdb.DB.StoreSentTx.
func (h *Handle) StoreSentTx(ctx context.Context, tx wallet.Transaction, sent []wallet.SentNote) <-chan Result[struct{}] {
	return submit(h, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.db.StoreSentTx(ctx, tx, sent)
	})
}

// StoreReceivedTx offloads walletdb.DB.StoreReceivedTx.
func (h *Handle) StoreReceivedTx(ctx context.Context, tx wallet.Transaction, received []wallet.ReceivedNote) <-chan Result[struct{}] {
	return submit(h, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, h.db.StoreReceivedTx(ctx, tx, received)
	})
}
