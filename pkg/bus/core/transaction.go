package core

import (
	"context"

	"github.com/jabolina/go-bus/pkg/bus/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// maxParallelDestinations bounds how many destination queues a single
// Transaction commits/rolls-back concurrently, via golang.org/x/sync's
// weighted semaphore, so a multicast to a very large destination set
// cannot spray an unbounded number of goroutines.
const maxParallelDestinations = 32

// staged pairs a destination queue with the node the transaction staged
// into it, one queue-lock call per local destination queue.
type staged struct {
	queue *Queue
	node  *Node
}

// Transaction delivers one logical message to a set of destination
// queues, implementing a stage-then-commit multicast protocol: every
// destination is staged with a provisional timestamp before any of them
// commits, so a single commit timestamp can be chosen that every
// destination agrees on.
type Transaction struct {
	log types.Logger
}

// NewTransaction builds a Transaction that logs through log. A nil log is
// accepted: Send then skips logging.
func NewTransaction(log types.Logger) *Transaction {
	return &Transaction{log: log}
}

// Send stages content on every destination queue, selects a commit
// timestamp, and commits on every destination. senderClock is the
// sending peer's own Lamport clock and senderTag is that peer's stable
// comparator tie-breaker.
//
// On any failure the node is removed from every queue it was staged on
// before the error is returned — no reader ever observes a partially
// staged transaction.
func (t *Transaction) Send(ctx context.Context, senderClock *Clock, senderTag types.Sender, content types.Content, destinations []*Queue) error {
	if len(destinations) == 0 {
		return types.WrapInvalid(errNoDestinations())
	}
	if err := ctx.Err(); err != nil {
		return types.WrapInterrupted(err)
	}

	if len(destinations) == 1 {
		node := NewNode(content.Operation, senderTag, nil)
		node.Content = content
		ts := destinations[0].CommitUnstaged(node)
		senderClock.Sync(ts)
		return nil
	}

	currentMax := senderClock.Value()
	stagedOn := make([]staged, 0, len(destinations))

	// Stage phase: sequential by necessity — queue i+1's ts_in depends on
	// queue i's returned staging timestamp.
	for _, q := range destinations {
		if err := ctx.Err(); err != nil {
			t.rollback(context.Background(), stagedOn)
			return types.WrapInterrupted(err)
		}
		node := NewNode(content.Operation, senderTag, nil)
		node.Content = content
		ts := q.Stage(node, currentMax)
		if ts > currentMax {
			currentMax = ts
		}
		stagedOn = append(stagedOn, staged{queue: q, node: node})
	}

	// Select commit timestamp: convert the last odd staging high-water to
	// the next even commit, then make sure it's not behind the sender's
	// own clock, and tick the sender's clock to allocate it uniquely.
	commitTS := currentMax + 1
	if sync := nextEven(senderClock.Value()); sync > commitTS {
		commitTS = sync
	}
	senderClock.Sync(commitTS)

	// Commit phase: commitTS is already fixed, so every destination can
	// be committed independently and concurrently.
	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(maxParallelDestinations)
	for _, s := range stagedOn {
		s := s
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			s.queue.CommitStaged(s.node, commitTS)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if t.log != nil {
			t.log.Errorf("transaction commit phase failed: %v", err)
		}
		t.rollback(context.Background(), stagedOn)
		return types.WrapTransient(err)
	}
	return nil
}

// rollback removes the transaction's node from every queue it was staged
// on, so a failed multicast leaves no partial delivery visible to any
// reader. Run with a background context: rollback itself must not be
// abandoned just because the caller's context was the thing that failed.
func (t *Transaction) rollback(ctx context.Context, stagedOn []staged) {
	g, _ := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(maxParallelDestinations)
	for _, s := range stagedOn {
		s := s
		g.Go(func() error {
			_ = sem.Acquire(ctx, 1)
			defer sem.Release(1)
			s.queue.Remove(s.node)
			return nil
		})
	}
	_ = g.Wait()
}
