package core

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"

	"github.com/jabolina/go-bus/pkg/bus/types"
)

// retireGrace is how many queue-lock acquisitions a removed node survives
// on the retirement list before its reference is actually dropped. This
// grace period is enough given every mutator already serializes on the
// queue lock, so the only thing that needs protecting is a concurrent
// lock-free reader still chasing a `front` snapshot taken just before the
// removal.
const retireGrace = 2

type retiredNode struct {
	node    *Node
	atEpoch uint64
}

// Queue is a per-peer ordered container with a local Lamport clock, an
// ordered index keyed by (timestamp, sender), and a cached front pointer
// observable lock-free.
type Queue struct {
	mu    sync.Mutex
	clock uint64
	items *list.List // sorted ascending by (timestamp, sender)

	front atomic.Pointer[Node]

	// wake is signaled (non-blocking, best-effort) whenever front
	// transitions from nil to non-nil, waking exactly one waiter per
	// signal — the channel-recv semantics naturally implement "wake one".
	wake chan struct{}

	epoch   uint64
	retired []retiredNode
}

// NewQueue returns an empty queue with clock=0.
func NewQueue() *Queue {
	return &Queue{
		items: list.New(),
		wake:  make(chan struct{}, 1),
	}
}

func compareKey(ts1 uint64, s1 types.Sender, ts2 uint64, s2 types.Sender) int {
	if ts1 != ts2 {
		if ts1 < ts2 {
			return -1
		}
		return 1
	}
	if s1 != s2 {
		if s1 < s2 {
			return -1
		}
		return 1
	}
	return 0
}

// drainRetired flushes any retired node whose grace period has elapsed,
// dropping the queue's strong reference via Put. Called at the top of
// every lock-held operation, so non-blocking lock-free readers that
// snapshotted `front` just before a removal always finish their read
// before the node's last reference is counted down.
func (q *Queue) drainRetired() {
	q.epoch++
	kept := q.retired[:0]
	for _, r := range q.retired {
		if q.epoch-r.atEpoch >= retireGrace {
			r.node.link = linkNone
			r.node.Put()
		} else {
			kept = append(kept, r)
		}
	}
	q.retired = kept
}

func (q *Queue) retire(n *Node) {
	n.link = linkRetiring
	q.retired = append(q.retired, retiredNode{node: n, atEpoch: q.epoch})
}

// insert places node into the sorted index. Caller holds q.mu.
func (q *Queue) insert(n *Node) {
	ts := n.GetTimestamp()
	sender := n.Sender()
	for e := q.items.Back(); e != nil; e = e.Prev() {
		other := e.Value.(*Node)
		if compareKey(other.GetTimestamp(), other.Sender(), ts, sender) <= 0 {
			n.elem = q.items.InsertAfter(n, e)
			n.link = linkQueued
			return
		}
	}
	n.elem = q.items.PushFront(n)
	n.link = linkQueued
}

// removeLocked detaches node from the index, if linked. Caller holds q.mu.
func (q *Queue) removeLocked(n *Node) {
	if n.link == linkQueued && n.elem != nil {
		q.items.Remove(n.elem)
	}
	n.elem = nil
}

// refreshFrontLocked recomputes the published front pointer. Because the
// index is globally sorted by the (timestamp, sender) comparator, "no
// earlier staging entry exists" is automatically true whenever the
// leftmost entry itself is not staging — checking just that one entry is
// sufficient, no scan of the whole index is needed.
func (q *Queue) refreshFrontLocked() (becameReadable bool) {
	wasReadable := q.front.Load() != nil
	var next *Node
	if e := q.items.Front(); e != nil {
		candidate := e.Value.(*Node)
		if !candidate.IsStaging() {
			next = candidate
		}
	}
	q.front.Store(next)
	becameReadable = !wasReadable && next != nil
	if becameReadable {
		select {
		case q.wake <- struct{}{}:
		default:
		}
	}
	return becameReadable
}

// Stage places node into the index at a provisional (odd) timestamp and
// advances the queue clock to match. Takes q.mu itself. The queue takes
// its own reference on node while it is linked. Returns the assigned
// staging timestamp.
//
// ts_out = round_up_to_next_odd(max(clock, tsIn)) — the max is taken
// first and the rounding applied to that result, not the other way
// around; see DESIGN.md for the worked examples that pin down this
// ordering.
func (q *Queue) Stage(node *Node, tsIn uint64) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drainRetired()

	tsOut := roundUpOdd(max64(q.clock, tsIn))
	q.clock = tsOut
	node.setTimestamp(tsOut)
	node.Get()
	q.insert(node)
	q.refreshFrontLocked()
	return tsOut
}

// CommitStaged moves a previously staged node to its final, even commit
// timestamp. Precondition: node is currently staged in this queue.
// Returns whether the node is now the queue's front, so a caller driving
// a receive loop knows whether to wake immediately.
func (q *Queue) CommitStaged(node *Node, tsCommit uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drainRetired()

	q.removeLocked(node)
	node.setTimestamp(tsCommit)
	q.insert(node)
	if tsCommit > q.clock {
		q.clock = tsCommit
	}
	q.refreshFrontLocked()
	return q.front.Load() == node
}

// CommitUnstaged is the single-destination shortcut: allocate a fresh even
// timestamp from this queue's own clock and insert the node directly,
// skipping the staging round entirely.
func (q *Queue) CommitUnstaged(node *Node) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drainRetired()

	ts := q.tickLocked()
	node.setTimestamp(ts)
	node.Get()
	q.insert(node)
	q.refreshFrontLocked()
	return ts
}

// Remove detaches node from the index regardless of staging/committed
// state, e.g. to roll back a failed transaction's partial staging.
// Returns whether a previously-unreadable queue became readable — this
// can happen when the removed node was a staging entry blocking a
// committed follower, in which case the follower wakes once the blocker
// is gone.
func (q *Queue) Remove(node *Node) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drainRetired()

	q.removeLocked(node)
	woke := q.refreshFrontLocked()
	q.retire(node)
	return woke
}

// Peek returns the current front node, if any, and whether further
// entries exist beyond it (for batched drain loops).
func (q *Queue) Peek() (node *Node, hasMore bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drainRetired()

	n := q.front.Load()
	if n == nil {
		return nil, false
	}
	hasMore = n.elem != nil && n.elem.Next() != nil
	return n, hasMore
}

// Flush drains every node from the index into the returned slice as
// off-queue links; the caller disposes of them (Put) outside the lock.
func (q *Queue) Flush() []*Node {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.drainRetired()

	out := make([]*Node, 0, q.items.Len())
	for e := q.items.Front(); e != nil; e = e.Next() {
		n := e.Value.(*Node)
		n.elem = nil
		n.link = linkOffQueue
		out = append(out, n)
	}
	q.items.Init()
	q.front.Store(nil)
	return out
}

// IsReadable is a lock-free read of the published front pointer.
func (q *Queue) IsReadable() bool {
	return q.front.Load() != nil
}

// WaitReadable blocks until IsReadable() is true or ctx is cancelled,
// re-checking the predicate on every wakeup rather than trusting that a
// single wake signal means the predicate still holds.
func (q *Queue) WaitReadable(ctx context.Context) error {
	for {
		if q.IsReadable() {
			return nil
		}
		select {
		case <-q.wake:
			continue
		case <-ctx.Done():
			return types.WrapInterrupted(ctx.Err())
		}
	}
}

// tickLocked advances the clock to the next even value strictly greater
// than its current one. A plain "+2" would preserve parity instead of
// fixing it, which breaks the invariant once the clock was last left odd
// by a Stage call — nextEven(clock+1) always lands on the next even tick
// regardless of the clock's current parity.
func (q *Queue) tickLocked() uint64 {
	q.clock = nextEven(q.clock + 1)
	return q.clock
}

// Tick advances the local clock to the next even value strictly greater
// than its current one and returns it.
func (q *Queue) Tick() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.tickLocked()
}

// Sync max-merges an externally observed even timestamp into the local
// clock and returns the resulting value.
func (q *Queue) Sync(tsEven uint64) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if tsEven > q.clock {
		q.clock = tsEven
	}
	return q.clock
}

// Clock returns a snapshot of the local clock under lock.
func (q *Queue) Clock() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.clock
}

func roundUpOdd(ts uint64) uint64 {
	if ts%2 == 0 {
		return ts + 1
	}
	return ts
}

func nextEven(ts uint64) uint64 {
	if ts%2 == 1 {
		return ts + 1
	}
	return ts
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}
