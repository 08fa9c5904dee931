package core

import (
	"container/list"
	"sync/atomic"

	"github.com/jabolina/go-bus/pkg/bus/definition"
	"github.com/jabolina/go-bus/pkg/bus/types"
)

// link describes which of the three mutually exclusive linkage slots a
// Node currently occupies, one per lifecycle stage.
type link int32

const (
	linkNone link = iota
	linkQueued
	linkOffQueue
	linkRetiring
)

const (
	tsTypeBits  = 62
	tsTypeShift = tsTypeBits
	tsMask      = (uint64(1) << tsTypeBits) - 1
)

func packTsType(ts uint64, op types.Operation) uint64 {
	return (uint64(op)&0x3)<<tsTypeShift | (ts & tsMask)
}

func unpackTs(packed uint64) uint64 {
	return packed & tsMask
}

func unpackType(packed uint64) types.Operation {
	return types.Operation(packed >> tsTypeShift & 0x3)
}

// Node is a reference-counted queue entry carrying a (timestamp, sender)
// ordering key. The timestamp and type are packed into a single atomic
// word (top 2 bits = type) so GetType/GetTimestamp are lock-free queries,
// while the word is only ever written by whichever component currently
// holds the owning queue's lock (stage/commit) or exclusively owns the
// node (construction).
type Node struct {
	tsType atomic.Uint64
	sender types.Sender

	refcount  atomic.Int32
	onReclaim func(*Node)

	link link
	elem *list.Element // set by the Queue's ordered index while linkQueued
	next *Node          // singly linked when linkOffQueue or linkRetiring

	// Content is the opaque payload this node carries. The core never
	// interprets it beyond moving it between Send and Recv.
	Content types.Content
}

// NewNode constructs a node with refcount=1, timestamp=0, and no linkage.
// onReclaim is invoked by Put when the last reference drops; it must not
// be called while the node is linked into a queue's index — Put asserts
// non-linkage before invoking it.
func NewNode(op types.Operation, sender types.Sender, onReclaim func(*Node)) *Node {
	n := &Node{
		sender:    sender,
		onReclaim: onReclaim,
		link:      linkNone,
	}
	n.tsType.Store(packTsType(0, op))
	n.refcount.Store(1)
	return n
}

// GetType returns the node's type tag. Never mutates after construction.
func (n *Node) GetType() types.Operation {
	return unpackType(n.tsType.Load())
}

// GetTimestamp returns the node's current ordering timestamp.
func (n *Node) GetTimestamp() uint64 {
	return unpackTs(n.tsType.Load())
}

// Sender returns the node's stable sender tag, the comparator tie-breaker.
func (n *Node) Sender() types.Sender {
	return n.sender
}

// IsStaging reports whether the node's timestamp is odd: by convention,
// staging timestamps are always odd and committed timestamps are always
// even.
func (n *Node) IsStaging() bool {
	return n.GetTimestamp()%2 == 1
}

// IsQueued reports whether the node currently occupies the ordered-index
// linkage slot. Callers must hold the owning queue's lock.
func (n *Node) IsQueued() bool {
	return n.link == linkQueued
}

// setTimestamp overwrites the packed word's timestamp bits, preserving the
// type tag. Callers must hold the owning queue's lock: the timestamp
// monotonically increases across staging/commit events on a given queue.
func (n *Node) setTimestamp(ts uint64) {
	n.tsType.Store(packTsType(ts, n.GetType()))
}

// Get increments the reference count and returns n.
func (n *Node) Get() *Node {
	n.refcount.Add(1)
	return n
}

// Put decrements the reference count. On the transition to zero it asserts
// the node is not linked into any queue index, then runs onReclaim —
// deferred reclamation, so any lock-free reader still chasing the node
// through an old `front` snapshot has already finished before the count
// could reach zero (the queue only drops its own reference after a grace
// period; see Queue.drainRetired).
func (n *Node) Put() {
	if n.refcount.Add(-1) != 0 {
		return
	}
	if n.link == linkQueued {
		definition.LogInvariantViolation("node.Put", errStillLinked(n))
		return
	}
	if n.onReclaim != nil {
		n.onReclaim(n)
	}
}
