package core

import (
	"context"

	"github.com/jabolina/go-bus/pkg/bus/active"
	"github.com/jabolina/go-bus/pkg/bus/definition"
	"github.com/jabolina/go-bus/pkg/bus/types"
)

// Peer wraps the Active lifecycle, a Queue and a Storage arena into a
// single externally-addressable unit: connect/disconnect, acquire/release
// a readable handle, send and receive. It carries a clock, a queue, a
// logger, and a cancellable context gating its background work, and
// nothing specific to cross-process transport since every peer it can
// address lives in the same process.
type Peer struct {
	name      string
	namespace types.Namespace
	tag       types.Sender
	active    *active.Active
	queue     *Queue
	storage   *Storage
	clock     *Clock
	log       types.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPeer builds a disconnected Peer in the given namespace. Call Connect
// before Acquire/Send/Recv will succeed.
func NewPeer(name string, namespace types.Namespace, log types.Logger) *Peer {
	if log == nil {
		log = definition.NewDefaultLogger(name)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Peer{
		name:      name,
		namespace: namespace,
		tag:       types.NextSender(),
		active:    active.New(),
		queue:     NewQueue(),
		storage:   NewStorage(),
		clock:     &Clock{},
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Tag is this peer's stable comparator tie-breaker, used as the Sender
// field on every Node it originates.
func (p *Peer) Tag() types.Sender {
	return p.tag
}

// Namespace returns the group this peer belongs to. Send refuses any
// destination peer outside of it.
func (p *Peer) Namespace() types.Namespace {
	return p.namespace
}

// Queue exposes the peer's own ordered queue, so a Transaction addressing
// this peer as a destination can stage/commit directly against it.
func (p *Peer) Queue() *Queue {
	return p.queue
}

// Done closes once Disconnect's drain has completed, so a caller running
// its own background work against this peer can select on it instead of
// polling Active's state directly.
func (p *Peer) Done() <-chan struct{} {
	return p.ctx.Done()
}

// Connect activates the peer, taking it from new to active(0).
func (p *Peer) Connect() error {
	if !p.active.Activate() {
		return types.WrapInvalid(errAlreadyConnected(p.name))
	}
	p.log.Debugf("peer %s connected", p.name)
	return nil
}

// Disconnect begins the deactivation of the peer and blocks until every
// outstanding Guard has been released and any queued content has been
// flushed from the queue, since the core has no separate caller thread to
// hand the drain off to.
func (p *Peer) Disconnect() {
	p.active.Deactivate()
	p.active.Drain(func() {
		p.cancel()
		for _, n := range p.queue.Flush() {
			n.Put()
		}
		p.log.Debugf("peer %s disconnected", p.name)
	})
}

// Acquire returns a handle that must be released exactly once, keeping
// the peer from completing Disconnect's drain until it is. Delegates
// straight to Active's own acquire/release contract.
func (p *Peer) Acquire() (*active.Guard, error) {
	g, ok := p.active.Acquire()
	if !ok {
		if state, _ := p.active.Snapshot(); state == active.StateNew {
			return nil, types.WrapNotConnected(errNotConnected(p.name))
		}
		return nil, types.WrapShuttingDown(errNotConnected(p.name))
	}
	return g, nil
}

// Send delivers content to this peer plus any additional destination
// peers, via a Transaction. The sending peer's own queue is always included
// as a destination so a locally originated message is visible to its own
// Recv loop too.
func (p *Peer) Send(ctx context.Context, content types.Content, destinations ...*Peer) error {
	g, err := p.Acquire()
	if err != nil {
		return err
	}
	defer g.Release()

	queues := make([]*Queue, 0, len(destinations)+1)
	queues = append(queues, p.queue)
	for _, d := range destinations {
		if d.namespace != p.namespace {
			return types.WrapInvalid(errCrossNamespace(p.name, d.name))
		}
		queues = append(queues, d.queue)
	}

	txn := NewTransaction(p.log)
	return txn.Send(ctx, p.clock, p.tag, content, queues)
}

// Recv blocks until the peer's queue is readable, then pops and returns
// the front node's content. The node is removed from the index before
// returning, so each entry is delivered to exactly one Recv call.
func (p *Peer) Recv(ctx context.Context) (types.Content, error) {
	g, err := p.Acquire()
	if err != nil {
		return types.Content{}, err
	}
	defer g.Release()

	if err := p.queue.WaitReadable(ctx); err != nil {
		return types.Content{}, err
	}

	node, _ := p.queue.Peek()
	if node == nil {
		return types.Content{}, types.WrapTransient(errSpuriousWake(p.name))
	}
	p.queue.Remove(node)
	content := node.Content
	p.storage.Set(node.Sender(), node.GetTimestamp(), content)
	node.Put()
	return content, nil
}

// FastRead dumps every entry this peer has delivered so far, reading
// directly from the committed log instead of waiting on a fresh round of
// ordering through the queue.
func (p *Peer) FastRead() []Entry {
	return p.storage.Get()
}
