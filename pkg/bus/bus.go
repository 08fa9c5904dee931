// Package bus is the external facade over pkg/bus/core: a capability-based,
// multicast interprocess message bus. It owns the registry of named peers
// and exposes the connect/disconnect/acquire/release/send/recv contract as
// a single-process peer registry, with no transport or quorum machinery of
// its own since every peer it manages lives in the same process.
package bus

import (
	"context"
	"sync"

	"github.com/jabolina/go-bus/pkg/bus/active"
	"github.com/jabolina/go-bus/pkg/bus/core"
	"github.com/jabolina/go-bus/pkg/bus/definition"
	"github.com/jabolina/go-bus/pkg/bus/types"
)

// Bus owns every named Peer created through it and validates the protocol
// version new peers are configured with.
type Bus struct {
	mu    sync.RWMutex
	peers map[string]*core.Peer
	log   types.Logger
}

// New returns an empty Bus, logging through log (a nil log falls back to
// the definition package's logrus-backed DefaultLogger).
func New(log types.Logger) *Bus {
	if log == nil {
		log = definition.NewDefaultLogger("bus")
	}
	return &Bus{
		peers: make(map[string]*core.Peer),
		log:   log,
	}
}

// NodeCreate registers and connects a new named peer, folding allocation
// and Connect into one call since the facade has no separate step for
// an unconnected peer to exist in.
func (b *Bus) NodeCreate(config types.PeerConfiguration) (*core.Peer, error) {
	if err := types.ValidateProtocolVersion(config.ProtocolVersion); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.peers[config.Name]; exists {
		return nil, types.WrapInvalid(errPeerExists(config.Name))
	}

	log := config.Logger
	if log == nil {
		log = b.log
	}
	p := core.NewPeer(config.Name, config.Namespace, log)
	if err := p.Connect(); err != nil {
		return nil, err
	}
	b.peers[config.Name] = p
	return p, nil
}

// NodeDestroy disconnects and deregisters a named peer, blocking until its
// drain completes.
func (b *Bus) NodeDestroy(name string) error {
	b.mu.Lock()
	p, ok := b.peers[name]
	if ok {
		delete(b.peers, name)
	}
	b.mu.Unlock()

	if !ok {
		return types.WrapInvalid(errPeerNotFound(name))
	}
	p.Disconnect()
	return nil
}

// Lookup returns the named peer, for callers that need to address it as a
// Send destination.
func (b *Bus) Lookup(name string) (*core.Peer, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	p, ok := b.peers[name]
	return p, ok
}

// Send is a convenience wrapper resolving destination names through the
// registry before delegating to the sending peer's own Send.
func (b *Bus) Send(ctx context.Context, from string, content types.Content, to ...string) error {
	b.mu.RLock()
	sender, ok := b.peers[from]
	if !ok {
		b.mu.RUnlock()
		return types.WrapInvalid(errPeerNotFound(from))
	}
	destinations := make([]*core.Peer, 0, len(to))
	for _, name := range to {
		p, ok := b.peers[name]
		if !ok {
			b.mu.RUnlock()
			return types.WrapInvalid(errPeerNotFound(name))
		}
		destinations = append(destinations, p)
	}
	b.mu.RUnlock()

	return sender.Send(ctx, content, destinations...)
}

// Recv is a convenience wrapper resolving a peer name before delegating to
// its own Recv.
func (b *Bus) Recv(ctx context.Context, name string) (types.Content, error) {
	p, ok := b.Lookup(name)
	if !ok {
		return types.Content{}, types.WrapInvalid(errPeerNotFound(name))
	}
	return p.Recv(ctx)
}

// Acquire returns a capability guard on the named peer, keeping it from
// completing a concurrent Disconnect's drain until released.
func (b *Bus) Acquire(name string) (*active.Guard, error) {
	p, ok := b.Lookup(name)
	if !ok {
		return nil, types.WrapInvalid(errPeerNotFound(name))
	}
	return p.Acquire()
}

// HandleRelease is the stub for the HANDLE_RELEASE entry of the ioctl
// dispatch surface: releasing a handle-layer capability reference belongs
// to the out-of-scope pool/handle allocator, so this only validates that
// name still resolves to a registered peer.
func (b *Bus) HandleRelease(name string) error {
	if _, ok := b.Lookup(name); !ok {
		return types.WrapInvalid(errPeerNotFound(name))
	}
	return nil
}

// SliceRelease is the stub for the SLICE_RELEASE entry of the ioctl
// dispatch surface: releasing a slice-layer buffer reference belongs to
// the out-of-scope pool/handle allocator, so this only validates that
// name still resolves to a registered peer.
func (b *Bus) SliceRelease(name string) error {
	if _, ok := b.Lookup(name); !ok {
		return types.WrapInvalid(errPeerNotFound(name))
	}
	return nil
}

// Shutdown destroys every registered peer, used for process-wide teardown.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	names := make([]string, 0, len(b.peers))
	for name := range b.peers {
		names = append(names, name)
	}
	b.mu.Unlock()

	for _, name := range names {
		_ = b.NodeDestroy(name)
	}
}
