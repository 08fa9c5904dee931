package bus

import (
	"context"
	"testing"
	"time"

	"github.com/jabolina/go-bus/pkg/bus/types"
	"go.uber.org/goleak"
)

func TestBus_CreateSendRecvDestroy(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := New(nil)
	defer b.Shutdown()

	if _, err := b.NodeCreate(types.PeerConfiguration{Name: "p1", Namespace: "default"}); err != nil {
		t.Fatalf("create p1: %v", err)
	}
	if _, err := b.NodeCreate(types.PeerConfiguration{Name: "p2", Namespace: "default"}); err != nil {
		t.Fatalf("create p2: %v", err)
	}

	content := types.Content{Operation: types.Command, Value: []byte("payload")}
	if err := b.Send(context.Background(), "p1", content, "p2"); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := b.Recv(ctx, "p2")
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(got.Value) != "payload" {
		t.Fatalf("expected 'payload', got %q", got.Value)
	}

	if err := b.NodeDestroy("p1"); err != nil {
		t.Fatalf("destroy p1: %v", err)
	}
	if _, ok := b.Lookup("p1"); ok {
		t.Fatalf("p1 must be deregistered after NodeDestroy")
	}
}

func TestBus_NodeCreateRejectsDuplicateName(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := New(nil)
	defer b.Shutdown()

	if _, err := b.NodeCreate(types.PeerConfiguration{Name: "dup", Namespace: "default"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := b.NodeCreate(types.PeerConfiguration{Name: "dup", Namespace: "default"}); err == nil {
		t.Fatalf("expected an error creating a peer with a name already in use")
	}
}

func TestBus_NodeCreateRejectsUnsatisfiableProtocolVersion(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := New(nil)
	defer b.Shutdown()

	_, err := b.NodeCreate(types.PeerConfiguration{Name: "p", Namespace: "default", ProtocolVersion: ">= 99.0"})
	if err == nil {
		t.Fatalf("expected an error for an unsatisfiable protocol version constraint")
	}
}

func TestBus_SendToUnknownDestinationFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	b := New(nil)
	defer b.Shutdown()

	if _, err := b.NodeCreate(types.PeerConfiguration{Name: "p1", Namespace: "default"}); err != nil {
		t.Fatalf("create p1: %v", err)
	}

	content := types.Content{Operation: types.Command}
	if err := b.Send(context.Background(), "p1", content, "ghost"); err == nil {
		t.Fatalf("expected an error sending to an unknown peer")
	}
}
