package core

import (
	"context"
	"testing"
	"time"

	"github.com/jabolina/go-bus/pkg/bus/types"
	"go.uber.org/goleak"
)

func TestPeer_ConnectSendRecv(t *testing.T) {
	defer goleak.VerifyNone(t)

	sender := NewPeer("sender", "ns", nil)
	receiver := NewPeer("receiver", "ns", nil)
	if err := sender.Connect(); err != nil {
		t.Fatalf("connect sender: %v", err)
	}
	if err := receiver.Connect(); err != nil {
		t.Fatalf("connect receiver: %v", err)
	}
	defer sender.Disconnect()
	defer receiver.Disconnect()

	content := types.Content{Operation: types.Command, Value: []byte("hi")}
	if err := sender.Send(context.Background(), content, receiver); err != nil {
		t.Fatalf("send: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := receiver.Recv(ctx)
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if string(got.Value) != "hi" {
		t.Fatalf("expected value 'hi', got %q", got.Value)
	}

	history := receiver.FastRead()
	if len(history) != 1 {
		t.Fatalf("expected 1 entry in fast-read history, got %d", len(history))
	}
}

func TestPeer_SendBeforeConnectFails(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPeer("p", "ns", nil)
	content := types.Content{Operation: types.Command}
	if err := p.Send(context.Background(), content); err == nil {
		t.Fatalf("expected an error sending before Connect")
	}
}

func TestPeer_SendRejectsCrossNamespaceDestination(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := NewPeer("a", "ns-1", nil)
	b := NewPeer("b", "ns-2", nil)
	if err := a.Connect(); err != nil {
		t.Fatalf("connect a: %v", err)
	}
	if err := b.Connect(); err != nil {
		t.Fatalf("connect b: %v", err)
	}
	defer a.Disconnect()
	defer b.Disconnect()

	content := types.Content{Operation: types.Command}
	if err := a.Send(context.Background(), content, b); err == nil {
		t.Fatalf("expected a cross-namespace send to be rejected")
	}
}

func TestPeer_DisconnectDrainsBeforeReturning(t *testing.T) {
	defer goleak.VerifyNone(t)

	p := NewPeer("p", "ns", nil)
	if err := p.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}

	g, err := p.Acquire()
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	releasedBeforeDrain := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(releasedBeforeDrain)
		g.Release()
	}()

	p.Disconnect()
	select {
	case <-releasedBeforeDrain:
	default:
		t.Fatalf("Disconnect must not return before the outstanding guard is released")
	}
}
