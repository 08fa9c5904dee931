package core

import (
	"testing"

	"github.com/jabolina/go-bus/pkg/bus/types"
	"go.uber.org/goleak"
)

func TestNode_PackedTimestampAndTypeRoundtrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	n := NewNode(types.Query, types.Sender(7), nil)
	if n.GetType() != types.Query {
		t.Fatalf("expected type Query, got %v", n.GetType())
	}
	if n.GetTimestamp() != 0 {
		t.Fatalf("expected initial timestamp 0, got %d", n.GetTimestamp())
	}

	n.setTimestamp(11)
	if n.GetTimestamp() != 11 {
		t.Fatalf("expected timestamp 11, got %d", n.GetTimestamp())
	}
	if n.GetType() != types.Query {
		t.Fatalf("setTimestamp must preserve type, got %v", n.GetType())
	}
	if !n.IsStaging() {
		t.Fatalf("odd timestamp 11 must be staging")
	}

	n.setTimestamp(12)
	if n.IsStaging() {
		t.Fatalf("even timestamp 12 must not be staging")
	}
}

func TestNode_GetPutRefcount(t *testing.T) {
	defer goleak.VerifyNone(t)

	reclaimed := false
	n := NewNode(types.Command, types.Sender(1), func(*Node) { reclaimed = true })
	n.Get()
	n.Put()
	if reclaimed {
		t.Fatalf("node must not be reclaimed while a reference remains")
	}
	n.Put()
	if !reclaimed {
		t.Fatalf("node must be reclaimed once refcount reaches zero")
	}
}

func TestNode_PutWhileLinkedDoesNotReclaim(t *testing.T) {
	defer goleak.VerifyNone(t)

	reclaimed := false
	n := NewNode(types.Command, types.Sender(1), func(*Node) { reclaimed = true })
	q := NewQueue()
	q.insert(n)
	n.Put()
	if reclaimed {
		t.Fatalf("a linked node reaching refcount zero must not reclaim (invariant violation logged instead)")
	}
}
