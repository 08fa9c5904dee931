package core

import (
	"context"
	"errors"
	"testing"

	"github.com/jabolina/go-bus/pkg/bus/types"
	"go.uber.org/goleak"
)

func TestTransaction_SingleDestinationSkipsStaging(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue()
	clock := &Clock{}
	txn := NewTransaction(nil)

	content := types.Content{Operation: types.Command, Value: []byte("hello")}
	if err := txn.Send(context.Background(), clock, types.Sender(1), content, []*Queue{q}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	front, _ := q.Peek()
	if front == nil {
		t.Fatalf("expected a committed entry on the single destination")
	}
	if front.IsStaging() {
		t.Fatalf("single-destination commits must never stage")
	}
}

// TestTransaction_MulticastAgreesOnOneCommitTimestamp exercises two
// destination queues with very different local clocks: they must still
// converge on one final commit timestamp, applied to both, with no entry
// left staging.
func TestTransaction_MulticastAgreesOnOneCommitTimestamp(t *testing.T) {
	defer goleak.VerifyNone(t)

	q2 := NewQueue()
	q3 := NewQueue()
	q3.Sync(10) // Q3 starts far ahead, as in scenario S2

	clock := &Clock{}
	txn := NewTransaction(nil)

	content := types.Content{Operation: types.Command, Value: []byte("M1")}
	if err := txn.Send(context.Background(), clock, types.Sender(1), content, []*Queue{q2, q3}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	n2, _ := q2.Peek()
	n3, _ := q3.Peek()
	if n2 == nil || n3 == nil {
		t.Fatalf("expected both destinations to have a readable committed entry")
	}
	if n2.IsStaging() || n3.IsStaging() {
		t.Fatalf("committed entries must not remain staging")
	}
	if n2.GetTimestamp() != n3.GetTimestamp() {
		t.Fatalf("both destinations must agree on the same commit timestamp, got %d and %d", n2.GetTimestamp(), n3.GetTimestamp())
	}
	if n2.GetTimestamp()%2 != 0 {
		t.Fatalf("commit timestamp must be even, got %d", n2.GetTimestamp())
	}
}

func TestTransaction_RejectsEmptyDestinationSet(t *testing.T) {
	defer goleak.VerifyNone(t)

	txn := NewTransaction(nil)
	clock := &Clock{}
	content := types.Content{Operation: types.Command}
	err := txn.Send(context.Background(), clock, types.Sender(1), content, nil)
	if err == nil {
		t.Fatalf("expected an error for an empty destination set")
	}
	if !errors.Is(err, types.Invalid) {
		t.Fatalf("expected a ClassInvalid error, got %v", err)
	}
}

func TestTransaction_ConcurrentSendsPreserveTotalOrder(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewQueue()
	clockA := &Clock{}
	clockB := &Clock{}
	txn := NewTransaction(nil)

	done := make(chan error, 2)
	go func() {
		content := types.Content{Operation: types.Command, Value: []byte("from-a")}
		done <- txn.Send(context.Background(), clockA, types.Sender(1), content, []*Queue{q})
	}()
	go func() {
		content := types.Content{Operation: types.Command, Value: []byte("from-b")}
		done <- txn.Send(context.Background(), clockB, types.Sender(2), content, []*Queue{q})
	}()

	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	first, hasMore := q.Peek()
	if first == nil || !hasMore {
		t.Fatalf("expected two committed entries in the queue")
	}

	q.Remove(first)
	second, _ := q.Peek()
	if second == nil {
		t.Fatalf("expected a second committed entry behind the first")
	}
	if second.GetTimestamp() <= first.GetTimestamp() {
		t.Fatalf("expected strictly increasing commit timestamps, got %d then %d", first.GetTimestamp(), second.GetTimestamp())
	}
}
