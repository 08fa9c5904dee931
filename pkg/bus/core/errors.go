package core

import "fmt"

func errStillLinked(n *Node) error {
	return fmt.Errorf("node sender=%s timestamp=%d put to zero refs while still linked", n.Sender(), n.GetTimestamp())
}

func errNoDestinations() error {
	return fmt.Errorf("transaction has no destination queues")
}

func errAlreadyConnected(name string) error {
	return fmt.Errorf("peer %s is already connected", name)
}

func errNotConnected(name string) error {
	return fmt.Errorf("peer %s is not connected", name)
}

func errSpuriousWake(name string) error {
	return fmt.Errorf("peer %s woke for a readable queue with no front node", name)
}

func errCrossNamespace(from, to string) error {
	return fmt.Errorf("peer %s cannot send to peer %s: different namespaces", from, to)
}
