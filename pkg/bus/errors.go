package bus

import "fmt"

func errPeerExists(name string) error {
	return fmt.Errorf("peer %s already registered", name)
}

func errPeerNotFound(name string) error {
	return fmt.Errorf("peer %s not found", name)
}
