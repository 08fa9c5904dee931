package active

import "fmt"

func errNotDrained(count int64) error {
	return fmt.Errorf("destroy called with count=%d, expected DRAINED(%d)", count, DRAINED)
}
