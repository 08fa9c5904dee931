package definition

import (
	promlog "github.com/prometheus/common/log"
)

// LogInvariantViolation logs an internal invariant violation (the
// ClassFatal error class) through prometheus/common/log directly, rather
// than threading a Logger interface through every internal assertion.
// Used by active and core for assertions that should never fire in a
// correct build but must still be surfaced and logged if they do.
func LogInvariantViolation(component string, err error) {
	promlog.Errorf("invariant violation in %s: %v", component, err)
}
