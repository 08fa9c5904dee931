package types

import (
	"fmt"

	goversion "github.com/hashicorp/go-version"
)

// BuildProtocolVersion is the version this build of the core speaks.
// Bus.NodeCreate rejects a peer whose requested ProtocolVersion constraint
// does not admit this value.
const BuildProtocolVersion = "1.0.0"

// Credentials is the opaque authentication token carried on a
// PeerConfiguration. The core never inspects it or passes it on —
// authentication policy is out of scope.
type Credentials []byte

// Namespace groups peers that are allowed to address one another. Two
// peers in different namespaces are never valid Transaction destinations
// of each other.
type Namespace string

// PeerConfiguration carries the fields this core actually needs to bring
// up a peer: identity, logging, and a protocol version. Destination-set
// conflict resolution is handled entirely by the Transaction protocol
// rather than a pluggable conflict relationship.
type PeerConfiguration struct {
	// Name identifies the peer for logging purposes.
	Name string

	// Namespace the peer belongs to.
	Namespace Namespace

	// Credentials authenticates the connecting caller. The core never
	// inspects it or passes it on — authentication policy is out of scope.
	Credentials Credentials

	// ProtocolVersion is a version constraint string (e.g. ">= 1.0, < 2.0")
	// checked against BuildProtocolVersion with hashicorp/go-version.
	ProtocolVersion string

	// Logger used by every component the peer owns. Bus.NodeCreate falls
	// back to the Bus's own logger when nil.
	Logger Logger
}

// ValidateProtocolVersion checks requested against BuildProtocolVersion,
// returning a ClassInvalid error when the build does not satisfy the
// requested constraint. An empty requested string is always accepted.
func ValidateProtocolVersion(requested string) error {
	if requested == "" {
		return nil
	}
	constraints, err := goversion.NewConstraint(requested)
	if err != nil {
		return WrapInvalid(fmt.Errorf("malformed protocol version constraint %q: %w", requested, err))
	}
	build, err := goversion.NewVersion(BuildProtocolVersion)
	if err != nil {
		return WrapFatal(fmt.Errorf("build protocol version %q does not parse: %w", BuildProtocolVersion, err))
	}
	if !constraints.Check(build) {
		return WrapInvalid(fmt.Errorf("build protocol version %s does not satisfy constraint %q", BuildProtocolVersion, requested))
	}
	return nil
}
