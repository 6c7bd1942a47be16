package wallet

import (
	"context"
	"errors"
)

// ErrDeclined is the structured decline signal: the user cancelled a
// connection or signing request at the wallet. Implementations must return
// it (wrapped or bare) instead of encoding the decline in message text.
var ErrDeclined = errors.New("declined by user")

// ErrUnsupported marks an address accessor the installed extension version
// does not provide; the session moves on to the next probe.
var ErrUnsupported = errors.New("accessor unsupported")

// AddressProbe is one way of asking the extension for its active address.
// Extensions expose several across API generations; probes are tried in
// order until one resolves.
type AddressProbe struct {
	Name    string
	Resolve func(ctx context.Context) (string, error)
}

// Extension is the boundary to the user-controlled signing agent. Private
// keys never cross it: the core hands over an unsigned transaction envelope
// and receives a signed one back.
type Extension interface {
	// Available reports whether the extension is installed and reachable.
	Available(ctx context.Context) bool
	// RequestAccess asks the user to grant this origin access. A refusal
	// is reported as ErrDeclined.
	RequestAccess(ctx context.Context) error
	// AddressProbes returns the address accessors, newest first.
	AddressProbes() []AddressProbe
	// SignTransaction signs a base64 transaction envelope for the given
	// network. A refusal is reported as ErrDeclined.
	SignTransaction(ctx context.Context, envelope, networkPassphrase string) (string, error)
}
