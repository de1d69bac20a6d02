package identity

import "errors"

var (
	// ErrBadProtocolVersion is returned when an envelope's protocol_version
	// is not identity.ProtocolVersion.
	ErrBadProtocolVersion = errors.New("identity: unsupported protocol_version")
	// ErrTTLExpired is returned when an envelope's timeout_ms has elapsed.
	ErrTTLExpired = errors.New("identity: envelope ttl expired")
)
