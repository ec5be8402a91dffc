package keycache

import "errors"

var (
	// ErrUnknownID is returned when the remote API reports success=false,
	// i.e. there is no account with the requested id.
	ErrUnknownID = errors.New("keycache: unknown player id")
	// ErrInvalidKey is returned when a stored or fetched PEM blob does not
	// decode to an ECDSA public key.
	ErrInvalidKey = errors.New("keycache: invalid public key encoding")
)
