package world

import "errors"

// ErrNotFound is returned by Storage.GetChunk when coord has no backing
// chunk and the implementation does not generate one on demand.
var ErrNotFound = errors.New("world: not found")
