package wicketlens

import "errors"

// ErrNotFound is returned when a report exists in no reachable source.
var ErrNotFound = errors.New("analysis not found")
