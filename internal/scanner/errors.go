package scanner

import "errors"

// ErrDuplicateResult is returned when a port is recorded twice in one scan.
var ErrDuplicateResult = errors.New("duplicate result for port")
