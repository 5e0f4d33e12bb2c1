package tokenfile

import "errors"

// ErrInvalidEntry is returned when a token entry is malformed, duplicated or
// has no user.
var ErrInvalidEntry = errors.New("invalid token entry")
