package math

import "errors"

// Rotation library errors.
var (
	ErrUnsupportedOrder = errors.New("unsupported rotation order")
	ErrNumericDomain    = errors.New("value outside numeric domain")
)
