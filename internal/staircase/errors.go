package staircase

import "errors"

// ErrInvalidParameter is returned (wrapped) by New when the target
// probability, scale constant or start value cannot seed a staircase.
// Use errors.Is to check.
var ErrInvalidParameter = errors.New("staircase: invalid parameter")
