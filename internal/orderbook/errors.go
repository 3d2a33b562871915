package orderbook

import (
	"errors"

	"github.com/LoShan17/loshan-chainflip-challenge/internal/tickmath"
)

var (
	// ErrMalformedFeedPayload is returned when a payload lacks a required field.
	ErrMalformedFeedPayload = errors.New("malformed feed payload")
	// ErrParse aliases the amount decoding error so callers need one import.
	ErrParse              = tickmath.ErrParse
	ErrInvariantViolation = errors.New("order book invariant violated")
	ErrTickOutOfRange     = errors.New("tick out of range")
	ErrInvalidRange       = errors.New("invalid tick range")
	ErrInvalidSide        = errors.New("invalid order side")
)
