package ident

import "errors"

// Sentinel errors callers can match against with errors.Is to classify a
// failure without depending on its formatted message.
var (
	ErrInvalidName        = errors.New("invalid name")
	ErrInvalidVersion     = errors.New("invalid version")
	ErrInvalidRequirement = errors.New("invalid requirement")
)
