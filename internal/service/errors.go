package service

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrExpired           = errors.New("share request expired")
	ErrNoResponsibleUser = errors.New("no responsible user")
)

// errBrokenChain marks stored chain data that cannot be normalized. It is an
// internal failure, never a caller error.
var errBrokenChain = errors.New("broken share chain")
