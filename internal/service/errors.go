package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRegistered is returned when an unregistered identity asks for a meme.
	ErrNotRegistered = errors.New("identity is not registered")
	// ErrAlreadyRegistered is returned when registering an identity twice.
	ErrAlreadyRegistered = errors.New("identity is already registered")

	// ErrLockStale is returned when a lock transition's precondition no
	// longer holds, e.g. a second click on an already used button.
	ErrLockStale = errors.New("action lock state changed")
	// ErrLockBusy is returned when a new command arrives while another is
	// in progress. It matches ErrLockStale with errors.Is.
	ErrLockBusy = fmt.Errorf("%w: another command is in progress", ErrLockStale)

	// ErrNoCandidateFound is returned when every provider stage came back empty.
	ErrNoCandidateFound = errors.New("no meme candidate found")
	// ErrExternalFetchExhausted is returned when the attempt budget ran out
	// without an image new to the identity.
	ErrExternalFetchExhausted = errors.New("no new meme found within the attempt limit")
)
