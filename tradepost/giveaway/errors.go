package giveaway

import "errors"

var (
	// ErrNotFound means no active giveaway exists for the given handle.
	ErrNotFound = errors.New("giveaway not found")
	// ErrAlreadyJoined means the user already holds an entry.
	ErrAlreadyJoined = errors.New("already participating")
	// ErrNotJoined means the user had no entry to withdraw.
	ErrNotJoined = errors.New("not participating")
)
